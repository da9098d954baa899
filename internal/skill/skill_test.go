package skill

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubSkill struct {
	name  string
	score float64
	calls int
}

func (s *stubSkill) Name() string { return s.name }
func (s *stubSkill) Description() string { return "stub " + s.name }
func (s *stubSkill) TriggerKeywords() []string { return []string{s.name} }
func (s *stubSkill) CanHandle(Intent) float64 { return s.score }
func (s *stubSkill) Execute(context.Context, Context) Result {
	s.calls++
	return Response(s.name)
}

func TestParseRiskLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    RiskLevel
		wantErr bool
	}{
		{"", RiskLow, false},
		{"LOW", RiskLow, false},
		{" medium ", RiskMedium, false},
		{"high", RiskHigh, false},
		{"critical", "", true},
	}

	for _, tt := range tests {
		got, err := ParseRiskLevel(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		assert.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestNewIntent(t *testing.T) {
	intent := NewIntent("family", "mom", "Call the Doctor, please!")

	assert.NotEmpty(t, intent.ID)
	assert.Equal(t, UrgencyNormal, intent.Urgency)
	assert.Equal(t, []string{"call", "the", "doctor", "please"}, intent.Keywords)
	assert.True(t, intent.Mentions("DOCTOR"))
	assert.True(t, intent.MentionsAny("uber", "call the"))
	assert.False(t, intent.Mentions(""))
	assert.False(t, intent.Urgent())
}

func TestIntent_LowerWithoutConstructor(t *testing.T) {
	intent := Intent{Text: "Book A Ride"}
	assert.Equal(t, "book a ride", intent.Lower())
	assert.True(t, intent.Mentions("ride"))
}

func TestIntent_Urgent(t *testing.T) {
	for _, u := range []Urgency{UrgencyUrgent, UrgencyEmergency} {
		assert.True(t, Intent{Urgency: u}.Urgent(), u)
	}
	for _, u := range []Urgency{UrgencyLow, UrgencyNormal, ""} {
		assert.False(t, Intent{Urgency: u}.Urgent(), u)
	}
}

func TestResultConstructors(t *testing.T) {
	r := Response("done")
	assert.Equal(t, KindResponse, r.Kind())
	assert.Equal(t, "done", r.Text())
	assert.True(t, r.Terminal())

	f := Failuref("no %s", "luck")
	assert.Equal(t, KindFailure, f.Kind())
	assert.Equal(t, "no luck", f.Reason())
	assert.True(t, f.Terminal())

	a := NeedsApproval(&ApprovalRequest{Description: "Place a call", Risk: RiskHigh})
	assert.Equal(t, KindNeedsApproval, a.Kind())
	assert.False(t, a.Terminal())
	assert.Equal(t, "Place a call", a.Approval().Description)

	missing := NeedsApproval(nil)
	assert.Equal(t, KindFailure, missing.Kind())
}

func TestResultKind_String(t *testing.T) {
	assert.Equal(t, "response", KindResponse.String())
	assert.Equal(t, "needs_approval", KindNeedsApproval.String())
	assert.Equal(t, "failure", KindFailure.String())
	assert.Equal(t, "unknown", ResultKind(42).String())
}
