package skill

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/harunnryd/hearth/internal/activity"

	"github.com/oklog/ulid/v2"
)

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

func ParseRiskLevel(s string) (RiskLevel, error) {
	switch RiskLevel(strings.ToLower(strings.TrimSpace(s))) {
	case RiskLow, "":
		return RiskLow, nil
	case RiskMedium:
		return RiskMedium, nil
	case RiskHigh:
		return RiskHigh, nil
	default:
		return "", fmt.Errorf("unknown risk level %q", s)
	}
}

type Urgency string

const (
	UrgencyLow       Urgency = "low"
	UrgencyNormal    Urgency = "normal"
	UrgencyUrgent    Urgency = "urgent"
	UrgencyEmergency Urgency = "emergency"
)

// ParseUrgency maps user input onto an Urgency. Empty input is normal.
func ParseUrgency(s string) (Urgency, error) {
	switch u := Urgency(strings.ToLower(strings.TrimSpace(s))); u {
	case "":
		return UrgencyNormal, nil
	case UrgencyLow, UrgencyNormal, UrgencyUrgent, UrgencyEmergency:
		return u, nil
	default:
		return "", fmt.Errorf("unknown urgency %q", s)
	}
}

// Intent is one inbound request plus its routing context. It is created per
// request and must not be mutated by routing or scoring.
type Intent struct {
	ID          string            `json:"id"`
	WorkspaceID string            `json:"workspace_id"`
	MemberID    string            `json:"member_id,omitempty"`
	Text        string            `json:"text"`
	Keywords    []string          `json:"keywords"`
	Entities    map[string]string `json:"entities,omitempty"`
	Urgency     Urgency           `json:"urgency"`
	ReceivedAt  time.Time         `json:"received_at"`

	lowered string
}

func NewIntent(workspaceID, memberID, text string) Intent {
	return Intent{
		ID:          ulid.Make().String(),
		WorkspaceID: workspaceID,
		MemberID:    memberID,
		Text:        text,
		Keywords:    Tokenize(text),
		Urgency:     UrgencyNormal,
		ReceivedAt:  time.Now(),
		lowered:     strings.ToLower(text),
	}
}

// Lower returns the lowercased raw text.
func (i Intent) Lower() string {
	if i.lowered == "" && i.Text != "" {
		return strings.ToLower(i.Text)
	}
	return i.lowered
}

// Mentions reports whether the lowercased text contains phrase as a substring.
func (i Intent) Mentions(phrase string) bool {
	phrase = strings.ToLower(strings.TrimSpace(phrase))
	if phrase == "" {
		return false
	}
	return strings.Contains(i.Lower(), phrase)
}

func (i Intent) MentionsAny(phrases ...string) bool {
	for _, p := range phrases {
		if i.Mentions(p) {
			return true
		}
	}
	return false
}

func (i Intent) Urgent() bool {
	return i.Urgency == UrgencyUrgent || i.Urgency == UrgencyEmergency
}

// Tokenize splits text into lowercased words.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

// Context is what a skill receives when it runs.
type Context struct {
	Intent     Intent
	Activities activity.Bridge
	Now        time.Time
}

type Skill interface {
	Name() string
	Description() string
	TriggerKeywords() []string
	// CanHandle returns a confidence in [0,1]. It must be pure.
	CanHandle(intent Intent) float64
	Execute(ctx context.Context, sc Context) Result
}

// ApprovalRequest is the suspended half of a skill run. OnDecision is invoked
// at most once and is expected to return a terminal Result.
type ApprovalRequest struct {
	Description string
	Details     []string
	Risk        RiskLevel
	OnDecision  func(ctx context.Context, approved bool) Result
}

type ResultKind int

const (
	KindResponse ResultKind = iota
	KindNeedsApproval
	KindFailure
)

func (k ResultKind) String() string {
	switch k {
	case KindResponse:
		return "response"
	case KindNeedsApproval:
		return "needs_approval"
	case KindFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Result holds exactly one of a response text, an approval request, or a
// failure reason. Build it with Response, NeedsApproval or Failure.
type Result struct {
	kind     ResultKind
	text     string
	approval *ApprovalRequest
	reason   string
}

func Response(text string) Result {
	return Result{kind: KindResponse, text: text}
}

func NeedsApproval(req *ApprovalRequest) Result {
	if req == nil {
		return Failure("approval requested without a request")
	}
	return Result{kind: KindNeedsApproval, approval: req}
}

func Failure(reason string) Result {
	return Result{kind: KindFailure, reason: reason}
}

func Failuref(format string, args ...any) Result {
	return Failure(fmt.Sprintf(format, args...))
}

func (r Result) Kind() ResultKind { return r.kind }
func (r Result) Text() string { return r.text }
func (r Result) Reason() string { return r.reason }
func (r Result) Approval() *ApprovalRequest { return r.approval }
func (r Result) Terminal() bool { return r.kind != KindNeedsApproval }
