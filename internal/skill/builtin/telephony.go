package builtin

import (
	"context"
	"strings"

	"github.com/harunnryd/hearth/internal/skill"
)

const telephonySetup = `PHONE CALL SETUP

To make this call, I need:
1. Business name and phone number
2. What should I say? (reservation details, appointment request, etc.)
3. Name for the booking
4. Time flexibility?

I'll prepare a script for your review before calling.`

// Telephony places voice calls on the user's behalf. Every call is high risk.
type Telephony struct {
	keywords []string
}

func NewTelephony() *Telephony {
	return &Telephony{keywords: []string{"call", "phone", "dial", "phone call", "call the", "ring"}}
}

func (t *Telephony) Name() string { return "telephony" }
func (t *Telephony) Description() string {
	return "AI-powered voice calls for reservations and appointments"
}
func (t *Telephony) TriggerKeywords() []string { return t.keywords }

// CanHandle is confident when a call is paired with a booking target.
// "call" alone is ambiguous and stays below 0.7.
func (t *Telephony) CanHandle(intent skill.Intent) float64 {
	if intent.Mentions("call") && intent.MentionsAny("restaurant", "doctor", "book") {
		return 0.8
	}
	return skill.KeywordScore(intent, t.keywords, 0.2, 0.7)
}

func (t *Telephony) Execute(ctx context.Context, sc skill.Context) skill.Result {
	return skill.NeedsApproval(&skill.ApprovalRequest{
		Description: "Make a phone call on your behalf",
		Details: []string{
			"I can make AI voice calls to businesses for reservations, appointments, etc.",
			"You'll see the full script before I call.",
			"I will NOT provide credit card or sensitive info.",
			"I need: business name, phone number, and what to say.",
		},
		Risk: skill.RiskHigh,
		OnDecision: func(ctx context.Context, approved bool) skill.Result {
			if !approved {
				return skill.Response("No worries! I can help you prepare what to say if you'd rather call yourself.")
			}
			return skill.Response(strings.TrimSpace(telephonySetup))
		},
	})
}
