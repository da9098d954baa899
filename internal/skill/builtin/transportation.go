package builtin

import (
	"context"

	"github.com/harunnryd/hearth/internal/skill"
)

const (
	rideOptions = `RIDE OPTIONS

To get an estimate, I need:
1. Where are you now?
2. Where are you going?
3. How many passengers?

Once you choose a ride, I'll need your explicit approval before booking.

Booking a ride will charge your account.`

	commuteCheck = `COMMUTE CHECK

To check travel time:
1. Where are you going?
2. When do you need to arrive?

I'll calculate when you should leave, accounting for traffic.`

	carpoolSetup = `CARPOOL SETUP

To set up a carpool:
1. What event/activity?
2. Who else is in the carpool?
3. What days/times?
4. Who drives which days?

I'll create a schedule and send reminders!`
)

// Transportation answers ride, commute and carpool questions. It never books
// anything, so it never asks for approval.
type Transportation struct {
	keywords []string
}

func NewTransportation() *Transportation {
	return &Transportation{keywords: []string{"uber", "lyft", "ride", "commute", "traffic", "carpool", "parking", "drive", "airport"}}
}

func (t *Transportation) Name() string { return "transportation" }
func (t *Transportation) Description() string {
	return "Manage rides, commutes, carpools, and parking"
}
func (t *Transportation) TriggerKeywords() []string { return t.keywords }

func (t *Transportation) CanHandle(intent skill.Intent) float64 {
	return skill.KeywordScore(intent, t.keywords, 0.3, 1)
}

func (t *Transportation) Execute(ctx context.Context, sc skill.Context) skill.Result {
	intent := sc.Intent
	switch {
	case intent.MentionsAny("uber", "lyft", "ride"):
		return skill.Response(rideOptions)
	case intent.MentionsAny("commute", "traffic", "how long"):
		return skill.Response(commuteCheck)
	case intent.Mentions("carpool"):
		return skill.Response(carpoolSetup)
	default:
		return skill.Response(commuteCheck)
	}
}
