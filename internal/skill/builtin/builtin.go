// Package builtin holds the skills compiled into hearth. Every skill here
// reaches durable state only through the activity bridge on its context.
package builtin

import (
	"encoding/json"
	"time"

	"github.com/harunnryd/hearth/internal/skill"
	"github.com/harunnryd/hearth/internal/wellness"
)

// DefaultMember is used when an intent carries no member id.
const DefaultMember = "me"

// All returns the builtin skills in registration order. Order matters for
// routing ties.
func All() []skill.Skill {
	return []skill.Skill{
		NewTelephony(),
		NewTransportation(),
		NewMarketplace(),
		NewHabits(),
		NewWellness(),
		NewFamilyComms(),
	}
}

// RegisterAll registers every builtin skill not named in disabled. It stops
// at the first error.
func RegisterAll(reg *skill.Registry, disabled ...string) error {
	off := make(map[string]struct{}, len(disabled))
	for _, name := range disabled {
		off[name] = struct{}{}
	}
	for _, s := range All() {
		if _, skip := off[s.Name()]; skip {
			continue
		}
		if err := reg.Register(s); err != nil {
			return err
		}
	}
	return nil
}

func memberOf(sc skill.Context) string {
	if sc.Intent.MemberID != "" {
		return sc.Intent.MemberID
	}
	return DefaultMember
}

func now(sc skill.Context) time.Time {
	if sc.Now.IsZero() {
		return time.Now()
	}
	return sc.Now
}

func today(sc skill.Context) string {
	return now(sc).Format(wellness.DateLayout)
}

func encode(v map[string]any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}
