package builtin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/harunnryd/hearth/internal/activity"
	"github.com/harunnryd/hearth/internal/skill"
	"github.com/harunnryd/hearth/internal/wellness"

	"github.com/tidwall/gjson"
)

const (
	TypeHabitCompletion = "habit_completion"

	habitRecallLimit = 400
)

const atomicHabitSetup = `ATOMIC HABIT SETUP

Make it so small you can't say no (the 2-minute rule).

THE FORMULA:
  After I [existing habit],
  I will [tiny version of the new habit].
  Then I [celebrate].

THE DEAL:
  - Even on bad days: just the atomic version
  - More is optional. The minimum is mandatory.
  - Never miss twice in a row.

Say "done" each day and I'll track your streak.`

// Habits logs daily completions and reports streaks. Completions are stored
// as episodic records and the streak is recomputed from recall every time.
type Habits struct {
	keywords []string
}

func NewHabits() *Habits {
	return &Habits{keywords: []string{"habit", "streak", "motivation", "consistency", "routine", "daily practice"}}
}

func (h *Habits) Name() string { return "habits" }
func (h *Habits) Description() string {
	return "Track and nurture habits through behavioral science"
}
func (h *Habits) TriggerKeywords() []string { return h.keywords }

func (h *Habits) CanHandle(intent skill.Intent) float64 {
	return skill.KeywordScore(intent, h.keywords, 0.3, 1)
}

func (h *Habits) Execute(ctx context.Context, sc skill.Context) skill.Result {
	intent := sc.Intent
	switch {
	case intent.MentionsAny("done", "did it", "completed"):
		return h.logCompletion(ctx, sc)
	case intent.MentionsAny("missed", "skip", "fail"):
		return h.miss(ctx, sc)
	case intent.MentionsAny("start", "new habit", "build"):
		return skill.Response(atomicHabitSetup)
	case intent.MentionsAny("how", "progress", "streak"):
		return h.progress(ctx, sc)
	default:
		return h.checkIn(ctx, sc)
	}
}

func (h *Habits) completions(ctx context.Context, sc skill.Context) (map[string]struct{}, error) {
	member := memberOf(sc)
	records, err := sc.Activities.Recall(ctx, sc.Intent.WorkspaceID, activity.RecallQuery{
		Query: "habit completion " + member,
		Types: []string{activity.TypeEpisodic},
		Limit: habitRecallLimit,
		Tags:  []string{"habits", member},
	})
	if err != nil {
		return nil, err
	}

	days := make(map[string]struct{}, len(records))
	for _, rec := range records {
		if !gjson.Valid(rec.Content) {
			continue
		}
		data := gjson.Parse(rec.Content)
		if data.Get("type").String() != TypeHabitCompletion {
			continue
		}
		if date := data.Get("date").String(); date != "" {
			days[date] = struct{}{}
		}
	}
	return days, nil
}

func (h *Habits) logCompletion(ctx context.Context, sc skill.Context) skill.Result {
	days, err := h.completions(ctx, sc)
	if err != nil {
		return skill.Failuref("could not read habit history: %v", err)
	}

	date := today(sc)
	if _, done := days[date]; done {
		return skill.Response("Already logged today! You're crushing it.")
	}

	member := memberOf(sc)
	content := encode(map[string]any{
		"type":   TypeHabitCompletion,
		"member": member,
		"date":   date,
		"note":   sc.Intent.Text,
	})
	if err := sc.Activities.Store(ctx, sc.Intent.WorkspaceID, activity.TypeEpisodic, content, 0.4, []string{"habits", member}); err != nil {
		return skill.Failuref("could not log habit: %v", err)
	}
	days[date] = struct{}{}

	streak := Streak(days, now(sc))
	var b strings.Builder
	b.WriteString("Done!\n\n")
	fmt.Fprintf(&b, "Streak: %d days\n", streak)
	if m := StreakMilestone(streak); m != "" {
		b.WriteString(m + "\n")
	}
	fmt.Fprintf(&b, "\nKeep it going! Tomorrow is day %d.", streak+1)
	return skill.Response(b.String())
}

func (h *Habits) miss(ctx context.Context, sc skill.Context) skill.Result {
	days, err := h.completions(ctx, sc)
	if err != nil {
		return skill.Failuref("could not read habit history: %v", err)
	}

	streak := Streak(days, now(sc))
	if streak == 0 {
		return skill.Response("No active streaks to miss. Want to start fresh?")
	}
	return skill.Response(fmt.Sprintf(`No worries. Missing one day is normal.

The facts:
  - You built a %d-day streak
  - That proves you can do this
  - One miss doesn't erase progress

The rule: Never miss TWICE in a row.
Tomorrow, just do the atomic version.`, streak))
}

func (h *Habits) progress(ctx context.Context, sc skill.Context) skill.Result {
	days, err := h.completions(ctx, sc)
	if err != nil {
		return skill.Failuref("could not read habit history: %v", err)
	}
	if len(days) == 0 {
		return skill.Response("No habit history yet. Want to start one?")
	}
	return skill.Response(fmt.Sprintf("HABIT PROGRESS\n\nCurrent streak: %d days\nDays completed: %d",
		Streak(days, now(sc)), len(days)))
}

func (h *Habits) checkIn(ctx context.Context, sc skill.Context) skill.Result {
	days, err := h.completions(ctx, sc)
	if err != nil {
		return skill.Failuref("could not read habit history: %v", err)
	}
	if len(days) == 0 {
		return skill.Response("No active habits. Tell me something you want to build into a habit and I'll help make it atomic!")
	}

	status := "Not yet, did you do it?"
	if _, done := days[today(sc)]; done {
		status = "Done today!"
	}
	return skill.Response(fmt.Sprintf("HABIT CHECK-IN\n\nStreak: %d days\n%s\n\nSay \"done\" or \"missed\" to update!",
		Streak(days, now(sc)), status))
}

// Streak counts consecutive completed days ending today, or ending yesterday
// when today is not logged yet.
func Streak(days map[string]struct{}, at time.Time) int {
	day := at
	if _, ok := days[day.Format(wellness.DateLayout)]; !ok {
		day = day.AddDate(0, 0, -1)
	}

	streak := 0
	for {
		if _, ok := days[day.Format(wellness.DateLayout)]; !ok {
			return streak
		}
		streak++
		day = day.AddDate(0, 0, -1)
	}
}

func StreakMilestone(streak int) string {
	switch streak {
	case 7:
		return "1 WEEK! You proved you can start."
	case 21:
		return "3 WEEKS! Real momentum building."
	case 30:
		return "30 DAYS! This is becoming part of you."
	case 66:
		return "66 DAYS! Science says this is habit now."
	case 100:
		return "100 DAYS! You're in rare company. Incredible."
	default:
		return ""
	}
}
