package builtin

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/harunnryd/hearth/internal/activity"
	"github.com/harunnryd/hearth/internal/skill"
	"github.com/harunnryd/hearth/internal/wellness"

	"github.com/tidwall/gjson"
)

// Daily goals.
const (
	HydrationGoalOz = 64.0
	StepsGoal       = 8000
	SleepGoalHours  = 8.0
)

const wellnessRecallLimit = 20

var ouncesPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:oz|ounces?)\b`)

// Wellness reports a member's daily score and logs water intake.
type Wellness struct {
	keywords []string
}

func NewWellness() *Wellness {
	return &Wellness{keywords: []string{
		"water", "hydration", "drink", "steps", "walk", "sleep", "screen time",
		"wellness", "health check", "how am i doing", "fitness", "exercise",
		"tired", "energy", "mood",
	}}
}

func (w *Wellness) Name() string { return "wellness" }
func (w *Wellness) Description() string {
	return "Track hydration, steps, sleep, and screen time with adaptive nudges"
}
func (w *Wellness) TriggerKeywords() []string { return w.keywords }

func (w *Wellness) CanHandle(intent skill.Intent) float64 {
	return skill.KeywordScore(intent, w.keywords, 0.3, 1)
}

func (w *Wellness) Execute(ctx context.Context, sc skill.Context) skill.Result {
	if sc.Intent.MentionsAny("water", "hydration", "drink") {
		if oz, ok := ParseOunces(sc.Intent.Text); ok {
			return w.logWater(ctx, sc, oz)
		}
		return w.hydrationStatus(ctx, sc)
	}
	return w.dashboard(ctx, sc)
}

// ParseOunces finds the first "<n> oz" amount in text.
func ParseOunces(text string) (float64, bool) {
	m := ouncesPattern.FindStringSubmatch(strings.ToLower(text))
	if m == nil {
		return 0, false
	}
	oz, err := strconv.ParseFloat(m[1], 64)
	if err != nil || oz <= 0 {
		return 0, false
	}
	return oz, true
}

// consumedToday is the latest running total from today's hydration summaries.
func (w *Wellness) consumedToday(ctx context.Context, sc skill.Context) (float64, error) {
	member := memberOf(sc)
	date := today(sc)
	records, err := sc.Activities.Recall(ctx, sc.Intent.WorkspaceID, activity.RecallQuery{
		Query: fmt.Sprintf("hydration %s %s", member, date),
		Types: []string{activity.TypeEpisodic},
		Limit: wellnessRecallLimit,
		Tags:  []string{"wellness", "hydration", member},
	})
	if err != nil {
		return 0, err
	}

	consumed := 0.0
	for _, rec := range records {
		if !gjson.Valid(rec.Content) {
			continue
		}
		data := gjson.Parse(rec.Content)
		if data.Get("type").String() != wellness.TypeHydrationSummary || data.Get("date").String() != date {
			continue
		}
		consumed = max(consumed, data.Get("consumed").Float())
	}
	return consumed, nil
}

func (w *Wellness) logWater(ctx context.Context, sc skill.Context, oz float64) skill.Result {
	consumed, err := w.consumedToday(ctx, sc)
	if err != nil {
		return skill.Failuref("could not read today's hydration: %v", err)
	}

	member := memberOf(sc)
	total := consumed + oz
	goalMet := total >= HydrationGoalOz
	salience := 0.6
	if goalMet {
		salience = 0.4
	}

	content := encode(map[string]any{
		"type":     wellness.TypeHydrationSummary,
		"member":   member,
		"consumed": total,
		"goal":     HydrationGoalOz,
		"goalMet":  goalMet,
		"date":     today(sc),
	})
	tags := []string{"wellness", "hydration", "daily-summary", member}
	if err := sc.Activities.Store(ctx, sc.Intent.WorkspaceID, activity.TypeEpisodic, content, salience, tags); err != nil {
		return skill.Failuref("could not log water: %v", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Logged %.0foz for %s\n", oz, member)
	fmt.Fprintf(&b, "  Total today: %.0foz / %.0foz (%d%%)", total, HydrationGoalOz, percent(total, HydrationGoalOz))
	if goalMet {
		b.WriteString("\n  You've hit your hydration goal! Keep sipping!")
	}
	return skill.Response(b.String())
}

func (w *Wellness) hydrationStatus(ctx context.Context, sc skill.Context) skill.Result {
	consumed, err := w.consumedToday(ctx, sc)
	if err != nil {
		return skill.Failuref("could not read today's hydration: %v", err)
	}

	var b strings.Builder
	b.WriteString("HYDRATION STATUS\n\n")
	fmt.Fprintf(&b, "%s: %.0foz / %.0foz %s %d%%\n", memberOf(sc), consumed, HydrationGoalOz,
		progressBar(percent(consumed, HydrationGoalOz)), percent(consumed, HydrationGoalOz))

	remaining := HydrationGoalOz - consumed
	if remaining <= 0 {
		b.WriteString("  Goal reached!")
		return skill.Response(b.String())
	}
	hoursLeft := max(1, 22-now(sc).Hour())
	fmt.Fprintf(&b, "  Aim for ~%.0foz per hour to hit your goal", remaining/float64(hoursLeft))
	return skill.Response(b.String())
}

func (w *Wellness) dashboard(ctx context.Context, sc skill.Context) skill.Result {
	member := memberOf(sc)
	date := today(sc)
	records, err := sc.Activities.Recall(ctx, sc.Intent.WorkspaceID, wellness.MemberQuery(member, date, wellnessRecallLimit))
	if err != nil {
		return skill.Failuref("could not read wellness records: %v", err)
	}
	summary := wellness.ScoreMember(records, date)

	var b strings.Builder
	b.WriteString("WELLNESS DASHBOARD\n")
	fmt.Fprintf(&b, "%s, %s\n\n", date, greeting(now(sc).Hour()))
	fmt.Fprintf(&b, "%s: %d/%d %s (%d records today)\n", member, summary.Score, wellness.MaxScore,
		progressBar(summary.Score), summary.MemoriesProcessed)
	fmt.Fprintf(&b, "Goals: %.0foz water, %d steps, %.0fh sleep\n", HydrationGoalOz, StepsGoal, SleepGoalHours)
	if nudge := timeNudge(now(sc).Hour()); nudge != "" {
		b.WriteString("\n" + nudge)
	}
	return skill.Response(strings.TrimRight(b.String(), "\n"))
}

func percent(value, goal float64) int {
	if goal <= 0 {
		return 0
	}
	return min(100, int(value/goal*100))
}

func progressBar(pct int) string {
	pct = max(0, min(100, pct))
	filled := pct / 10
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", 10-filled) + "]"
}

func greeting(hour int) string {
	switch {
	case hour >= 5 && hour <= 11:
		return "Good morning"
	case hour >= 12 && hour <= 16:
		return "Good afternoon"
	case hour >= 17 && hour <= 20:
		return "Good evening"
	default:
		return "Night owl?"
	}
}

func timeNudge(hour int) string {
	switch {
	case hour >= 6 && hour <= 8:
		return "Start with a glass of water to kickstart hydration."
	case hour >= 9 && hour <= 11:
		return "Mid-morning check: have you had 16oz of water yet? A short walk boosts focus!"
	case hour >= 12 && hour <= 13:
		return "Lunchtime! Drink water with your meal. A post-lunch walk aids digestion."
	case hour >= 14 && hour <= 16:
		return "Afternoon slump? Try water before coffee, dehydration often mimics fatigue."
	case hour >= 17 && hour <= 18:
		return "Evening approaching! There's still time for a walk."
	case hour >= 19 && hour <= 20:
		return "After dinner is a great time for a family walk. Wind down screens soon."
	case hour >= 21 && hour <= 22:
		return "Time to wind down. Dim lights, put screens away, and prepare for quality sleep."
	default:
		return ""
	}
}
