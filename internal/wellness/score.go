// Package wellness turns a day of per-member wellness memories into scores
// and a family-wide daily summary.
package wellness

import (
	"math"

	"github.com/harunnryd/hearth/internal/activity"

	"github.com/tidwall/gjson"
)

const (
	BaseScore = 50
	MaxScore  = 100

	HydrationBonus    = 15
	MovementBonus     = 20
	ScreenTimeBonus   = 10
	SleepRoutineBonus = 5
)

// Record types written by the wellness skill and nudge workflows.
const (
	TypeHydrationSummary = "hydration_daily_summary"
	TypeMovementSummary  = "movement_daily_summary"
	TypeScreenTime       = "screentime_daily"
	TypeSleepRoutine     = "sleep_routine"
	TypeFamilyDaily      = "family_wellness_daily"
)

type MemberSummary struct {
	Score             int `json:"score"`
	MemoriesProcessed int `json:"memoriesProcessed"`
}

// ScoreMember starts from BaseScore and adds each bonus at most once for
// the day. Records carrying a date other than date are ignored, as is
// content that is not valid JSON. An empty date accepts every record.
// MemoriesProcessed counts every record, parsed or not.
func ScoreMember(records []activity.MemoryRecord, date string) MemberSummary {
	earned := make(map[string]int, 4)
	for _, rec := range records {
		kind, points := bonus(rec.Content, date)
		if points > 0 {
			earned[kind] = points
		}
	}

	score := BaseScore
	for _, points := range earned {
		score += points
	}
	return MemberSummary{
		Score:             min(score, MaxScore),
		MemoriesProcessed: len(records),
	}
}

func bonus(content, date string) (string, int) {
	if !gjson.Valid(content) {
		return "", 0
	}
	data := gjson.Parse(content)
	if d := data.Get("date"); date != "" && d.Exists() && d.String() != date {
		return "", 0
	}

	kind := data.Get("type").String()
	switch kind {
	case TypeHydrationSummary:
		if data.Get("goalMet").Bool() {
			return kind, HydrationBonus
		}
	case TypeMovementSummary:
		if data.Get("goalMet").Bool() {
			return kind, MovementBonus
		}
	case TypeScreenTime:
		if !data.Get("limitReached").Bool() {
			return kind, ScreenTimeBonus
		}
	case TypeSleepRoutine:
		return kind, SleepRoutineBonus
	}
	return kind, 0
}

// Overall is the rounded mean of the member scores, or 0 with no members.
func Overall(members map[string]MemberSummary) int {
	if len(members) == 0 {
		return 0
	}
	total := 0
	for _, m := range members {
		total += m.Score
	}
	return int(math.Round(float64(total) / float64(len(members))))
}
