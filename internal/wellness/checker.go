package wellness

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/harunnryd/hearth/internal/activity"
	"github.com/harunnryd/hearth/internal/concurrency"
	"github.com/harunnryd/hearth/internal/config"
	hearthErrors "github.com/harunnryd/hearth/internal/errors"
	"github.com/harunnryd/hearth/internal/metrics"
)

const (
	EventStarted  = "wellness.daily.started"
	EventComplete = "wellness.daily.complete"

	DateLayout      = "2006-01-02"
	SummarySalience = 0.7
)

var SummaryTags = []string{"wellness", "family", "daily-summary"}

type DailySummary struct {
	WorkspaceID  string                   `json:"workspace_id"`
	Date         string                   `json:"date"`
	OverallScore int                      `json:"overallScore"`
	MemberScores map[string]MemberSummary `json:"memberScores"`
	// Failed lists members whose recall failed; they are scored from no
	// records.
	Failed []string `json:"failed,omitempty"`
}

// MemberQuery is the recall issued for one member's day.
func MemberQuery(member, date string, limit int) activity.RecallQuery {
	return activity.RecallQuery{
		Query: fmt.Sprintf("wellness %s %s", member, date),
		Types: []string{activity.TypeEpisodic},
		Limit: limit,
		Tags:  []string{"wellness", member},
	}
}

// SummaryContent is the durable record body for a daily summary.
func SummaryContent(s *DailySummary) (string, error) {
	data, err := json.Marshal(map[string]any{
		"type":         TypeFamilyDaily,
		"date":         s.Date,
		"overallScore": s.OverallScore,
		"memberScores": s.MemberScores,
	})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Checker runs the daily wellness aggregation against an activity bridge.
type Checker struct {
	bridge      activity.Bridge
	recallLimit int
	running     *concurrency.KeyedMutex
	now         func() time.Time
}

func NewChecker(bridge activity.Bridge, recallLimit int) *Checker {
	if recallLimit <= 0 {
		recallLimit = config.DefaultWellnessRecallLimit
	}
	return &Checker{
		bridge:      bridge,
		recallLimit: recallLimit,
		running:     concurrency.NewKeyedMutex(),
		now:         time.Now,
	}
}

// Today formats the checker's current date.
func (c *Checker) Today() string {
	return c.now().Format(DateLayout)
}

// Run scores every member for date (today when empty), stores the family
// summary and emits start and completion events. Runs for the same
// workspace and date are serialized.
func (c *Checker) Run(ctx context.Context, workspaceID string, members []string, date string) (*DailySummary, error) {
	if workspaceID == "" {
		return nil, hearthErrors.InvalidInput("workspace id is required")
	}
	if date == "" {
		date = c.Today()
	}
	if _, err := time.Parse(DateLayout, date); err != nil {
		return nil, hearthErrors.InvalidInput(fmt.Sprintf("date %q must be YYYY-MM-DD", date))
	}

	members = uniqueMembers(members)

	unlock := c.running.Lock(workspaceID + "/" + date)
	defer unlock()

	c.bridge.EmitEvent(ctx, workspaceID, EventStarted, map[string]any{"members": len(members)})

	scores, failed := c.scoreMembers(ctx, workspaceID, members, date)
	summary := &DailySummary{
		WorkspaceID:  workspaceID,
		Date:         date,
		OverallScore: Overall(scores),
		MemberScores: scores,
		Failed:       failed,
	}

	c.bridge.EmitEvent(ctx, workspaceID, EventComplete, map[string]any{
		"overallScore": summary.OverallScore,
		"memberCount":  len(members),
	})

	content, err := SummaryContent(summary)
	if err != nil {
		metrics.WellnessRuns.WithLabelValues("error").Inc()
		return nil, hearthErrors.Wrap(err, "encode wellness summary")
	}
	if err := c.bridge.Store(ctx, workspaceID, activity.TypeEpisodic, content, SummarySalience, SummaryTags); err != nil {
		metrics.WellnessRuns.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("store wellness summary: %w: %w", hearthErrors.ErrTransient, err)
	}

	metrics.WellnessRuns.WithLabelValues("ok").Inc()
	metrics.WellnessOverallScore.WithLabelValues(workspaceID).Set(float64(summary.OverallScore))
	slog.Info("Daily wellness check complete",
		"workspace", workspaceID,
		"date", date,
		"overall", summary.OverallScore,
		"members", len(members),
		"failed", len(summary.Failed),
	)
	return summary, nil
}

// scoreMembers recalls each member concurrently. A member whose recall
// errors or panics is scored from zero records and reported as failed.
func (c *Checker) scoreMembers(ctx context.Context, workspaceID string, members []string, date string) (map[string]MemberSummary, []string) {
	var mu sync.Mutex
	scores := make(map[string]MemberSummary, len(members))
	var failed []string

	markFailed := func(member string) {
		mu.Lock()
		defer mu.Unlock()
		scores[member] = ScoreMember(nil, date)
		failed = append(failed, member)
	}

	tasks := make([]func(), len(members))
	for i, member := range members {
		member := member
		tasks[i] = func() {
			records, err := c.bridge.Recall(ctx, workspaceID, MemberQuery(member, date, c.recallLimit))
			if err != nil {
				slog.Warn("Wellness recall failed", "workspace", workspaceID, "member", member, "error", err)
				markFailed(member)
				return
			}
			summary := ScoreMember(records, date)

			mu.Lock()
			scores[member] = summary
			mu.Unlock()
		}
	}

	concurrency.Fan(tasks, func(i int, _ any) {
		markFailed(members[i])
	})

	sort.Strings(failed)
	return scores, failed
}

func uniqueMembers(members []string) []string {
	seen := make(map[string]struct{}, len(members))
	out := make([]string, 0, len(members))
	for _, m := range members {
		if m == "" {
			continue
		}
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}
