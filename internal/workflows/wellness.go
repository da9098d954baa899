// Package workflows holds the Temporal rendition of the daily wellness
// aggregation.
package workflows

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/harunnryd/hearth/internal/config"
	"github.com/harunnryd/hearth/internal/wellness"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const DailyWellnessWorkflowName = "DailyWellnessCheckWorkflow"

type DailyWellnessInput struct {
	WorkspaceID string   `json:"workspace_id"`
	Members     []string `json:"members"`
	// Date is YYYY-MM-DD; empty means the workflow's current date.
	Date            string        `json:"date,omitempty"`
	RecallLimit     int           `json:"recall_limit,omitempty"`
	ActivityTimeout time.Duration `json:"activity_timeout,omitempty"`
}

// DailyWellnessCheckWorkflow recalls every member in parallel, aggregates the
// scores, emits completion and stores the family summary. A member whose
// recall fails is scored from no records.
func DailyWellnessCheckWorkflow(ctx workflow.Context, in DailyWellnessInput) (*wellness.DailySummary, error) {
	logger := workflow.GetLogger(ctx)

	if in.WorkspaceID == "" {
		return nil, temporal.NewNonRetryableApplicationError("workspace id is required", "InvalidInput", nil)
	}
	date := in.Date
	if date == "" {
		date = workflow.Now(ctx).Format(wellness.DateLayout)
	}
	limit := in.RecallLimit
	if limit <= 0 {
		limit = config.DefaultWellnessRecallLimit
	}
	timeout := in.ActivityTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: timeout,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	})

	members := dedupe(in.Members)
	logger.Info("Starting daily wellness check", "workspace", in.WorkspaceID, "date", date, "members", len(members))

	emit := func(name string, payload map[string]any) {
		err := workflow.ExecuteActivity(ctx, EmitEventActivityName, EmitEventInput{
			WorkspaceID: in.WorkspaceID,
			Name:        name,
			Payload:     payload,
		}).Get(ctx, nil)
		if err != nil {
			logger.Warn("Event emission failed", "event", name, "error", err)
		}
	}

	emit(wellness.EventStarted, map[string]any{"members": len(members)})

	futures := make([]workflow.Future, len(members))
	for i, member := range members {
		futures[i] = workflow.ExecuteActivity(ctx, RecallMemberActivityName, RecallMemberInput{
			WorkspaceID: in.WorkspaceID,
			Member:      member,
			Date:        date,
			Limit:       limit,
		})
	}

	summary := &wellness.DailySummary{
		WorkspaceID:  in.WorkspaceID,
		Date:         date,
		MemberScores: make(map[string]wellness.MemberSummary, len(members)),
	}
	for i, member := range members {
		var ms wellness.MemberSummary
		if err := futures[i].Get(ctx, &ms); err != nil {
			logger.Warn("Member recall failed", "member", member, "error", err)
			ms = wellness.ScoreMember(nil, date)
			summary.Failed = append(summary.Failed, member)
		}
		summary.MemberScores[member] = ms
	}
	sort.Strings(summary.Failed)
	summary.OverallScore = wellness.Overall(summary.MemberScores)

	emit(wellness.EventComplete, map[string]any{
		"overallScore": summary.OverallScore,
		"memberCount":  len(members),
	})

	err := workflow.ExecuteActivity(ctx, StoreSummaryActivityName, StoreSummaryInput{
		WorkspaceID: in.WorkspaceID,
		Summary:     *summary,
	}).Get(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store wellness summary: %w", err)
	}

	logger.Info("Daily wellness check complete", "workspace", in.WorkspaceID, "overall", summary.OverallScore)
	return summary, nil
}

type workflowRegistrar interface {
	RegisterWorkflowWithOptions(w interface{}, options workflow.RegisterOptions)
}

func RegisterWorkflows(r workflowRegistrar) {
	r.RegisterWorkflowWithOptions(DailyWellnessCheckWorkflow, workflow.RegisterOptions{Name: DailyWellnessWorkflowName})
}

// WorkflowID is stable per workspace and date so a repeated trigger joins
// the running execution instead of starting a second one.
func WorkflowID(workspaceID, date string) string {
	return fmt.Sprintf("wellness-daily-%s-%s", workspaceID, date)
}

// StartDailyWellness starts the workflow on queue and waits for its summary.
func StartDailyWellness(ctx context.Context, c client.Client, queue string, in DailyWellnessInput) (*wellness.DailySummary, error) {
	if in.Date == "" {
		in.Date = time.Now().Format(wellness.DateLayout)
	}
	run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        WorkflowID(in.WorkspaceID, in.Date),
		TaskQueue: queue,
	}, DailyWellnessWorkflowName, in)
	if err != nil {
		return nil, fmt.Errorf("start wellness workflow: %w", err)
	}

	var summary wellness.DailySummary
	if err := run.Get(ctx, &summary); err != nil {
		return nil, fmt.Errorf("wellness workflow %s: %w", run.GetID(), err)
	}
	return &summary, nil
}

func dedupe(members []string) []string {
	seen := make(map[string]struct{}, len(members))
	out := make([]string, 0, len(members))
	for _, m := range members {
		if _, ok := seen[m]; ok || m == "" {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}
