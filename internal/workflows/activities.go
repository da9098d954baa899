package workflows

import (
	"context"

	"github.com/harunnryd/hearth/internal/activity"
	"github.com/harunnryd/hearth/internal/metrics"
	"github.com/harunnryd/hearth/internal/wellness"

	temporalactivity "go.temporal.io/sdk/activity"
)

// Activity names as registered on the worker.
const (
	RecallMemberActivityName = "RecallMemberActivity"
	StoreSummaryActivityName = "StoreSummaryActivity"
	EmitEventActivityName    = "EmitEventActivity"
)

type RecallMemberInput struct {
	WorkspaceID string `json:"workspace_id"`
	Member      string `json:"member"`
	Date        string `json:"date"`
	Limit       int    `json:"limit"`
}

type StoreSummaryInput struct {
	WorkspaceID string                `json:"workspace_id"`
	Summary     wellness.DailySummary `json:"summary"`
}

type EmitEventInput struct {
	WorkspaceID string         `json:"workspace_id"`
	Name        string         `json:"name"`
	Payload     map[string]any `json:"payload,omitempty"`
}

// Activities adapts an activity bridge to Temporal activities.
type Activities struct {
	bridge activity.Bridge
}

func NewActivities(bridge activity.Bridge) *Activities {
	return &Activities{bridge: bridge}
}

// RecallMemberActivity recalls one member's day and scores it, so only the
// summary crosses the workflow boundary.
func (a *Activities) RecallMemberActivity(ctx context.Context, in RecallMemberInput) (wellness.MemberSummary, error) {
	records, err := a.bridge.Recall(ctx, in.WorkspaceID, wellness.MemberQuery(in.Member, in.Date, in.Limit))
	if err != nil {
		temporalactivity.GetLogger(ctx).Warn("Wellness recall failed", "member", in.Member, "error", err)
		return wellness.MemberSummary{}, err
	}
	return wellness.ScoreMember(records, in.Date), nil
}

func (a *Activities) StoreSummaryActivity(ctx context.Context, in StoreSummaryInput) error {
	content, err := wellness.SummaryContent(&in.Summary)
	if err != nil {
		return err
	}
	if err := a.bridge.Store(ctx, in.WorkspaceID, activity.TypeEpisodic, content, wellness.SummarySalience, wellness.SummaryTags); err != nil {
		metrics.WellnessRuns.WithLabelValues("error").Inc()
		return err
	}
	metrics.WellnessRuns.WithLabelValues("ok").Inc()
	metrics.WellnessOverallScore.WithLabelValues(in.WorkspaceID).Set(float64(in.Summary.OverallScore))
	return nil
}

func (a *Activities) EmitEventActivity(ctx context.Context, in EmitEventInput) error {
	a.bridge.EmitEvent(ctx, in.WorkspaceID, in.Name, in.Payload)
	return nil
}

type activityRegistrar interface {
	RegisterActivityWithOptions(a interface{}, options temporalactivity.RegisterOptions)
}

// RegisterActivities registers every wellness activity under its stable name.
func RegisterActivities(r activityRegistrar, a *Activities) {
	r.RegisterActivityWithOptions(a.RecallMemberActivity, temporalactivity.RegisterOptions{Name: RecallMemberActivityName})
	r.RegisterActivityWithOptions(a.StoreSummaryActivity, temporalactivity.RegisterOptions{Name: StoreSummaryActivityName})
	r.RegisterActivityWithOptions(a.EmitEventActivity, temporalactivity.RegisterOptions{Name: EmitEventActivityName})
}
