package components

import (
	"context"
	"fmt"

	"github.com/harunnryd/hearth/internal/config"
	"github.com/harunnryd/hearth/internal/wellness"
)

// WellnessRunner runs the daily aggregation through Temporal when it is
// enabled and in process otherwise.
type WellnessRunner struct {
	cfg          *config.WellnessConfig
	runtimeComp  *RuntimeComponent
	temporalComp *TemporalComponent
}

func NewWellnessRunner(cfg *config.WellnessConfig, runtimeComp *RuntimeComponent, temporalComp *TemporalComponent) *WellnessRunner {
	return &WellnessRunner{cfg: cfg, runtimeComp: runtimeComp, temporalComp: temporalComp}
}

// Run scores members for date. Empty members fall back to wellness.members.
func (w *WellnessRunner) Run(ctx context.Context, workspaceID string, members []string, date string) (*wellness.DailySummary, error) {
	if len(members) == 0 {
		members = w.cfg.Members
	}

	if w.temporalComp.Enabled() {
		return w.temporalComp.RunDailyWellness(ctx, workspaceID, members, date, w.cfg.RecallLimit)
	}

	rt := w.runtimeComp.GetRuntime()
	if rt == nil {
		return nil, fmt.Errorf("runtime not initialized")
	}
	return rt.Wellness.Run(ctx, workspaceID, members, date)
}
