package components

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/harunnryd/hearth/internal/app"
	"github.com/harunnryd/hearth/internal/approval"
	"github.com/harunnryd/hearth/internal/config"
	"github.com/harunnryd/hearth/internal/daemon"
	"github.com/harunnryd/hearth/internal/executor"
)

// RuntimeComponent holds the skill registry, router, approval gate, executor
// and activity bridge for the daemon.
type RuntimeComponent struct {
	cfg       *config.Config
	storeComp *StorePoolComponent
	runtime   *app.Components
	mu        sync.RWMutex
}

func NewRuntimeComponent(cfg *config.Config, storeComp *StorePoolComponent) *RuntimeComponent {
	return &RuntimeComponent{
		cfg:       cfg,
		storeComp: storeComp,
	}
}

func (r *RuntimeComponent) Name() string {
	return "Runtime"
}

func (r *RuntimeComponent) Dependencies() []string {
	return []string{"StorePool"}
}

func (r *RuntimeComponent) Init(ctx context.Context) error {
	if r.storeComp == nil {
		return fmt.Errorf("store pool component not provided")
	}
	pool := r.storeComp.GetPool()
	if pool == nil {
		return fmt.Errorf("store pool not initialized")
	}

	rt, err := app.Build(ctx, r.cfg, pool)
	if err != nil {
		return fmt.Errorf("failed to build runtime: %w", err)
	}

	r.mu.Lock()
	r.runtime = rt
	r.mu.Unlock()

	slog.Info("Runtime initialized", "component", r.Name(), "skills", rt.Registry.Len())
	return nil
}

func (r *RuntimeComponent) Start(ctx context.Context) error {
	rt := r.GetRuntime()
	if rt == nil {
		return fmt.Errorf("runtime not initialized")
	}

	rt.Executor.OnResolution(func(res executor.Resolution) {
		slog.Info("Approval resolved",
			"approval_id", res.Approval.ID,
			"workspace", res.Approval.WorkspaceID,
			"skill", res.Approval.Skill,
			"outcome", res.Approval.Outcome,
			"kind", res.Kind,
		)
	})

	slog.Info("Runtime started", "component", r.Name())
	return nil
}

func (r *RuntimeComponent) Stop(ctx context.Context) error {
	rt := r.GetRuntime()
	if rt == nil {
		slog.Info("Runtime not initialized, skipping stop", "component", r.Name())
		return nil
	}

	pending := rt.Gate.List(approvalOpen())
	if len(pending) > 0 {
		slog.Warn("Dropping undecided approvals on shutdown", "count", len(pending))
	}
	if err := rt.Close(); err != nil {
		slog.Error("Runtime close failed", "component", r.Name(), "error", err)
	}

	slog.Info("Runtime stopped", "component", r.Name())
	return nil
}

func (r *RuntimeComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	rt := r.GetRuntime()
	if rt == nil {
		return unhealthy(r.Name(), fmt.Errorf("not initialized")), nil
	}
	if !rt.Registry.Sealed() {
		return unhealthy(r.Name(), fmt.Errorf("skill registry not sealed")), nil
	}
	return healthyWith(r.Name(), map[string]any{
		"skills":         rt.Registry.Len(),
		"open_approvals": len(rt.Gate.List(approvalOpen())),
		"embedder":       rt.Embedder.Name(),
	}), nil
}

func (r *RuntimeComponent) GetRuntime() *app.Components {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.runtime
}

func approvalOpen() approval.Filter {
	return approval.Filter{States: []approval.State{approval.StateDeferred, approval.StatePrompted}}
}
