package components

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/harunnryd/hearth/internal/config"
	"github.com/harunnryd/hearth/internal/daemon"
	"github.com/harunnryd/hearth/internal/wellness"
	"github.com/harunnryd/hearth/internal/workflows"

	"go.temporal.io/sdk/client"
	temporallog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"
)

// TemporalComponent runs a Temporal worker for the wellness workflow when
// temporal.enabled is set. Disabled, it is a healthy no-op and wellness runs
// in process.
type TemporalComponent struct {
	cfg         *config.TemporalConfig
	runtimeComp *RuntimeComponent
	client      client.Client
	worker      worker.Worker
	timeout     time.Duration
	started     bool
	mu          sync.RWMutex
}

func NewTemporalComponent(cfg *config.TemporalConfig, runtimeComp *RuntimeComponent) *TemporalComponent {
	return &TemporalComponent{
		cfg:         cfg,
		runtimeComp: runtimeComp,
	}
}

func (t *TemporalComponent) Name() string {
	return "Temporal"
}

func (t *TemporalComponent) Dependencies() []string {
	return []string{"Runtime"}
}

func (t *TemporalComponent) Enabled() bool {
	return t != nil && t.cfg != nil && t.cfg.Enabled
}

func (t *TemporalComponent) Init(ctx context.Context) error {
	if !t.Enabled() {
		slog.Info("Temporal disabled, wellness runs in process", "component", t.Name())
		return nil
	}

	rt := t.runtimeComp.GetRuntime()
	if rt == nil {
		return fmt.Errorf("runtime not initialized")
	}

	timeout, err := config.DurationOrDefault(t.cfg.ActivityTimeout, config.DefaultTemporalActivityTimeout)
	if err != nil {
		return fmt.Errorf("parse temporal activity timeout: %w", err)
	}

	c, err := client.Dial(client.Options{
		HostPort:  t.cfg.HostPort,
		Namespace: t.cfg.Namespace,
		Logger:    temporallog.NewStructuredLogger(slog.Default()),
	})
	if err != nil {
		return fmt.Errorf("connect to temporal at %s: %w", t.cfg.HostPort, err)
	}

	w := worker.New(c, t.cfg.TaskQueue, worker.Options{})
	workflows.RegisterWorkflows(w)
	workflows.RegisterActivities(w, workflows.NewActivities(rt.Bridge))

	t.mu.Lock()
	t.client = c
	t.worker = w
	t.timeout = timeout
	t.mu.Unlock()

	slog.Info("Temporal worker initialized", "component", t.Name(), "host", t.cfg.HostPort, "queue", t.cfg.TaskQueue)
	return nil
}

func (t *TemporalComponent) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.worker == nil {
		return nil
	}
	if err := t.worker.Start(); err != nil {
		return fmt.Errorf("failed to start temporal worker: %w", err)
	}
	t.started = true
	slog.Info("Temporal worker started", "component", t.Name())
	return nil
}

func (t *TemporalComponent) Stop(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.worker != nil && t.started {
		t.worker.Stop()
		t.started = false
	}
	if t.client != nil {
		t.client.Close()
		t.client = nil
	}
	slog.Info("Temporal stopped", "component", t.Name())
	return nil
}

func (t *TemporalComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	if !t.Enabled() {
		return healthy(t.Name()), nil
	}

	t.mu.RLock()
	c := t.client
	t.mu.RUnlock()
	if c == nil {
		return unhealthy(t.Name(), fmt.Errorf("not connected")), nil
	}
	if _, err := c.CheckHealth(ctx, &client.CheckHealthRequest{}); err != nil {
		return unhealthy(t.Name(), err), nil
	}
	return healthy(t.Name()), nil
}

// RunDailyWellness executes the wellness workflow and waits for its summary.
func (t *TemporalComponent) RunDailyWellness(ctx context.Context, workspaceID string, members []string, date string, recallLimit int) (*wellness.DailySummary, error) {
	t.mu.RLock()
	c := t.client
	timeout := t.timeout
	t.mu.RUnlock()
	if c == nil {
		return nil, fmt.Errorf("temporal client not connected")
	}

	return workflows.StartDailyWellness(ctx, c, t.cfg.TaskQueue, workflows.DailyWellnessInput{
		WorkspaceID:     workspaceID,
		Members:         members,
		Date:            date,
		RecallLimit:     recallLimit,
		ActivityTimeout: timeout,
	})
}
