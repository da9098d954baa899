package components

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/harunnryd/hearth/internal/config"
	"github.com/harunnryd/hearth/internal/daemon"
	"github.com/harunnryd/hearth/internal/scheduler"
	"github.com/harunnryd/hearth/internal/store"
	"github.com/harunnryd/hearth/internal/wellness"
)

const WellnessTaskID = "wellness-daily"

type SchedulerComponent struct {
	sched       *scheduler.Scheduler
	cfg         *config.Config
	runtimeComp *RuntimeComponent
	wellness    *WellnessRunner
	workspaceID string
}

func NewSchedulerComponent(cfg *config.Config, runtimeComp *RuntimeComponent, runner *WellnessRunner, workspaceID string) *SchedulerComponent {
	return &SchedulerComponent{
		cfg:         cfg,
		runtimeComp: runtimeComp,
		wellness:    runner,
		workspaceID: workspaceID,
	}
}

func (s *SchedulerComponent) Name() string {
	return "Scheduler"
}

func (s *SchedulerComponent) Dependencies() []string {
	return []string{"Runtime", "Temporal"}
}

func (s *SchedulerComponent) Init(ctx context.Context) error {
	if s.runtimeComp == nil {
		return fmt.Errorf("runtime component not provided")
	}
	rt := s.runtimeComp.GetRuntime()
	if rt == nil {
		return fmt.Errorf("runtime not initialized")
	}

	schedulerDir, err := store.GetSchedulerDir(s.workspaceID, s.cfg.Daemon.WorkspacePath)
	if err != nil {
		return fmt.Errorf("failed to resolve scheduler directory: %w", err)
	}
	taskStore, err := scheduler.NewStore(filepath.Join(schedulerDir, "tasks.json"))
	if err != nil {
		return fmt.Errorf("failed to create scheduler store: %w", err)
	}
	sched, err := scheduler.NewScheduler(taskStore, s.cfg.Scheduler)
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	sched.AddHook("approvals", rt.Maintain)

	if s.cfg.Wellness.Enabled && len(s.cfg.Wellness.Members) > 0 && s.wellness != nil {
		schedule := s.cfg.Wellness.Schedule
		if schedule == "" {
			schedule = config.DefaultWellnessSchedule
		}
		err := sched.Register(WellnessTaskID, schedule, "Daily family wellness check", func(ctx context.Context, fireTime time.Time) error {
			_, err := s.wellness.Run(ctx, s.workspaceID, nil, fireTime.Format(wellness.DateLayout))
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to register wellness task: %w", err)
		}
	} else {
		slog.Info("Scheduled wellness check disabled", "component", s.Name(), "members", len(s.cfg.Wellness.Members))
	}

	if err := sched.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize scheduler: %w", err)
	}
	s.sched = sched

	slog.Info("Scheduler initialized", "component", s.Name())
	return nil
}

func (s *SchedulerComponent) Start(ctx context.Context) error {
	if s.sched == nil {
		return fmt.Errorf("scheduler not initialized")
	}

	if err := s.sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	slog.Info("Scheduler started", "component", s.Name())
	return nil
}

func (s *SchedulerComponent) Stop(ctx context.Context) error {
	if s.sched == nil {
		slog.Info("Scheduler not initialized, skipping stop", "component", s.Name())
		return nil
	}

	if err := s.sched.Stop(ctx); err != nil {
		return fmt.Errorf("failed to stop scheduler: %w", err)
	}

	slog.Info("Scheduler stopped", "component", s.Name())
	return nil
}

func (s *SchedulerComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	if s.sched == nil {
		return unhealthy(s.Name(), fmt.Errorf("not initialized")), nil
	}
	if err := s.sched.Health(ctx); err != nil {
		return unhealthy(s.Name(), err), nil
	}
	return healthy(s.Name()), nil
}

func (s *SchedulerComponent) GetScheduler() *scheduler.Scheduler {
	return s.sched
}
