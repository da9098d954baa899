package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/harunnryd/hearth/internal/config"
	hearthErrors "github.com/harunnryd/hearth/internal/errors"
	"github.com/harunnryd/hearth/internal/metrics"
)

type Component interface {
	Init(ctx context.Context) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Health(ctx context.Context) error
}

// Handler runs one firing of a cron task.
type Handler func(ctx context.Context, fireTime time.Time) error

// Hook runs on every tick, before cron tasks.
type Hook func(ctx context.Context, now time.Time)

type namedHook struct {
	name string
	fn   Hook
}

type Scheduler struct {
	store *Store

	mu            sync.RWMutex
	ctx           context.Context
	cancel        context.CancelFunc
	running       bool
	ticker        *time.Ticker
	inFlightTasks uint
	handlers      map[string]Handler
	hooks         []namedHook
	now           func() time.Time

	tickInterval         time.Duration
	shutdownTimeout      time.Duration
	leaseDuration        time.Duration
	maxCatchupRuns       int
	inFlightPollInterval time.Duration
}

func NewScheduler(store *Store, cfg config.SchedulerConfig) (*Scheduler, error) {
	tickInterval, err := config.DurationOrDefault(cfg.TickInterval, config.DefaultSchedulerTickInterval)
	if err != nil {
		return nil, fmt.Errorf("parse scheduler tick interval: %w", err)
	}

	shutdownTimeout, err := config.DurationOrDefault(cfg.ShutdownTimeout, config.DefaultSchedulerShutdownTimeout)
	if err != nil {
		return nil, fmt.Errorf("parse scheduler shutdown timeout: %w", err)
	}

	leaseDuration, err := config.DurationOrDefault(cfg.LeaseDuration, config.DefaultSchedulerLeaseDuration)
	if err != nil {
		return nil, fmt.Errorf("parse scheduler lease duration: %w", err)
	}

	inFlightPollInterval, err := config.DurationOrDefault(cfg.InFlightPollInterval, config.DefaultSchedulerInFlightPollInterval)
	if err != nil {
		return nil, fmt.Errorf("parse scheduler in-flight poll interval: %w", err)
	}

	maxCatchupRuns := cfg.MaxCatchupRuns
	if maxCatchupRuns <= 0 {
		maxCatchupRuns = config.DefaultSchedulerMaxCatchupRuns
	}

	return &Scheduler{
		store:                store,
		handlers:             make(map[string]Handler),
		now:                  time.Now,
		tickInterval:         tickInterval,
		shutdownTimeout:      shutdownTimeout,
		leaseDuration:        leaseDuration,
		maxCatchupRuns:       maxCatchupRuns,
		inFlightPollInterval: inFlightPollInterval,
	}, nil
}

// Register adds a cron task. Persisted NextRun survives restarts unless the
// schedule changed.
func (s *Scheduler) Register(id, schedule, description string, h Handler) error {
	if id == "" || h == nil {
		return hearthErrors.InvalidInput("task needs an id and a handler")
	}
	if _, err := s.store.Upsert(id, schedule, description, s.now()); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[id] = h
	slog.Info("Scheduled task registered", "task", id, "schedule", schedule)
	return nil
}

// AddHook registers work that runs on every tick.
func (s *Scheduler) AddHook(name string, fn Hook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, namedHook{name: name, fn: fn})
}

func (s *Scheduler) Init(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	if err := s.store.load(); err != nil {
		return fmt.Errorf("init store: %w", err)
	}

	slog.Info("Scheduler initialized")
	return nil
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.mu.Unlock()

	s.recoverExpiredLeases()
	s.processCatchUp()

	s.ticker = time.NewTicker(s.tickInterval)

	go s.run(s.ctx)

	slog.Info("Scheduler started", "tick", s.tickInterval)
	return nil
}

func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
	}

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.waitForInFlightTasks()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("Scheduler stopped gracefully")
		return nil
	case <-time.After(s.shutdownTimeout):
		slog.Warn("Scheduler shutdown timeout, force stopping")
		return hearthErrors.Internal("shutdown timeout")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) Health(ctx context.Context) error {
	if s.ctx == nil {
		return hearthErrors.Internal("scheduler not initialized")
	}

	if !s.IsRunning() {
		return hearthErrors.Internal("scheduler not running")
	}

	if _, err := s.store.LoadTasks(); err != nil {
		return fmt.Errorf("load tasks: %w", hearthErrors.ErrTransient)
	}

	return nil
}

func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Tasks returns the persisted task states.
func (s *Scheduler) Tasks() ([]Task, error) {
	return s.store.LoadTasks()
}

func (s *Scheduler) run(ctx context.Context) {
	for {
		select {
		case <-s.ticker.C:
			s.onTick(ctx)
		case <-ctx.Done():
			slog.Info("Scheduler run loop stopped")
			return
		}
	}
}

func (s *Scheduler) onTick(ctx context.Context) {
	now := s.now()
	s.runHooks(ctx, now)
	s.processCronJobs(ctx, now)
}

func (s *Scheduler) runHooks(ctx context.Context, now time.Time) {
	s.mu.RLock()
	hooks := append([]namedHook(nil), s.hooks...)
	s.mu.RUnlock()

	for _, h := range hooks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("Scheduler hook panicked", "hook", h.name, "panic", r)
				}
			}()
			h.fn(ctx, now)
		}()
	}
}

func (s *Scheduler) processCronJobs(ctx context.Context, now time.Time) {
	tasks, err := s.store.LoadTasks()
	if err != nil {
		slog.Error("Failed to load cron tasks", "error", err)
		return
	}

	for _, task := range tasks {
		s.mu.RLock()
		handler, ok := s.handlers[task.ID]
		s.mu.RUnlock()
		if !ok {
			continue
		}

		due, fireTime, err := s.store.Due(task.ID, now)
		if err != nil {
			slog.Error("Failed to check if task should fire", "task", task.ID, "error", err)
			continue
		}
		if due {
			s.executeTask(ctx, task, handler, fireTime)
		}
	}
}

func (s *Scheduler) executeTask(ctx context.Context, task Task, handler Handler, fireTime time.Time) {
	s.mu.Lock()
	s.inFlightTasks++
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.inFlightTasks--
		s.mu.Unlock()
	}()

	runID := generateRunID()
	now := s.now()
	if err := s.store.AcquireLease(task.ID, runID, now, now.Add(s.leaseDuration)); err != nil {
		slog.Error("Failed to acquire lease", "task", task.ID, "error", err)
		return
	}

	runCtx, cancel := context.WithTimeout(ctx, s.leaseDuration)
	err := runHandler(runCtx, handler, fireTime)
	cancel()

	metrics.SchedulerRuns.WithLabelValues(task.ID, metrics.Status(err)).Inc()
	if err != nil {
		slog.Error("Scheduled task failed", "task", task.ID, "run_id", runID, "error", err)
	} else {
		slog.Info("Scheduled task completed", "task", task.ID, "run_id", runID, "fire_time", fireTime)
	}

	if err := s.store.MarkTaskDone(task.ID, runID, s.now(), err); err != nil {
		slog.Error("Failed to mark task done", "task", task.ID, "error", err)
	}
}

func runHandler(ctx context.Context, h Handler, fireTime time.Time) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return h(ctx, fireTime)
}

func (s *Scheduler) recoverExpiredLeases() {
	released, err := s.store.ReleaseExpiredLeases(s.now())
	if err != nil {
		slog.Error("Failed to release expired leases", "error", err)
		return
	}
	if len(released) > 0 {
		slog.Info("Recovered expired leases", "count", len(released), "tasks", released)
	}
}

// processCatchUp only reports; every overdue task fires once on the first
// tick, never once per missed slot.
func (s *Scheduler) processCatchUp() {
	tasks, err := s.store.LoadTasks()
	if err != nil {
		slog.Error("Failed to load tasks for catch-up", "error", err)
		return
	}

	now := s.now()
	var missed []string
	for _, task := range tasks {
		if !task.NextRun.IsZero() && task.NextRun.Before(now) {
			missed = append(missed, task.ID)
		}
	}
	sort.Strings(missed)

	if len(missed) > s.maxCatchupRuns {
		slog.Warn("Too many missed runs", "missed", len(missed), "max", s.maxCatchupRuns, "tasks", missed)
	} else if len(missed) > 0 {
		slog.Info("Catching up missed runs", "tasks", missed)
	}
}

func (s *Scheduler) waitForInFlightTasks() {
	ticker := time.NewTicker(s.inFlightPollInterval)
	defer ticker.Stop()

	for {
		s.mu.RLock()
		count := s.inFlightTasks
		s.mu.RUnlock()
		if count == 0 {
			return
		}
		slog.Info("Waiting for in-flight tasks", "count", count)
		<-ticker.C
	}
}
