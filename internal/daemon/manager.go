package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/harunnryd/hearth/internal/config"
	"github.com/harunnryd/hearth/internal/metrics"
	"github.com/harunnryd/hearth/internal/store"
)

// Daemon owns the lifecycle of one workspace's components.
type Daemon struct {
	cfg          *config.Config
	workspaceID  string
	components   []Component
	initialized  []Component
	health       HealthStatus
	startedAt    time.Time
	lastHealthy  map[string]bool
	mu           sync.RWMutex
	monitorDone  chan struct{}
	forceCleanup bool
}

func NewDaemon(workspaceID string, cfg *config.Config) (*Daemon, error) {
	if workspaceID == "" {
		return nil, fmt.Errorf("workspace ID cannot be empty")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	return &Daemon{
		workspaceID: workspaceID,
		cfg:         cfg,
		health:      StatusStarting,
		lastHealthy: make(map[string]bool),
		monitorDone: make(chan struct{}),
	}, nil
}

func (d *Daemon) AddComponent(comp Component) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.components = append(d.components, comp)
	slog.Debug("Component registered", "component", comp.Name(), "total_components", len(d.components))
}

// Start runs the daemon until ctx is cancelled or the process receives
// SIGINT/SIGTERM. It returns the context error after a clean shutdown.
func (d *Daemon) Start(ctx context.Context) error {
	slog.Info("Hearth daemon starting", "workspace", d.workspaceID)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := d.validateConfig(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if err := d.preInitChecks(ctx); err != nil {
		return fmt.Errorf("pre-init checks failed: %w", err)
	}

	order, err := d.plan()
	if err != nil {
		d.setHealth(StatusStopped)
		return fmt.Errorf("component initialization failed: %w", err)
	}

	if err := d.initializeComponents(ctx, order); err != nil {
		d.rollback(ctx)
		return fmt.Errorf("component initialization failed: %w", err)
	}

	if err := d.startComponents(ctx); err != nil {
		timeout, timeoutErr := config.DurationOrDefault(d.cfg.Daemon.StartupShutdownTimeout, config.DefaultDaemonStartupShutdownTimeout)
		if timeoutErr != nil {
			return fmt.Errorf("parse daemon startup shutdown timeout: %w", timeoutErr)
		}
		d.gracefulShutdown(ctx, timeout)
		return fmt.Errorf("component startup failed: %w", err)
	}

	d.mu.Lock()
	d.health = StatusRunning
	d.startedAt = time.Now()
	d.mu.Unlock()
	slog.Info("Hearth daemon is running", "workspace", d.workspaceID, "components", len(order))

	go d.monitorHealth(ctx)

	<-ctx.Done()

	slog.Info("Context cancelled, initiating graceful shutdown", "workspace", d.workspaceID, "reason", ctx.Err())
	d.setHealth(StatusStopping)
	close(d.monitorDone)

	shutdownTimeout, err := config.DurationOrDefault(d.cfg.Daemon.ShutdownTimeout, config.DefaultDaemonShutdownTimeout)
	if err != nil {
		return fmt.Errorf("parse daemon shutdown timeout: %w", err)
	}
	if err := d.gracefulShutdown(context.Background(), shutdownTimeout); err != nil {
		return err
	}

	if errors.Is(ctx.Err(), context.Canceled) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ctx.Err()
	}
	return nil
}

func (d *Daemon) Health() HealthStatus {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.health
}

func (d *Daemon) SetForceCleanup(force bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.forceCleanup = force
}

// ComponentHealth probes every registered component. A probe that returns
// an error is reported as unhealthy.
func (d *Daemon) ComponentHealth() map[string]*ComponentHealth {
	d.mu.RLock()
	components := make([]Component, len(d.components))
	copy(components, d.components)
	d.mu.RUnlock()

	result := make(map[string]*ComponentHealth, len(components))
	for _, comp := range components {
		h, err := comp.Health(context.Background())
		if h == nil {
			h = &ComponentHealth{Name: comp.Name()}
		}
		if err != nil {
			h.Healthy = false
			h.Error = err
		}
		result[comp.Name()] = h
	}
	return result
}

// Report summarizes daemon and component health for the /health endpoint.
func (d *Daemon) Report() Report {
	healths := d.ComponentHealth()

	d.mu.RLock()
	status, startedAt := d.health, d.startedAt
	d.mu.RUnlock()

	r := Report{
		Status:     status,
		Workspace:  d.workspaceID,
		Healthy:    status == StatusRunning,
		Components: make(map[string]ReportEntry, len(healths)),
	}
	if !startedAt.IsZero() {
		r.Uptime = time.Since(startedAt).Truncate(time.Second)
		r.UptimeText = r.Uptime.String()
	}

	for name, h := range healths {
		entry := ReportEntry{Healthy: h.Healthy, Details: h.Details}
		if h.Error != nil {
			entry.Error = h.Error.Error()
		}
		if !h.Healthy {
			r.Healthy = false
		}
		r.Components[name] = entry
	}
	return r
}

func (d *Daemon) Component(name string) Component {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.getComponentByName(name)
}

func (d *Daemon) setHealth(status HealthStatus) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.health = status
}

func (d *Daemon) validateConfig() error {
	if d.cfg.Server.Port < 1 || d.cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d (must be 1-65535)", d.cfg.Server.Port)
	}

	workspacePath, err := store.GetWorkspacePath(d.workspaceID, d.cfg.Daemon.WorkspacePath)
	if err != nil {
		return fmt.Errorf("resolve workspace path: %w", err)
	}
	if err := os.MkdirAll(workspacePath, 0755); err != nil {
		return fmt.Errorf("failed to create workspace directory: %w", err)
	}

	slog.Debug("Configuration validated", "workspace", d.workspaceID, "port", d.cfg.Server.Port)
	return nil
}

// preInitChecks clears workspace locks left behind by a crashed daemon.
// With forceCleanup every lock file is removed regardless of age.
func (d *Daemon) preInitChecks(ctx context.Context) error {
	d.mu.RLock()
	force := d.forceCleanup
	d.mu.RUnlock()

	preflightTimeout, err := config.DurationOrDefault(d.cfg.Daemon.PreflightTimeout, config.DefaultDaemonPreflightTimeout)
	if err != nil {
		return fmt.Errorf("parse daemon preflight timeout: %w", err)
	}
	checkCtx, cancel := context.WithTimeout(ctx, preflightTimeout)
	defer cancel()

	workspacePath, err := store.GetWorkspacePath(d.workspaceID, d.cfg.Daemon.WorkspacePath)
	if err != nil {
		return fmt.Errorf("resolve workspace path: %w", err)
	}
	staleLockTTL, err := config.DurationOrDefault(d.cfg.Daemon.StaleLockTTL, config.DefaultDaemonStaleLockTTL)
	if err != nil {
		return fmt.Errorf("parse daemon stale lock ttl: %w", err)
	}

	if err := store.CleanupStaleLocks(workspacePath, staleLockTTL, force); err != nil {
		slog.Warn("Failed to cleanup stale locks", "workspace", d.workspaceID, "error", err)
	}

	select {
	case <-checkCtx.Done():
		return fmt.Errorf("pre-init checks cancelled: %w", checkCtx.Err())
	default:
		return nil
	}
}

// plan validates the component graph and returns the components in
// dependency order. Names must be unique and every dependency registered.
func (d *Daemon) plan() ([]Component, error) {
	d.mu.RLock()
	components := make([]Component, len(d.components))
	copy(components, d.components)
	d.mu.RUnlock()

	byName := make(map[string]Component, len(components))
	for _, comp := range components {
		if _, dup := byName[comp.Name()]; dup {
			return nil, fmt.Errorf("component %s registered twice", comp.Name())
		}
		byName[comp.Name()] = comp
	}
	for _, comp := range components {
		for _, dep := range comp.Dependencies() {
			if _, ok := byName[dep]; !ok {
				return nil, fmt.Errorf("component %s depends on %s which is not registered", comp.Name(), dep)
			}
		}
	}

	const (
		unvisited = iota
		visiting
		done
	)
	marks := make(map[string]int, len(components))
	order := make([]Component, 0, len(components))

	var visit func(comp Component) error
	visit = func(comp Component) error {
		switch marks[comp.Name()] {
		case visiting:
			return fmt.Errorf("circular dependency detected involving %s", comp.Name())
		case done:
			return nil
		}
		marks[comp.Name()] = visiting
		for _, dep := range comp.Dependencies() {
			if err := visit(byName[dep]); err != nil {
				return err
			}
		}
		marks[comp.Name()] = done
		order = append(order, comp)
		return nil
	}

	for _, comp := range components {
		if err := visit(comp); err != nil {
			return nil, err
		}
	}
	return order, nil
}

func (d *Daemon) initializeComponents(ctx context.Context, order []Component) error {
	for _, comp := range order {
		if err := comp.Init(ctx); err != nil {
			slog.Error("Component initialization failed", "component", comp.Name(), "error", err)
			return fmt.Errorf("component %s init failed: %w", comp.Name(), err)
		}
		d.mu.Lock()
		d.initialized = append(d.initialized, comp)
		d.mu.Unlock()
		slog.Debug("Component initialized", "component", comp.Name())
	}
	return nil
}

func (d *Daemon) startComponents(ctx context.Context) error {
	d.mu.RLock()
	order := make([]Component, len(d.initialized))
	copy(order, d.initialized)
	d.mu.RUnlock()

	for _, comp := range order {
		if err := comp.Start(ctx); err != nil {
			slog.Error("Component startup failed", "component", comp.Name(), "error", err)
			return fmt.Errorf("component %s startup failed: %w", comp.Name(), err)
		}
		slog.Info("Component started", "component", comp.Name())
	}
	return nil
}

func (d *Daemon) gracefulShutdown(ctx context.Context, timeout time.Duration) error {
	slog.Info("Graceful shutdown initiated", "workspace", d.workspaceID, "timeout", timeout)

	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		d.shutdownComponents(shutdownCtx)
		close(done)
	}()

	select {
	case <-done:
		slog.Info("Graceful shutdown completed", "workspace", d.workspaceID)
		return nil
	case <-shutdownCtx.Done():
		if ctx.Err() != nil {
			return fmt.Errorf("shutdown cancelled: %w", ctx.Err())
		}
		slog.Error("Shutdown timeout exceeded", "workspace", d.workspaceID, "timeout", timeout)
		return fmt.Errorf("shutdown timeout after %v", timeout)
	}
}

// shutdownComponents stops initialized components in reverse dependency
// order. Stop errors are logged and do not halt the sequence.
func (d *Daemon) shutdownComponents(ctx context.Context) {
	d.mu.Lock()
	initialized := d.initialized
	d.initialized = nil
	d.mu.Unlock()

	for i := len(initialized) - 1; i >= 0; i-- {
		comp := initialized[i]
		if err := comp.Stop(ctx); err != nil {
			slog.Error("Component stop failed", "component", comp.Name(), "error", err)
			continue
		}
		slog.Info("Component stopped", "component", comp.Name())
	}

	d.setHealth(StatusStopped)
}

func (d *Daemon) rollback(ctx context.Context) {
	slog.Warn("Rolling back initialized components", "workspace", d.workspaceID)
	d.shutdownComponents(ctx)
}

// getComponentByName expects d.mu to be held.
func (d *Daemon) getComponentByName(name string) Component {
	for _, comp := range d.components {
		if comp.Name() == name {
			return comp
		}
	}
	return nil
}

func (d *Daemon) monitorHealth(ctx context.Context) {
	interval, err := config.DurationOrDefault(d.cfg.Daemon.HealthCheckInterval, config.DefaultDaemonHealthCheckInterval)
	if err != nil {
		slog.Error("Failed to parse daemon health check interval", "error", err)
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.monitorDone:
			return
		case <-ticker.C:
			d.checkComponentHealth()
		}
	}
}

// checkComponentHealth exports each probe to the health gauge and logs
// only transitions, so a steady state stays quiet.
func (d *Daemon) checkComponentHealth() {
	healths := d.ComponentHealth()

	names := make([]string, 0, len(healths))
	for name := range healths {
		names = append(names, name)
	}
	sort.Strings(names)

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, name := range names {
		h := healths[name]
		if h.Healthy {
			metrics.ComponentHealthy.WithLabelValues(name).Set(1)
		} else {
			metrics.ComponentHealthy.WithLabelValues(name).Set(0)
		}

		prev, seen := d.lastHealthy[name]
		d.lastHealthy[name] = h.Healthy
		switch {
		case !h.Healthy && (!seen || prev):
			slog.Warn("Component unhealthy", "component", name, "error", h.Error)
		case h.Healthy && seen && !prev:
			slog.Info("Component recovered", "component", name)
		}
	}
}
