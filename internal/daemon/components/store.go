package components

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/harunnryd/hearth/internal/config"
	"github.com/harunnryd/hearth/internal/daemon"
	"github.com/harunnryd/hearth/internal/store"
)

// StorePoolComponent owns the per-workspace store workers. The daemon's own
// workspace is opened eagerly so its lock is taken at startup; others open
// on first use.
type StorePoolComponent struct {
	workspaceID       string
	workspaceRootPath string
	storeCfg          *config.StoreConfig
	pool              *store.Pool
	initialized       bool
	started           bool
	mu                sync.RWMutex
	startTime         time.Time
}

func NewStorePoolComponent(workspaceID string, workspaceRootPath string, storeCfg *config.StoreConfig) *StorePoolComponent {
	return &StorePoolComponent{
		workspaceID:       workspaceID,
		workspaceRootPath: workspaceRootPath,
		storeCfg:          storeCfg,
	}
}

func (s *StorePoolComponent) Name() string {
	return "StorePool"
}

func (s *StorePoolComponent) Dependencies() []string {
	return []string{}
}

func (s *StorePoolComponent) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-ctx.Done():
		return fmt.Errorf("StorePool init cancelled: %w", ctx.Err())
	default:
	}

	var storeCfg config.StoreConfig
	if s.storeCfg != nil {
		storeCfg = *s.storeCfg
	}

	lockTimeout, err := config.DurationOrDefault(storeCfg.LockTimeout, config.DefaultStoreLockTimeout)
	if err != nil {
		return fmt.Errorf("parse store lock timeout: %w", err)
	}
	lockRetry, err := config.DurationOrDefault(storeCfg.LockRetry, config.DefaultStoreLockRetry)
	if err != nil {
		return fmt.Errorf("parse store lock retry: %w", err)
	}

	pool := store.NewPool(s.workspaceRootPath, store.RuntimeConfig{
		LockTimeout:         lockTimeout,
		LockRetry:           lockRetry,
		InboxSize:           storeCfg.InboxSize,
		EventRotateMaxBytes: storeCfg.EventRotateMaxBytes,
	})

	if _, err := pool.Worker(s.workspaceID); err != nil {
		pool.Close()
		if strings.Contains(err.Error(), "is locked by another instance") {
			return fmt.Errorf("workspace %s is locked by another instance: %w", s.workspaceID, err)
		}
		return fmt.Errorf("failed to open workspace store: %w", err)
	}

	s.pool = pool
	s.initialized = true
	slog.Info("StorePool initialized", "component", s.Name(), "workspace", s.workspaceID)
	return nil
}

func (s *StorePoolComponent) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return fmt.Errorf("StorePool not initialized")
	}

	s.started = true
	s.startTime = time.Now()
	slog.Info("StorePool started", "component", s.Name())
	return nil
}

func (s *StorePoolComponent) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pool == nil {
		slog.Info("StorePool not initialized, skipping stop", "component", s.Name())
		return nil
	}

	slog.Info("Stopping StorePool...", "component", s.Name(), "workspaces", s.pool.Workspaces())
	s.pool.Close()
	s.started = false
	slog.Info("StorePool stopped", "component", s.Name())
	return nil
}

func (s *StorePoolComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return unhealthy(s.Name(), fmt.Errorf("not initialized")), nil
	}
	if !s.started {
		return unhealthy(s.Name(), fmt.Errorf("not started")), nil
	}
	if err := s.pool.Healthy(); err != nil {
		return unhealthy(s.Name(), err), nil
	}

	return healthyWith(s.Name(), map[string]any{"workspaces": s.pool.Workspaces()}), nil
}

func (s *StorePoolComponent) GetPool() *store.Pool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pool
}

func healthy(name string) *daemon.ComponentHealth {
	return &daemon.ComponentHealth{Name: name, Healthy: true}
}

func healthyWith(name string, details map[string]any) *daemon.ComponentHealth {
	return &daemon.ComponentHealth{Name: name, Healthy: true, Details: details}
}

func unhealthy(name string, err error) *daemon.ComponentHealth {
	return &daemon.ComponentHealth{Name: name, Healthy: false, Error: err}
}
