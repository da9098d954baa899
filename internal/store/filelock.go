package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/harunnryd/hearth/internal/config"

	"github.com/gofrs/flock"
)

const lockFileName = "workspace.lock"

// FileLock guards a workspace directory so only one daemon writes to it.
type FileLock struct {
	mu          sync.RWMutex
	lock        *flock.Flock
	path        string
	workspaceID string
	acquiredAt  time.Time
}

type FileLockConfig struct {
	LockTimeout time.Duration
	LockRetry   time.Duration
}

func DefaultFileLockConfig() *FileLockConfig {
	lockTimeout, _ := config.DurationOrDefault("", config.DefaultStoreLockTimeout)
	lockRetry, _ := config.DurationOrDefault("", config.DefaultStoreLockRetry)
	return &FileLockConfig{LockTimeout: lockTimeout, LockRetry: lockRetry}
}

func NewFileLock(workspaceID, basePath string, cfg *FileLockConfig) (*FileLock, error) {
	if cfg == nil {
		cfg = DefaultFileLockConfig()
	}

	path := filepath.Join(basePath, lockFileName)
	lock := flock.New(path)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.LockTimeout)
	defer cancel()

	locked, err := lock.TryLockContext(ctx, cfg.LockRetry)
	if err != nil && ctx.Err() == nil {
		return nil, fmt.Errorf("failed to attempt lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("workspace %s is locked by another instance (timeout after %v)", workspaceID, cfg.LockTimeout)
	}

	fl := &FileLock{
		lock:        lock,
		path:        path,
		workspaceID: workspaceID,
		acquiredAt:  time.Now(),
	}
	slog.Info("File lock acquired", "workspace", workspaceID, "path", path)
	return fl, nil
}

func (fl *FileLock) Unlock() {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.lock == nil {
		slog.Warn("File lock already released", "workspace", fl.workspaceID)
		return
	}

	if err := fl.lock.Unlock(); err != nil {
		slog.Error("Failed to release file lock", "workspace", fl.workspaceID, "path", fl.path, "error", err)
	} else {
		slog.Info("File lock released", "workspace", fl.workspaceID, "held_ms", time.Since(fl.acquiredAt).Milliseconds())
	}
	fl.lock = nil
}

func (fl *FileLock) IsLocked() bool {
	fl.mu.RLock()
	defer fl.mu.RUnlock()
	return fl.lock != nil
}

func (fl *FileLock) HeldDuration() time.Duration {
	fl.mu.RLock()
	defer fl.mu.RUnlock()
	if fl.lock == nil {
		return 0
	}
	return time.Since(fl.acquiredAt)
}

// CleanupStaleLocks removes a lock file older than maxAge when force is set.
// The daemon calls it before opening the store.
func CleanupStaleLocks(basePath string, maxAge time.Duration, force bool) error {
	path := filepath.Join(basePath, lockFileName)
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	age := time.Since(info.ModTime())
	if age <= maxAge {
		return nil
	}

	slog.Warn("Found stale lock file", "path", path, "age", age, "max_age", maxAge)
	if !force {
		slog.Info("Stale lock left in place (use --force-clean-locks to remove)", "path", path)
		return nil
	}

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove stale lock: %w", err)
	}
	slog.Info("Stale lock file removed", "path", path)
	return nil
}
