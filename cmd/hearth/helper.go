package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/harunnryd/hearth/internal/app"
	"github.com/harunnryd/hearth/internal/config"
	"github.com/harunnryd/hearth/internal/store"

	"github.com/spf13/cobra"
)

// localRuntime is an in-process runtime for commands that do not need the
// daemon. It takes the workspace lock, so it cannot run next to a daemon on
// the same workspace.
type localRuntime struct {
	*app.Components
	ctx         context.Context
	workspaceID string
	pool        *store.Pool
}

func executeWithRuntime(cmd *cobra.Command, fn func(*localRuntime) error) error {
	workspaceID := ResolveWorkspaceID(cmd)

	loaded, err := loadConfigForCommand(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := openPool(loaded)
	if err != nil {
		return err
	}
	defer pool.Close()

	if _, err := pool.Worker(workspaceID); err != nil {
		if strings.Contains(err.Error(), "is locked by another instance") {
			return fmt.Errorf("workspace %s is in use, stop the daemon or use the approvals commands against it: %w", workspaceID, err)
		}
		return fmt.Errorf("failed to open workspace %s: %w", workspaceID, err)
	}

	components, err := app.Build(ctx, loaded, pool)
	if err != nil {
		return fmt.Errorf("failed to initialize runtime: %w", err)
	}
	defer components.Close()

	return fn(&localRuntime{
		Components:  components,
		ctx:         ctx,
		workspaceID: workspaceID,
		pool:        pool,
	})
}

func openPool(c *config.Config) (*store.Pool, error) {
	lockTimeout, err := config.DurationOrDefault(c.Store.LockTimeout, config.DefaultStoreLockTimeout)
	if err != nil {
		return nil, fmt.Errorf("parse store lock timeout: %w", err)
	}
	lockRetry, err := config.DurationOrDefault(c.Store.LockRetry, config.DefaultStoreLockRetry)
	if err != nil {
		return nil, fmt.Errorf("parse store lock retry: %w", err)
	}

	return store.NewPool(c.Daemon.WorkspacePath, store.RuntimeConfig{
		LockTimeout:         lockTimeout,
		LockRetry:           lockRetry,
		InboxSize:           c.Store.InboxSize,
		EventRotateMaxBytes: c.Store.EventRotateMaxBytes,
	}), nil
}
