package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/harunnryd/hearth/internal/daemon"
	"github.com/harunnryd/hearth/internal/daemon/components"

	"github.com/spf13/cobra"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Start Hearth in background daemon mode",
	Long:  `Starts Hearth as a long-running service. It serves the intent and approval API, releases deferred approvals after quiet hours and runs the scheduled wellness check.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		workspaceID := ResolveWorkspaceID(cmd)
		forceClean, _ := cmd.Flags().GetBool("force-clean-locks")

		if cfg == nil {
			return fmt.Errorf("config not loaded")
		}

		daemonMgr, err := daemon.NewDaemon(workspaceID, cfg)
		if err != nil {
			return fmt.Errorf("failed to create daemon manager: %w", err)
		}
		daemonMgr.SetForceCleanup(forceClean)

		storeComp := components.NewStorePoolComponent(workspaceID, cfg.Daemon.WorkspacePath, &cfg.Store)
		runtimeComp := components.NewRuntimeComponent(cfg, storeComp)
		temporalComp := components.NewTemporalComponent(&cfg.Temporal, runtimeComp)
		wellnessRunner := components.NewWellnessRunner(&cfg.Wellness, runtimeComp, temporalComp)
		schedulerComp := components.NewSchedulerComponent(cfg, runtimeComp, wellnessRunner, workspaceID)

		httpComp := components.NewHTTPServerComponent(daemonMgr, &cfg.Server)
		httpComp.SetAPI(components.NewAPI(cfg, workspaceID, storeComp, runtimeComp, wellnessRunner))
		httpComp.SetMetrics(cfg.Metrics)

		daemonMgr.AddComponent(storeComp)
		daemonMgr.AddComponent(runtimeComp)
		daemonMgr.AddComponent(temporalComp)
		daemonMgr.AddComponent(schedulerComp)
		daemonMgr.AddComponent(httpComp)

		slog.Info("Hearth daemon starting up...", "port", cfg.Server.Port, "workspace", workspaceID)
		err = daemonMgr.Start(context.Background())
		if err != nil {
			// Cancellation via signal/context is a graceful shutdown case for CLI.
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				slog.Info("Hearth daemon stopped gracefully", "workspace", workspaceID)
				return nil
			}
			return fmt.Errorf("daemon failed: %w", err)
		}

		slog.Info("Hearth daemon stopped gracefully", "workspace", workspaceID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(daemonCmd)
	daemonCmd.Flags().StringP("workspace", "w", "", "Target workspace ID")
	daemonCmd.Flags().Bool("force-clean-locks", false, "Force cleanup of stale lock files (default: warn-only)")
}
