package main

import (
	"fmt"
	"time"

	"github.com/harunnryd/hearth/internal/config"
	"github.com/harunnryd/hearth/internal/quiethours"

	"github.com/spf13/cobra"
)

var quietHoursCmd = &cobra.Command{
	Use:   "quiet-hours",
	Short: "Show the quiet hours window for a workspace",
	Long:  `Shows the effective quiet hours window, whether it is active and when non-urgent approvals would be delivered.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		workspaceID := ResolveWorkspaceID(cmd)
		at, _ := cmd.Flags().GetString("at")

		loaded, err := loadConfigForCommand(cmd)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		qh := config.QuietHoursConfig{Start: config.DefaultQuietHoursStart, End: config.DefaultQuietHoursEnd}
		if loaded != nil {
			qh = loaded.QuietHours
		}

		now := time.Now()
		if at != "" {
			now, err = clockToday(now, at)
			if err != nil {
				return err
			}
		}

		printQuietHours(cmd, workspaceID, quiethours.FromConfig(qh, workspaceID), now)
		return nil
	},
}

func printQuietHours(cmd *cobra.Command, workspaceID string, w quiethours.Window, now time.Time) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Workspace:   %s\n", workspaceID)
	fmt.Fprintf(out, "Window:      %s\n", w)

	if w.Degenerate() {
		fmt.Fprintln(out, "Status:      disabled (start equals end)")
		return
	}

	if quiethours.IsActive(now, w) {
		fmt.Fprintf(out, "Status:      active at %s\n", now.Format("15:04"))
	} else {
		fmt.Fprintf(out, "Status:      inactive at %s\n", now.Format("15:04"))
	}
	fmt.Fprintf(out, "Next end:    %s\n", quiethours.NextEnd(now, w).Format("2006-01-02 15:04"))
	fmt.Fprintf(out, "Deliver at:  %s (high risk: immediately)\n", quiethours.DeferUntil(now, w, false).Format("2006-01-02 15:04"))
}

// clockToday places an HH:MM reading on the date of now.
func clockToday(now time.Time, hhmm string) (time.Time, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, fmt.Errorf("--at must be HH:MM: %w", err)
	}
	return time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, now.Location()), nil
}

func init() {
	quietHoursCmd.Flags().StringP("workspace", "w", "", "Target workspace ID")
	quietHoursCmd.Flags().String("at", "", "Evaluate at this local time (HH:MM) instead of now")
	rootCmd.AddCommand(quietHoursCmd)
}
