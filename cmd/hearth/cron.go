package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"

	"github.com/harunnryd/hearth/internal/scheduler"
	"github.com/harunnryd/hearth/internal/store"

	"github.com/spf13/cobra"
)

var cronCmd = &cobra.Command{
	Use:   "cron",
	Short: "Inspect scheduled tasks",
	Long:  `List the tasks the daemon scheduler keeps for a workspace.`,
}

var cronLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List scheduled tasks",
	Long:  `Display all scheduled tasks with their ID, schedule, description, next run and last result.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		workspaceID := ResolveWorkspaceID(cmd)
		workspaceRootPath := ""
		if cfg != nil {
			workspaceRootPath = cfg.Daemon.WorkspacePath
		}

		schedulerDir, err := store.GetSchedulerDir(workspaceID, workspaceRootPath)
		if err != nil {
			return fmt.Errorf("failed to get scheduler directory: %w", err)
		}

		tasksPath := filepath.Join(schedulerDir, "tasks.json")
		data, err := os.ReadFile(tasksPath)
		if err != nil {
			if os.IsNotExist(err) {
				fmt.Println("No tasks found (tasks file does not exist).")
				fmt.Println("\nTasks are registered when the daemon starts.")
				return nil
			}
			return fmt.Errorf("failed to read tasks file: %w", err)
		}

		var taskList scheduler.TaskList
		if err := json.Unmarshal(data, &taskList); err != nil {
			return fmt.Errorf("failed to parse tasks: %w", err)
		}

		if len(taskList.Tasks) == 0 {
			fmt.Println("No tasks scheduled.")
			fmt.Println("\nSet wellness.members to schedule the daily wellness check.")
			return nil
		}

		ids := make([]string, 0, len(taskList.Tasks))
		for id := range taskList.Tasks {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tSCHEDULE\tDESCRIPTION\tNEXT RUN\tLAST RESULT")
		for _, id := range ids {
			t := taskList.Tasks[id]
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				t.ID,
				t.Schedule,
				t.Description,
				t.NextRun.Format("2006-01-02 15:04:05"),
				lastResult(t))
		}
		if err := w.Flush(); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}

		fmt.Printf("\nTotal: %d scheduled task(s)\n", len(taskList.Tasks))
		return nil
	},
}

func lastResult(t *scheduler.Task) string {
	switch {
	case t.LastRun.IsZero():
		return "-"
	case t.LastError != "":
		return "failed: " + t.LastError
	default:
		return "ok " + t.LastRun.Format("2006-01-02 15:04")
	}
}

func init() {
	cronCmd.AddCommand(cronLsCmd)
	cronCmd.PersistentFlags().StringP("workspace", "w", "", "Target workspace ID")
	rootCmd.AddCommand(cronCmd)
}
