package main

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/harunnryd/hearth/internal/daemon/components"
	"github.com/harunnryd/hearth/internal/wellness"

	"github.com/spf13/cobra"
)

var wellnessCmd = &cobra.Command{
	Use:   "wellness",
	Short: "Family wellness aggregation",
}

var wellnessRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the daily wellness check once",
	Long: `Scores each member from the day's stored activity and stores the family
summary. Runs in process by default; --remote asks the running daemon, which
uses Temporal when it is enabled.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		members, _ := cmd.Flags().GetStringSlice("members")
		date, _ := cmd.Flags().GetString("date")
		remote, _ := cmd.Flags().GetBool("remote")
		asJSON, _ := cmd.Flags().GetBool("json")

		if remote {
			workspaceID, _ := cmd.Flags().GetString("workspace")
			summary, err := newAPIClient(cfg).Wellness(cmd.Context(), components.WellnessRequest{
				WorkspaceID: workspaceID,
				Members:     members,
				Date:        date,
			})
			if err != nil {
				return err
			}
			return printSummary(cmd, summary, asJSON)
		}

		return executeWithRuntime(cmd, func(rt *localRuntime) error {
			if len(members) == 0 && cfg != nil {
				members = cfg.Wellness.Members
			}
			summary, err := rt.Wellness.Run(rt.ctx, rt.workspaceID, members, date)
			if err != nil {
				return err
			}
			return printSummary(cmd, summary, asJSON)
		})
	},
}

func printSummary(cmd *cobra.Command, s *wellness.DailySummary, asJSON bool) error {
	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}

	fmt.Fprintf(out, "Wellness for %s on %s: %d/100\n", s.WorkspaceID, s.Date, s.OverallScore)

	names := make([]string, 0, len(s.MemberScores))
	for name := range s.MemberScores {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "  %-12s %3d\n", name, s.MemberScores[name].Score)
	}
	for _, name := range s.Failed {
		fmt.Fprintf(out, "  %s: recall failed, scored from no records\n", name)
	}
	return nil
}

func init() {
	wellnessRunCmd.Flags().StringP("workspace", "w", "", "Target workspace ID")
	wellnessRunCmd.Flags().StringSlice("members", nil, "Members to score (default wellness.members)")
	wellnessRunCmd.Flags().String("date", "", "Day to score, YYYY-MM-DD (default today)")
	wellnessRunCmd.Flags().Bool("remote", false, "Run through the daemon API")
	wellnessRunCmd.Flags().Bool("json", false, "Print the summary as JSON")
	wellnessCmd.AddCommand(wellnessRunCmd)
	rootCmd.AddCommand(wellnessCmd)
}
