package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/harunnryd/hearth/internal/approval"
	"github.com/harunnryd/hearth/internal/skill/formatter"

	"github.com/spf13/cobra"
)

var approvalsCmd = &cobra.Command{
	Use:   "approvals",
	Short: "Review approvals held by a running daemon",
	Long:  `List, approve and deny approvals through the daemon API at server.url.`,
}

var approvalsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending approvals",
	RunE: func(cmd *cobra.Command, args []string) error {
		outputFormat, _ := cmd.Flags().GetString("output")
		all, _ := cmd.Flags().GetBool("all")
		workspaceID, _ := cmd.Flags().GetString("workspace")

		format, err := formatter.ParseOutputFormat(outputFormat)
		if err != nil {
			return err
		}
		f, err := formatter.NewFormatterFactory().Create(format)
		if err != nil {
			return err
		}

		var states []string
		if !all {
			states = []string{string(approval.StateDeferred), string(approval.StatePrompted)}
		}

		pending, err := newAPIClient(cfg).ListApprovals(cmd.Context(), workspaceID, states)
		if err != nil {
			return err
		}

		output, err := f.FormatApprovals(pending)
		if err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), output)
		return nil
	},
}

var approvalsApproveCmd = &cobra.Command{
	Use:   "approve [id]",
	Short: "Approve a prompted request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return decideRemote(cmd, args[0], true)
	},
}

var approvalsDenyCmd = &cobra.Command{
	Use:   "deny [id]",
	Short: "Decline a prompted request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return decideRemote(cmd, args[0], false)
	},
}

var approvalsHistoryCmd = &cobra.Command{
	Use:   "history [id]",
	Short: "Show the audit trail of approvals",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		workspaceID, _ := cmd.Flags().GetString("workspace")
		approvalID := ""
		if len(args) == 1 {
			approvalID = args[0]
		}

		entries, err := newAPIClient(cfg).History(cmd.Context(), workspaceID, approvalID)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No audit entries.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "TIME\tAPPROVAL\tSKILL\tRISK\tACTION")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				e.Timestamp.Local().Format("2006-01-02 15:04:05"),
				e.ApprovalID,
				e.Skill,
				e.Risk,
				e.Action)
		}
		return w.Flush()
	},
}

func decideRemote(cmd *cobra.Command, id string, approved bool) error {
	out, err := newAPIClient(cfg).Decide(cmd.Context(), id, approved)
	if err != nil {
		return err
	}
	printOutcome(cmd.OutOrStdout(), out)
	return nil
}

func init() {
	approvalsListCmd.Flags().StringP("output", "o", "table", "Output format (table|json|yaml)")
	approvalsListCmd.Flags().Bool("all", false, "Include decided approvals still in retention")

	approvalsCmd.PersistentFlags().StringP("workspace", "w", "", "Filter by workspace ID")
	approvalsCmd.AddCommand(approvalsListCmd)
	approvalsCmd.AddCommand(approvalsApproveCmd)
	approvalsCmd.AddCommand(approvalsDenyCmd)
	approvalsCmd.AddCommand(approvalsHistoryCmd)
	rootCmd.AddCommand(approvalsCmd)
}
