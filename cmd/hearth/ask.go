package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/harunnryd/hearth/internal/approval"
	hearthErrors "github.com/harunnryd/hearth/internal/errors"
	"github.com/harunnryd/hearth/internal/logger"
	"github.com/harunnryd/hearth/internal/skill"

	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask [text]",
	Short: "Route one request to a skill",
	Long: `Routes a single request in process and prints the result. When the skill
asks for approval you are prompted on the terminal, unless --approve or
--decline answers up front. Approvals held for quiet hours cannot outlive
this command; use the daemon for those.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		member, _ := cmd.Flags().GetString("member")
		urgencyFlag, _ := cmd.Flags().GetString("urgency")
		approve, _ := cmd.Flags().GetBool("approve")
		decline, _ := cmd.Flags().GetBool("decline")
		if approve && decline {
			return fmt.Errorf("--approve and --decline are mutually exclusive")
		}
		urgency, err := skill.ParseUrgency(urgencyFlag)
		if err != nil {
			return err
		}

		return executeWithRuntime(cmd, func(rt *localRuntime) error {
			intent := skill.NewIntent(rt.workspaceID, member, strings.Join(args, " "))
			intent.Urgency = urgency

			w := cmd.OutOrStdout()
			ctx := logger.WithTraceID(rt.ctx, intent.ID)
			out, err := rt.Executor.Handle(ctx, intent)
			if errors.Is(err, hearthErrors.ErrNoSkillMatched) {
				printOutcome(w, rt.Executor.Fallback(intent.ID))
				return nil
			}
			if err != nil {
				return err
			}

			printOutcome(w, out)
			if out.Pending == nil || out.Pending.State != approval.StatePrompted {
				return nil
			}

			var ok bool
			switch {
			case approve:
				ok = true
			case decline:
				ok = false
			default:
				ok, err = confirm(cmd.InOrStdin(), w)
				if err != nil {
					return err
				}
			}

			decided, err := rt.Executor.Decide(ctx, out.Pending.ID, ok)
			if err != nil {
				return err
			}
			fmt.Fprintln(w)
			printOutcome(w, decided)
			return nil
		})
	},
}

func confirm(in io.Reader, out io.Writer) (bool, error) {
	fmt.Fprint(out, "Approve? [y/N] ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func init() {
	askCmd.Flags().StringP("workspace", "w", "", "Target workspace ID")
	askCmd.Flags().StringP("member", "m", "", "Family member making the request")
	askCmd.Flags().String("urgency", "", "Urgency (low, normal, urgent, emergency); recorded on events, never lifts quiet hours")
	askCmd.Flags().Bool("approve", false, "Approve without prompting")
	askCmd.Flags().Bool("decline", false, "Decline without prompting")
	rootCmd.AddCommand(askCmd)
}
