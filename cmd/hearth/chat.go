package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/harunnryd/hearth/internal/app"
	"github.com/harunnryd/hearth/internal/approval"
	hearthErrors "github.com/harunnryd/hearth/internal/errors"
	"github.com/harunnryd/hearth/internal/executor"
	"github.com/harunnryd/hearth/internal/logger"
	"github.com/harunnryd/hearth/internal/skill"
	"github.com/harunnryd/hearth/internal/skill/formatter"

	"github.com/google/shlex"
	"github.com/spf13/cobra"
)

const maintainInterval = 30 * time.Second

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive session",
	Long: `Starts a local REPL. Plain lines are routed to skills; slash commands
manage approvals. Deferred approvals are released while the session stays
open.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		member, _ := cmd.Flags().GetString("member")

		return executeWithRuntime(cmd, func(rt *localRuntime) error {
			sig := NewSignalHandler(rt.ctx)
			sig.Start()
			defer sig.Stop()

			repl := NewREPL(rt.Components, rt.workspaceID, member, cmd.InOrStdin(), cmd.OutOrStdout())
			return repl.Start(sig.Context())
		})
	},
}

type REPL struct {
	rt          *app.Components
	workspaceID string
	memberID    string
	reader      *bufio.Reader
	out         io.Writer
}

func NewREPL(rt *app.Components, workspaceID, memberID string, in io.Reader, out io.Writer) *REPL {
	r := &REPL{
		rt:          rt,
		workspaceID: workspaceID,
		memberID:    memberID,
		reader:      bufio.NewReader(in),
		out:         out,
	}
	rt.Executor.OnResolution(func(res executor.Resolution) {
		if res.Approval.Outcome == approval.OutcomeExpired {
			printResolution(r.out, res)
		}
	})
	return r
}

func (r *REPL) Start(ctx context.Context) error {
	fmt.Fprintf(r.out, "Hearth session for workspace %s\n", r.workspaceID)
	fmt.Fprintln(r.out, "Type '/help' for commands, '/exit' to quit.")

	go r.maintain(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		fmt.Fprint(r.out, "> ")
		line, err := r.reader.ReadString('\n')
		if strings.TrimSpace(line) != "" {
			if quit := r.HandleLine(ctx, line); quit {
				return nil
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// maintain releases deferred approvals once quiet hours end and expires
// stale ones while the session is open.
func (r *REPL) maintain(ctx context.Context) {
	ticker := time.NewTicker(maintainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, p := range r.rt.Gate.Release(ctx, now) {
				fmt.Fprintln(r.out)
				printPending(r.out, p)
			}
			r.rt.Gate.Expire(ctx, now)
		}
	}
}

// HandleLine processes one input line and reports whether the session
// should end.
func (r *REPL) HandleLine(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, "/") {
		return r.command(ctx, line)
	}

	intent := skill.NewIntent(r.workspaceID, r.memberID, line)
	out, err := r.rt.Executor.Handle(logger.WithTraceID(ctx, intent.ID), intent)
	if errors.Is(err, hearthErrors.ErrNoSkillMatched) {
		out = r.rt.Executor.Fallback(intent.ID)
		err = nil
	}
	if err != nil {
		fmt.Fprintf(r.out, "Error: %v\n", err)
		return false
	}
	printOutcome(r.out, out)
	return false
}

func (r *REPL) command(ctx context.Context, input string) bool {
	parts, err := shlex.Split(input)
	if err != nil {
		parts = strings.Fields(input)
	}
	if len(parts) == 0 {
		return false
	}
	name, args := parts[0], parts[1:]
	slog.Debug("Executing slash command", "cmd", name, "workspace", r.workspaceID)

	switch name {
	case "/exit", "/quit":
		return true
	case "/approve":
		r.decide(ctx, args, true)
	case "/deny":
		r.decide(ctx, args, false)
	case "/pending":
		r.pending()
	case "/help":
		fmt.Fprintln(r.out, "Available commands: /help, /pending, /approve [id], /deny [id], /exit")
	default:
		fmt.Fprintf(r.out, "Unknown command: %s\n", name)
	}
	return false
}

func (r *REPL) decide(ctx context.Context, args []string, approved bool) {
	id, err := r.resolveID(args)
	if err != nil {
		fmt.Fprintln(r.out, err)
		return
	}

	out, err := r.rt.Executor.Decide(ctx, id, approved)
	if err != nil {
		fmt.Fprintf(r.out, "Command failed: %v\n", err)
		return
	}
	printOutcome(r.out, out)
}

// resolveID accepts an explicit id or, with no arguments, the only prompted
// approval in the workspace.
func (r *REPL) resolveID(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}

	prompted := r.rt.Gate.List(approval.Filter{
		WorkspaceID: r.workspaceID,
		States:      []approval.State{approval.StatePrompted},
	})
	switch len(prompted) {
	case 0:
		return "", fmt.Errorf("nothing is waiting for approval")
	case 1:
		return prompted[0].ID, nil
	default:
		return "", fmt.Errorf("%d approvals are waiting, pass an id (see /pending)", len(prompted))
	}
}

func (r *REPL) pending() {
	open := r.rt.Gate.List(approval.Filter{
		WorkspaceID: r.workspaceID,
		States:      []approval.State{approval.StateDeferred, approval.StatePrompted},
	})
	table, err := formatter.NewTableFormatter().FormatApprovals(open)
	if err != nil {
		fmt.Fprintf(r.out, "Command failed: %v\n", err)
		return
	}
	fmt.Fprintln(r.out, table)
}

func init() {
	chatCmd.Flags().StringP("workspace", "w", "", "Target workspace ID")
	chatCmd.Flags().StringP("member", "m", "", "Family member in this session")
	rootCmd.AddCommand(chatCmd)
}
