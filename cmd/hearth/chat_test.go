package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/harunnryd/hearth/internal/app"
	"github.com/harunnryd/hearth/internal/approval"
	"github.com/harunnryd/hearth/internal/config"
)

func newTestREPL(t *testing.T, input string) (*REPL, *app.Components, *bytes.Buffer) {
	t.Helper()
	root := t.TempDir()
	c := &config.Config{
		Daemon:     config.DaemonConfig{WorkspacePath: filepath.Join(root, "workspaces")},
		Skills:     config.SkillsConfig{Path: filepath.Join(root, "skills")},
		Embedding:  config.EmbeddingConfig{Provider: "hash", Dimensions: 64},
		QuietHours: config.QuietHoursConfig{Start: "00:00", End: "00:00"},
		Approval:   config.ApprovalConfig{TTL: "1h"},
	}

	pool, err := openPool(c)
	if err != nil {
		t.Fatalf("openPool failed: %v", err)
	}
	t.Cleanup(pool.Close)
	if _, err := pool.Worker("family"); err != nil {
		t.Fatalf("open worker failed: %v", err)
	}

	rt, err := app.Build(context.Background(), c, pool)
	if err != nil {
		t.Fatalf("app.Build failed: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })

	var out bytes.Buffer
	return NewREPL(rt, "family", "mom", strings.NewReader(input), &out), rt, &out
}

func TestREPL_HandleLineRoutesToSkill(t *testing.T) {
	repl, _, out := newTestREPL(t, "")

	if quit := repl.HandleLine(context.Background(), "get me an uber to the airport"); quit {
		t.Fatal("plain text should not end the session")
	}
	if !strings.Contains(out.String(), "RIDE OPTIONS") {
		t.Errorf("expected transportation response, got:\n%s", out.String())
	}
}

func TestREPL_UnmatchedLineGetsFallback(t *testing.T) {
	repl, _, out := newTestREPL(t, "")

	repl.HandleLine(context.Background(), "xyzzy plugh")
	if strings.Contains(out.String(), "Error") {
		t.Errorf("unmatched text should not print an error, got:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "I can help with") {
		t.Errorf("expected fallback, got:\n%s", out.String())
	}
}

func TestREPL_ApproveSinglePrompted(t *testing.T) {
	repl, rt, out := newTestREPL(t, "")
	ctx := context.Background()

	repl.HandleLine(ctx, "call the restaurant and book a table")
	if !strings.Contains(out.String(), "Approval needed [high risk] from telephony") {
		t.Fatalf("expected approval prompt, got:\n%s", out.String())
	}

	out.Reset()
	repl.HandleLine(ctx, "/pending")
	if !strings.Contains(out.String(), "telephony") {
		t.Errorf("/pending should list the prompted approval, got:\n%s", out.String())
	}

	out.Reset()
	repl.HandleLine(ctx, "/approve")
	if !strings.Contains(out.String(), "PHONE CALL SETUP") {
		t.Errorf("expected approved response, got:\n%s", out.String())
	}

	open := rt.Gate.List(approval.Filter{WorkspaceID: "family", States: []approval.State{approval.StatePrompted}})
	if len(open) != 0 {
		t.Errorf("expected no prompted approvals left, got %d", len(open))
	}

	out.Reset()
	repl.HandleLine(ctx, "/deny")
	if !strings.Contains(out.String(), "nothing is waiting for approval") {
		t.Errorf("expected empty queue message, got:\n%s", out.String())
	}
}

func TestREPL_DecideRequiresIDWhenAmbiguous(t *testing.T) {
	repl, _, out := newTestREPL(t, "")
	ctx := context.Background()

	repl.HandleLine(ctx, "call the restaurant and book a table")
	repl.HandleLine(ctx, "call the doctor to move my appointment")

	out.Reset()
	repl.HandleLine(ctx, "/approve")
	if !strings.Contains(out.String(), "2 approvals are waiting") {
		t.Errorf("expected ambiguity message, got:\n%s", out.String())
	}

	out.Reset()
	repl.HandleLine(ctx, "/deny missing-id")
	if !strings.Contains(out.String(), "Command failed") {
		t.Errorf("expected failure for unknown id, got:\n%s", out.String())
	}
}

func TestREPL_Commands(t *testing.T) {
	repl, _, out := newTestREPL(t, "")
	ctx := context.Background()

	if repl.HandleLine(ctx, "/help") {
		t.Fatal("/help should not end the session")
	}
	if !strings.Contains(out.String(), "/approve [id]") {
		t.Errorf("help output missing commands:\n%s", out.String())
	}

	out.Reset()
	repl.HandleLine(ctx, "/bogus")
	if !strings.Contains(out.String(), "Unknown command: /bogus") {
		t.Errorf("expected unknown command message, got:\n%s", out.String())
	}

	if !repl.HandleLine(ctx, "/exit") || !repl.HandleLine(ctx, "/quit") {
		t.Error("/exit and /quit should end the session")
	}
}

func TestREPL_StartStopsAtExit(t *testing.T) {
	repl, _, out := newTestREPL(t, "xyzzy plugh\n/exit\nget me an uber\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := repl.Start(ctx); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if !strings.Contains(out.String(), "Error:") {
		t.Errorf("unmatched request should print an error, got:\n%s", out.String())
	}
	if strings.Contains(out.String(), "RIDE OPTIONS") {
		t.Error("lines after /exit should not be handled")
	}
}

func TestREPL_StartStopsAtEOF(t *testing.T) {
	repl, _, _ := newTestREPL(t, "get me an uber")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := repl.Start(ctx); err != nil {
		t.Fatalf("Start returned error at EOF: %v", err)
	}
}
