package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/harunnryd/hearth/internal/quiethours"

	"github.com/spf13/cobra"
)

func TestClockToday(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 30, 15, 0, time.UTC)

	got, err := clockToday(now, "23:05")
	if err != nil {
		t.Fatalf("clockToday failed: %v", err)
	}
	want := time.Date(2025, 3, 14, 23, 5, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	if _, err := clockToday(now, "late"); err == nil {
		t.Error("expected error for malformed time")
	}
}

func TestPrintQuietHours(t *testing.T) {
	tests := []struct {
		name   string
		window quiethours.Window
		now    time.Time
		want   []string
	}{
		{
			name:   "active overnight",
			window: quiethours.Parse("22:00", "07:00"),
			now:    time.Date(2025, 3, 14, 23, 0, 0, 0, time.UTC),
			want:   []string{"Window:      22:00-07:00", "active at 23:00", "Next end:    2025-03-15 07:00", "Deliver at:  2025-03-15 07:00"},
		},
		{
			name:   "inactive",
			window: quiethours.Parse("22:00", "07:00"),
			now:    time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC),
			want:   []string{"inactive at 12:00", "Deliver at:  2025-03-14 12:00"},
		},
		{
			name:   "degenerate",
			window: quiethours.Parse("00:00", "00:00"),
			now:    time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC),
			want:   []string{"disabled (start equals end)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			cmd := &cobra.Command{}
			cmd.SetOut(&out)

			printQuietHours(cmd, "family", tt.window, tt.now)

			for _, w := range tt.want {
				if !strings.Contains(out.String(), w) {
					t.Errorf("output missing %q:\n%s", w, out.String())
				}
			}
		})
	}
}

func TestResolveWorkspaceID(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.Flags().StringP("workspace", "w", "", "")

	if got := ResolveWorkspaceID(cmd); got == "" {
		t.Fatal("expected default workspace ID")
	}

	_ = cmd.Flags().Set("workspace", "  grandma ")
	if got := ResolveWorkspaceID(cmd); got != "grandma" {
		t.Errorf("expected trimmed workspace, got %q", got)
	}
}

func TestRootQuietHoursFlagsOverrideConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	prev := cfg
	var out bytes.Buffer
	t.Cleanup(func() {
		cfg = prev
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		_ = rootCmd.PersistentFlags().Set("quiet_hours.start", "")
		_ = quietHoursCmd.Flags().Set("at", "")
	})

	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"quiet-hours", "--quiet_hours.start", "21:00", "--at", "21:30"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("quiet-hours failed: %v", err)
	}
	if !strings.Contains(out.String(), "active at 21:30") || strings.Contains(out.String(), "inactive") {
		t.Errorf("expected the flag's start to apply, got:\n%s", out.String())
	}
}
