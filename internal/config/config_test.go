package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")

	// We pass nil for cmd to skip flags
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.Port != DefaultServerPort {
		t.Errorf("Expected default port %d, got %d", DefaultServerPort, cfg.Server.Port)
	}
	if cfg.QuietHours.Start != DefaultQuietHoursStart {
		t.Errorf("Expected default quiet hours start %s, got %s", DefaultQuietHoursStart, cfg.QuietHours.Start)
	}
	if cfg.QuietHours.End != DefaultQuietHoursEnd {
		t.Errorf("Expected default quiet hours end %s, got %s", DefaultQuietHoursEnd, cfg.QuietHours.End)
	}
	if cfg.Approval.TTL != DefaultApprovalTTL {
		t.Errorf("Expected default approval ttl %s, got %s", DefaultApprovalTTL, cfg.Approval.TTL)
	}
	if cfg.Embedding.Provider != DefaultEmbeddingProvider {
		t.Errorf("Expected default embedding provider %s, got %s", DefaultEmbeddingProvider, cfg.Embedding.Provider)
	}
	if cfg.Embedding.Dimensions != DefaultEmbeddingDimensions {
		t.Errorf("Expected default embedding dimensions %d, got %d", DefaultEmbeddingDimensions, cfg.Embedding.Dimensions)
	}
	if cfg.Redis.Enabled {
		t.Error("Expected redis sink disabled by default")
	}
	if cfg.Temporal.TaskQueue != DefaultTemporalTaskQueue {
		t.Errorf("Expected default task queue %s, got %s", DefaultTemporalTaskQueue, cfg.Temporal.TaskQueue)
	}
	if cfg.Scheduler.TickInterval != DefaultSchedulerTickInterval {
		t.Errorf("Expected default scheduler tick interval %s, got %s", DefaultSchedulerTickInterval, cfg.Scheduler.TickInterval)
	}
	if cfg.Wellness.Schedule != DefaultWellnessSchedule {
		t.Errorf("Expected default wellness schedule %s, got %s", DefaultWellnessSchedule, cfg.Wellness.Schedule)
	}
	if cfg.Wellness.RecallLimit != DefaultWellnessRecallLimit {
		t.Errorf("Expected default wellness recall limit %d, got %d", DefaultWellnessRecallLimit, cfg.Wellness.RecallLimit)
	}
	if cfg.Store.EventRotateMaxBytes != DefaultStoreEventRotateMaxBytes {
		t.Errorf("Expected default event rotate max bytes %d, got %d", DefaultStoreEventRotateMaxBytes, cfg.Store.EventRotateMaxBytes)
	}
	if cfg.Metrics.Path != DefaultMetricsPath {
		t.Errorf("Expected default metrics path %s, got %s", DefaultMetricsPath, cfg.Metrics.Path)
	}
}

func TestLoadWithConfigFlag(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	content := []byte(`
server:
  port: 9090
quiet_hours:
  start: "21:30"
  end: "06:45"
  workspaces:
    grandma:
      start: "20:00"
      end: "08:00"
wellness:
  members: [alice, bob]
`)
	if err := os.WriteFile(configPath, content, 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cmd := &cobra.Command{}
	cmd.Flags().String("config", "", "config file path")
	if err := cmd.Flags().Set("config", configPath); err != nil {
		t.Fatalf("failed to set config flag: %v", err)
	}

	cfg, err := Load(cmd)
	if err != nil {
		t.Fatalf("failed to load config with --config: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if got := cfg.QuietHours.Window("default"); got.Start != "21:30" || got.End != "06:45" {
		t.Fatalf("unexpected global window %+v", got)
	}
	if got := cfg.QuietHours.Window("grandma"); got.Start != "20:00" || got.End != "08:00" {
		t.Fatalf("unexpected workspace window %+v", got)
	}
	if len(cfg.Wellness.Members) != 2 {
		t.Fatalf("expected 2 wellness members, got %v", cfg.Wellness.Members)
	}
}

func TestLoadWithMissingConfigFlagReturnsError(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.Flags().String("config", "", "config file path")
	if err := cmd.Flags().Set("config", filepath.Join(t.TempDir(), "missing.yaml")); err != nil {
		t.Fatalf("failed to set config flag: %v", err)
	}

	if _, err := Load(cmd); err == nil {
		t.Fatal("expected error when --config points to missing file")
	}
}

func TestLoad_EmbeddingProviderPicksUpKey(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("HEARTH_EMBEDDING_PROVIDER", "openai")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Embedding.Provider != "openai" {
		t.Fatalf("provider = %q, want openai", cfg.Embedding.Provider)
	}
	if cfg.Embedding.APIKey != "sk-test" {
		t.Fatalf("api key not injected from env")
	}
	if cfg.Embedding.Model != DefaultEmbeddingOpenAIModel {
		t.Fatalf("model = %q, want %q", cfg.Embedding.Model, DefaultEmbeddingOpenAIModel)
	}
}

func TestLoad_ExpandsConfiguredPaths(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	configPath := filepath.Join(tmpDir, "config.yaml")
	content := []byte(`
daemon:
  workspace_path: ~/.hearth/workspaces
skills:
  path: $HOME/family-skills
`)
	if err := os.WriteFile(configPath, content, 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cmd := &cobra.Command{}
	cmd.Flags().String("config", "", "config file path")
	if err := cmd.Flags().Set("config", configPath); err != nil {
		t.Fatalf("set config flag: %v", err)
	}

	cfg, err := Load(cmd)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	wantWorkspacePath := filepath.Join(tmpDir, ".hearth", "workspaces")
	if cfg.Daemon.WorkspacePath != wantWorkspacePath {
		t.Fatalf("workspace path = %q, want %q", cfg.Daemon.WorkspacePath, wantWorkspacePath)
	}

	wantSkillsPath := filepath.Join(tmpDir, "family-skills")
	if cfg.Skills.Path != wantSkillsPath {
		t.Fatalf("skills path = %q, want %q", cfg.Skills.Path, wantSkillsPath)
	}
}

func TestDurationOrDefault(t *testing.T) {
	d, err := DurationOrDefault("", DefaultApprovalTTL)
	if err != nil || d.Hours() != 24 {
		t.Fatalf("DurationOrDefault fallback = %v, %v", d, err)
	}

	d, err = DurationOrDefault("0", DefaultApprovalTTL)
	if err != nil || d != 0 {
		t.Fatalf("DurationOrDefault zero = %v, %v", d, err)
	}

	if _, err := DurationOrDefault("soon", ""); err == nil {
		t.Fatal("expected parse error")
	}
}
