package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/harunnryd/hearth/internal/config"

	"github.com/spf13/cobra"
)

func TestConfigInitCmd(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	if err := configInitCmd.RunE(&cobra.Command{}, nil); err != nil {
		t.Errorf("Config init failed: %v", err)
	}

	configPath := filepath.Join(tmpDir, ".hearth", "config.yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("Config file not created at %s: %v", configPath, err)
	}
	if !strings.Contains(string(data), "quiet_hours:") {
		t.Error("Config template should contain quiet_hours section")
	}

	if err := configInitCmd.RunE(&cobra.Command{}, nil); err != nil {
		t.Errorf("Config init should succeed when config exists: %v", err)
	}
}

func TestConfigTemplateLoads(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	if err := configInitCmd.RunE(&cobra.Command{}, nil); err != nil {
		t.Fatalf("Config init failed: %v", err)
	}

	loaded, err := config.Load(nil)
	if err != nil {
		t.Fatalf("Template should load: %v", err)
	}
	if loaded.QuietHours.Start != "22:00" || loaded.QuietHours.End != "07:00" {
		t.Errorf("unexpected quiet hours %q-%q", loaded.QuietHours.Start, loaded.QuietHours.End)
	}
	if loaded.Daemon.WorkspacePath != filepath.Join(tmpDir, ".hearth", "workspaces") {
		t.Errorf("workspace path not expanded: %s", loaded.Daemon.WorkspacePath)
	}
}

func TestConfigShowCmd_MasksSecrets(t *testing.T) {
	prev := cfg
	t.Cleanup(func() { cfg = prev })
	cfg = &config.Config{
		Embedding: config.EmbeddingConfig{Provider: "openai", APIKey: "sk-secret-123456"},
	}

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	if err := configShowCmd.RunE(cmd, nil); err != nil {
		t.Fatalf("Config show failed: %v", err)
	}
	if strings.Contains(out.String(), "secret") {
		t.Fatal("config show leaked an API key")
	}
	if !strings.Contains(out.String(), "provider: openai") {
		t.Errorf("config show output missing embedding provider:\n%s", out.String())
	}
}

func TestRedactConfigSecrets(t *testing.T) {
	original := &config.Config{
		Embedding: config.EmbeddingConfig{APIKey: "sk-secret-123456"},
		Redis:     config.RedisConfig{Password: "redis-password"},
	}

	redacted := redactConfigSecrets(original)

	if redacted == nil {
		t.Fatal("redacted config should not be nil")
	}
	if redacted.Embedding.APIKey == original.Embedding.APIKey {
		t.Fatal("embedding API key should be masked")
	}
	if strings.Contains(redacted.Embedding.APIKey, "secret") {
		t.Fatal("masked API key should not leak original value")
	}
	if redacted.Redis.Password == original.Redis.Password {
		t.Fatal("redis password should be masked")
	}

	// Ensure original struct is not mutated.
	if original.Embedding.APIKey != "sk-secret-123456" {
		t.Fatal("original config must not be modified")
	}
}

func TestMaskSecret(t *testing.T) {
	if got := maskSecret(""); got != "" {
		t.Fatalf("empty secret: got %q", got)
	}
	if got := maskSecret("abc"); got != "****" {
		t.Fatalf("short secret: got %q", got)
	}

	got := maskSecret("abcdef")
	if len(got) != len("abcdef") {
		t.Fatalf("masked secret length mismatch: got %d", len(got))
	}
	if got[:2] != "ab" || got[len(got)-2:] != "ef" {
		t.Fatalf("masked secret should preserve prefix/suffix: got %q", got)
	}
}
