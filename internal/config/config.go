package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"
)

type Config struct {
	Server     ServerConfig     `koanf:"server" yaml:"server"`
	Daemon     DaemonConfig     `koanf:"daemon" yaml:"daemon"`
	Store      StoreConfig      `koanf:"store" yaml:"store"`
	QuietHours QuietHoursConfig `koanf:"quiet_hours" yaml:"quiet_hours"`
	Approval   ApprovalConfig   `koanf:"approval" yaml:"approval"`
	Skills     SkillsConfig     `koanf:"skills" yaml:"skills"`
	Embedding  EmbeddingConfig  `koanf:"embedding" yaml:"embedding"`
	Redis      RedisConfig      `koanf:"redis" yaml:"redis"`
	Temporal   TemporalConfig   `koanf:"temporal" yaml:"temporal"`
	Scheduler  SchedulerConfig  `koanf:"scheduler" yaml:"scheduler"`
	Wellness   WellnessConfig   `koanf:"wellness" yaml:"wellness"`
	Metrics    MetricsConfig    `koanf:"metrics" yaml:"metrics"`
}

type ServerConfig struct {
	Port            int    `koanf:"port" yaml:"port"`
	LogLevel        string `koanf:"log_level" yaml:"log_level"`
	ReadTimeout     string `koanf:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    string `koanf:"write_timeout" yaml:"write_timeout"`
	IdleTimeout     string `koanf:"idle_timeout" yaml:"idle_timeout"`
	ShutdownTimeout string `koanf:"shutdown_timeout" yaml:"shutdown_timeout"`
	// URL is used by CLI commands that talk to a running daemon.
	URL string `koanf:"url" yaml:"url"`
}

type DaemonConfig struct {
	ShutdownTimeout        string `koanf:"shutdown_timeout" yaml:"shutdown_timeout"`
	HealthCheckInterval    string `koanf:"health_check_interval" yaml:"health_check_interval"`
	StartupShutdownTimeout string `koanf:"startup_shutdown_timeout" yaml:"startup_shutdown_timeout"`
	PreflightTimeout       string `koanf:"preflight_timeout" yaml:"preflight_timeout"`
	StaleLockTTL           string `koanf:"stale_lock_ttl" yaml:"stale_lock_ttl"`
	WorkspacePath          string `koanf:"workspace_path" yaml:"workspace_path"`
}

type StoreConfig struct {
	LockTimeout         string `koanf:"lock_timeout" yaml:"lock_timeout"`
	LockRetry           string `koanf:"lock_retry" yaml:"lock_retry"`
	InboxSize           int    `koanf:"inbox_size" yaml:"inbox_size"`
	EventRotateMaxBytes int64  `koanf:"event_rotate_max_bytes" yaml:"event_rotate_max_bytes"`
	IdempotencyTTL      string `koanf:"idempotency_ttl" yaml:"idempotency_ttl"`
}

// QuietHoursWindow is a "HH:MM" pair. Parsing is lenient, see quiethours.Parse.
type QuietHoursWindow struct {
	Start string `koanf:"start" yaml:"start"`
	End   string `koanf:"end" yaml:"end"`
}

type QuietHoursConfig struct {
	Start      string                      `koanf:"start" yaml:"start"`
	End        string                      `koanf:"end" yaml:"end"`
	Workspaces map[string]QuietHoursWindow `koanf:"workspaces" yaml:"workspaces,omitempty"`
}

// Window returns the quiet hours for a workspace, falling back to the global pair.
func (q QuietHoursConfig) Window(workspaceID string) QuietHoursWindow {
	if w, ok := q.Workspaces[workspaceID]; ok {
		return w
	}
	return QuietHoursWindow{Start: q.Start, End: q.End}
}

type ApprovalConfig struct {
	// TTL bounds how long an approval may stay pending. "0" disables expiry.
	TTL string `koanf:"ttl" yaml:"ttl"`
	// Retention is how long decided approvals stay queryable before pruning.
	Retention      string   `koanf:"retention" yaml:"retention"`
	AuditLog       bool     `koanf:"audit_log" yaml:"audit_log"`
	RedactPatterns []string `koanf:"redact_patterns" yaml:"redact_patterns"`
	ResultsBuffer  int      `koanf:"results_buffer" yaml:"results_buffer"`
}

type SkillsConfig struct {
	Path     string   `koanf:"path" yaml:"path"`
	Disabled []string `koanf:"disabled" yaml:"disabled"`
}

type EmbeddingConfig struct {
	Provider       string `koanf:"provider" yaml:"provider"`
	Model          string `koanf:"model" yaml:"model"`
	APIKey         string `koanf:"api_key" yaml:"api_key"`
	BaseURL        string `koanf:"base_url" yaml:"base_url"`
	Dimensions     int    `koanf:"dimensions" yaml:"dimensions"`
	RequestTimeout string `koanf:"request_timeout" yaml:"request_timeout"`
}

type RedisConfig struct {
	Enabled      bool   `koanf:"enabled" yaml:"enabled"`
	Addr         string `koanf:"addr" yaml:"addr"`
	Password     string `koanf:"password" yaml:"password"`
	DB           int    `koanf:"db" yaml:"db"`
	StreamPrefix string `koanf:"stream_prefix" yaml:"stream_prefix"`
	StreamMaxLen int64  `koanf:"stream_max_len" yaml:"stream_max_len"`
}

type TemporalConfig struct {
	Enabled         bool   `koanf:"enabled" yaml:"enabled"`
	HostPort        string `koanf:"host_port" yaml:"host_port"`
	Namespace       string `koanf:"namespace" yaml:"namespace"`
	TaskQueue       string `koanf:"task_queue" yaml:"task_queue"`
	ActivityTimeout string `koanf:"activity_timeout" yaml:"activity_timeout"`
}

type SchedulerConfig struct {
	TickInterval         string `koanf:"tick_interval" yaml:"tick_interval"`
	ShutdownTimeout      string `koanf:"shutdown_timeout" yaml:"shutdown_timeout"`
	LeaseDuration        string `koanf:"lease_duration" yaml:"lease_duration"`
	MaxCatchupRuns       int    `koanf:"max_catchup_runs" yaml:"max_catchup_runs"`
	InFlightPollInterval string `koanf:"in_flight_poll_interval" yaml:"in_flight_poll_interval"`
}

type WellnessConfig struct {
	Enabled     bool     `koanf:"enabled" yaml:"enabled"`
	Schedule    string   `koanf:"schedule" yaml:"schedule"`
	Members     []string `koanf:"members" yaml:"members"`
	RecallLimit int      `koanf:"recall_limit" yaml:"recall_limit"`
}

type MetricsConfig struct {
	Enabled bool   `koanf:"enabled" yaml:"enabled"`
	Path    string `koanf:"path" yaml:"path"`
}

const (
	DefaultWorkspaceID                   = "default"
	DefaultServerPort                    = 8080
	DefaultServerLogLevel                = "info"
	DefaultServerReadTimeout             = "10s"
	DefaultServerWriteTimeout            = "30s"
	DefaultServerIdleTimeout             = "60s"
	DefaultServerShutdownTimeout         = "5s"
	DefaultServerURL                     = "http://127.0.0.1:8080"
	DefaultDaemonShutdownTimeout         = "30s"
	DefaultDaemonHealthCheckInterval     = "30s"
	DefaultDaemonStartupShutdownTimeout  = "10s"
	DefaultDaemonPreflightTimeout        = "10s"
	DefaultDaemonStaleLockTTL            = "15m"
	DefaultStoreLockTimeout              = "30s"
	DefaultStoreLockRetry                = "100ms"
	DefaultStoreInboxSize                = 100
	DefaultStoreEventRotateMaxBytes      = 10 * 1024 * 1024
	DefaultStoreIdempotencyTTL           = "24h"
	DefaultQuietHoursStart               = "22:00"
	DefaultQuietHoursEnd                 = "07:00"
	DefaultApprovalTTL                   = "24h"
	DefaultApprovalRetention             = "24h"
	DefaultApprovalAuditLog              = true
	DefaultApprovalResultsBuffer         = 64
	DefaultEmbeddingProvider             = "hash"
	DefaultEmbeddingOpenAIModel          = "text-embedding-3-small"
	DefaultEmbeddingGeminiModel          = "text-embedding-004"
	DefaultEmbeddingDimensions           = 256
	DefaultEmbeddingRequestTimeout       = "15s"
	DefaultRedisAddr                     = "localhost:6379"
	DefaultRedisStreamPrefix             = "hearth:events"
	DefaultRedisStreamMaxLen             = 10000
	DefaultTemporalHostPort              = "localhost:7233"
	DefaultTemporalNamespace             = "default"
	DefaultTemporalTaskQueue             = "hearth-tasks"
	DefaultTemporalActivityTimeout       = "30s"
	DefaultSchedulerTickInterval         = "1m"
	DefaultSchedulerShutdownTimeout      = "30s"
	DefaultSchedulerLeaseDuration        = "5m"
	DefaultSchedulerMaxCatchupRuns       = 1
	DefaultSchedulerInFlightPollInterval = "100ms"
	DefaultWellnessSchedule              = "0 21 * * *"
	DefaultWellnessRecallLimit           = 20
	DefaultMetricsPath                   = "/metrics"
)

func Load(cmd *cobra.Command) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"server.port":                       DefaultServerPort,
		"server.log_level":                  DefaultServerLogLevel,
		"server.read_timeout":               DefaultServerReadTimeout,
		"server.write_timeout":              DefaultServerWriteTimeout,
		"server.idle_timeout":               DefaultServerIdleTimeout,
		"server.shutdown_timeout":           DefaultServerShutdownTimeout,
		"server.url":                        DefaultServerURL,
		"daemon.shutdown_timeout":           DefaultDaemonShutdownTimeout,
		"daemon.health_check_interval":      DefaultDaemonHealthCheckInterval,
		"daemon.startup_shutdown_timeout":   DefaultDaemonStartupShutdownTimeout,
		"daemon.preflight_timeout":          DefaultDaemonPreflightTimeout,
		"daemon.stale_lock_ttl":             DefaultDaemonStaleLockTTL,
		"daemon.workspace_path":             filepath.Join(os.Getenv("HOME"), ".hearth", "workspaces"),
		"store.lock_timeout":                DefaultStoreLockTimeout,
		"store.lock_retry":                  DefaultStoreLockRetry,
		"store.inbox_size":                  DefaultStoreInboxSize,
		"store.event_rotate_max_bytes":      DefaultStoreEventRotateMaxBytes,
		"store.idempotency_ttl":             DefaultStoreIdempotencyTTL,
		"quiet_hours.start":                 DefaultQuietHoursStart,
		"quiet_hours.end":                   DefaultQuietHoursEnd,
		"approval.ttl":                      DefaultApprovalTTL,
		"approval.retention":                DefaultApprovalRetention,
		"approval.audit_log":                DefaultApprovalAuditLog,
		"approval.results_buffer":           DefaultApprovalResultsBuffer,
		"skills.path":                       filepath.Join(os.Getenv("HOME"), ".hearth", "skills"),
		"embedding.provider":                DefaultEmbeddingProvider,
		"embedding.dimensions":              DefaultEmbeddingDimensions,
		"embedding.request_timeout":         DefaultEmbeddingRequestTimeout,
		"redis.enabled":                     false,
		"redis.addr":                        DefaultRedisAddr,
		"redis.stream_prefix":               DefaultRedisStreamPrefix,
		"redis.stream_max_len":              DefaultRedisStreamMaxLen,
		"temporal.enabled":                  false,
		"temporal.host_port":                DefaultTemporalHostPort,
		"temporal.namespace":                DefaultTemporalNamespace,
		"temporal.task_queue":               DefaultTemporalTaskQueue,
		"temporal.activity_timeout":         DefaultTemporalActivityTimeout,
		"scheduler.tick_interval":           DefaultSchedulerTickInterval,
		"scheduler.shutdown_timeout":        DefaultSchedulerShutdownTimeout,
		"scheduler.lease_duration":          DefaultSchedulerLeaseDuration,
		"scheduler.max_catchup_runs":        DefaultSchedulerMaxCatchupRuns,
		"scheduler.in_flight_poll_interval": DefaultSchedulerInFlightPollInterval,
		"wellness.enabled":                  true,
		"wellness.schedule":                 DefaultWellnessSchedule,
		"wellness.recall_limit":             DefaultWellnessRecallLimit,
		"metrics.enabled":                   true,
		"metrics.path":                      DefaultMetricsPath,
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	configPath := ""
	if cmd != nil {
		if flag := cmd.Flags().Lookup("config"); flag != nil {
			configPath = strings.TrimSpace(flag.Value.String())
		}
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, err
		}
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			globalPath := filepath.Join(home, ".hearth", "config.yaml")
			if err := k.Load(file.Provider(globalPath), yaml.Parser()); err != nil {
				slog.Debug("Global config not found or invalid", "path", globalPath, "error", err)
			}
		}
	}

	k.Load(env.Provider("HEARTH_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "HEARTH_")), "_", ".", -1)
	}), nil)

	if cmd != nil {
		k.Load(posflag.Provider(cmd.Flags(), ".", k), nil)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	if err := normalizePathFields(&cfg); err != nil {
		return nil, err
	}

	applyEmbeddingDefaults(&cfg.Embedding)

	return &cfg, nil
}

// applyEmbeddingDefaults fills the model for the chosen provider and picks up
// the provider's standard key variable when the config leaves it empty.
func applyEmbeddingDefaults(e *EmbeddingConfig) {
	e.Provider = strings.ToLower(strings.TrimSpace(e.Provider))
	switch e.Provider {
	case "openai":
		if e.Model == "" {
			e.Model = DefaultEmbeddingOpenAIModel
		}
		if e.APIKey == "" {
			e.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	case "gemini":
		if e.Model == "" {
			e.Model = DefaultEmbeddingGeminiModel
		}
		if e.APIKey == "" {
			e.APIKey = os.Getenv("GEMINI_API_KEY")
		}
	case "":
		e.Provider = DefaultEmbeddingProvider
	}
	if e.Dimensions <= 0 {
		e.Dimensions = DefaultEmbeddingDimensions
	}
}

func normalizePathFields(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	workspacePath, err := ExpandPath(cfg.Daemon.WorkspacePath)
	if err != nil {
		return err
	}
	if workspacePath != "" {
		cfg.Daemon.WorkspacePath = workspacePath
	}

	skillsPath, err := ExpandPath(cfg.Skills.Path)
	if err != nil {
		return err
	}
	if skillsPath != "" {
		cfg.Skills.Path = skillsPath
	}

	return nil
}
