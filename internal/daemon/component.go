package daemon

import (
	"context"
	"time"
)

type HealthStatus string

const (
	StatusStarting HealthStatus = "starting"
	StatusRunning  HealthStatus = "running"
	StatusStopping HealthStatus = "stopping"
	StatusStopped  HealthStatus = "stopped"
)

// ComponentHealth is one component's answer to a health probe. Details
// carries component-specific gauges such as open approvals or scheduled tasks.
type ComponentHealth struct {
	Name    string
	Healthy bool
	Error   error
	Details map[string]any
}

// Component is a unit of the daemon's lifecycle. Init runs in dependency
// order, Start follows the same order and Stop runs in reverse.
type Component interface {
	Name() string
	Dependencies() []string
	Init(ctx context.Context) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Health(ctx context.Context) (*ComponentHealth, error)
}

// Report is the daemon-wide health snapshot served on /health.
type Report struct {
	Status     HealthStatus           `json:"status"`
	Workspace  string                 `json:"workspace"`
	Uptime     time.Duration          `json:"-"`
	UptimeText string                 `json:"uptime"`
	Healthy    bool                   `json:"healthy"`
	Components map[string]ReportEntry `json:"components"`
}

type ReportEntry struct {
	Healthy bool           `json:"healthy"`
	Error   string         `json:"error,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}
