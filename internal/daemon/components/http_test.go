package components

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/harunnryd/hearth/internal/config"
	"github.com/harunnryd/hearth/internal/daemon"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubComponent struct {
	name   string
	health *daemon.ComponentHealth
}

func (s *stubComponent) Name() string { return s.name }
func (s *stubComponent) Dependencies() []string { return nil }
func (s *stubComponent) Init(ctx context.Context) error { return nil }
func (s *stubComponent) Start(ctx context.Context) error { return nil }
func (s *stubComponent) Stop(ctx context.Context) error { return nil }
func (s *stubComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	return s.health, nil
}

func TestHTTPServerComponent_Dependencies(t *testing.T) {
	comp := NewHTTPServerComponent(nil, &config.ServerConfig{Port: 8080})
	assert.Equal(t, []string{"Runtime"}, comp.Dependencies())

	custom := []string{"Runtime", "Scheduler"}
	comp = NewHTTPServerComponentWithDependencies(nil, &config.ServerConfig{Port: 8080}, custom)
	custom[0] = "Mutated"

	deps := comp.Dependencies()
	require.Equal(t, []string{"Runtime", "Scheduler"}, deps)
	deps[0] = "MutatedAgain"
	assert.Equal(t, "Runtime", comp.Dependencies()[0], "Dependencies() must return a copy")
}

func TestHandleHealth_WithoutDaemon(t *testing.T) {
	comp := NewHTTPServerComponent(nil, &config.ServerConfig{Port: 8080})

	rec := httptest.NewRecorder()
	comp.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHandleHealth_ReportsComponents(t *testing.T) {
	d, err := daemon.NewDaemon("family", &config.Config{})
	require.NoError(t, err)

	store := &stubComponent{name: "StorePool", health: &daemon.ComponentHealth{
		Name:    "StorePool",
		Healthy: true,
		Details: map[string]any{"workspaces": []string{"family"}},
	}}
	sched := &stubComponent{name: "Scheduler", health: &daemon.ComponentHealth{
		Name:  "Scheduler",
		Error: errors.New("task store unreadable"),
	}}
	d.AddComponent(store)
	d.AddComponent(sched)

	comp := NewHTTPServerComponent(d, &config.ServerConfig{Port: 8080})

	rec := httptest.NewRecorder()
	comp.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var report daemon.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "family", report.Workspace)
	assert.False(t, report.Healthy)
	assert.True(t, report.Components["StorePool"].Healthy)
	assert.Equal(t, "task store unreadable", report.Components["Scheduler"].Error)
	assert.NotNil(t, report.Components["StorePool"].Details["workspaces"])
}

func TestHandleHealth_RejectsOtherMethods(t *testing.T) {
	comp := NewHTTPServerComponent(nil, &config.ServerConfig{Port: 8080})

	rec := httptest.NewRecorder()
	comp.handleHealth(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandler_MountsMetrics(t *testing.T) {
	comp := NewHTTPServerComponent(nil, &config.ServerConfig{Port: 8080})
	comp.SetMetrics(config.MetricsConfig{Enabled: true, Path: "/metrics"})

	rec := httptest.NewRecorder()
	comp.handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	comp.SetMetrics(config.MetricsConfig{Enabled: false})
	rec = httptest.NewRecorder()
	comp.handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHTTPServerComponent_HealthBeforeStart(t *testing.T) {
	comp := NewHTTPServerComponent(nil, &config.ServerConfig{Port: 8080})

	h, err := comp.Health(context.Background())
	require.NoError(t, err)
	assert.False(t, h.Healthy)
	assert.EqualError(t, h.Error, "not initialized")

	require.NoError(t, comp.Init(context.Background()))
	h, err = comp.Health(context.Background())
	require.NoError(t, err)
	assert.EqualError(t, h.Error, "not started")
}
