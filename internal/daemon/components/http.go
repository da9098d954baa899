package components

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/harunnryd/hearth/internal/config"
	"github.com/harunnryd/hearth/internal/daemon"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var defaultHTTPDependencies = []string{"Runtime"}

type HTTPServerComponent struct {
	daemon       *daemon.Daemon
	cfg          *config.ServerConfig
	dependencies []string
	api          *API
	metrics      config.MetricsConfig
	server       *http.Server
	shutdownTTL  time.Duration
	initialized  bool
	started      bool
	mu           sync.RWMutex
	startTime    time.Time
}

func NewHTTPServerComponent(d *daemon.Daemon, cfg *config.ServerConfig) *HTTPServerComponent {
	return NewHTTPServerComponentWithDependencies(d, cfg, defaultHTTPDependencies)
}

func NewHTTPServerComponentWithDependencies(d *daemon.Daemon, cfg *config.ServerConfig, dependencies []string) *HTTPServerComponent {
	return &HTTPServerComponent{
		daemon:       d,
		cfg:          cfg,
		dependencies: append([]string(nil), dependencies...),
	}
}

// SetAPI mounts the /v1 routes.
func (h *HTTPServerComponent) SetAPI(api *API) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.api = api
}

// SetMetrics serves Prometheus collectors at cfg.Path when enabled.
func (h *HTTPServerComponent) SetMetrics(cfg config.MetricsConfig) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.metrics = cfg
}

func (h *HTTPServerComponent) Name() string {
	return "HTTPServer"
}

func (h *HTTPServerComponent) Dependencies() []string {
	return append([]string(nil), h.dependencies...)
}

func (h *HTTPServerComponent) Init(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", h.cfg.Port),
		Handler: h.handler(),
	}

	readTimeout, err := config.DurationOrDefault(h.cfg.ReadTimeout, config.DefaultServerReadTimeout)
	if err != nil {
		return fmt.Errorf("parse server read timeout: %w", err)
	}
	writeTimeout, err := config.DurationOrDefault(h.cfg.WriteTimeout, config.DefaultServerWriteTimeout)
	if err != nil {
		return fmt.Errorf("parse server write timeout: %w", err)
	}
	idleTimeout, err := config.DurationOrDefault(h.cfg.IdleTimeout, config.DefaultServerIdleTimeout)
	if err != nil {
		return fmt.Errorf("parse server idle timeout: %w", err)
	}
	shutdownTimeout, err := config.DurationOrDefault(h.cfg.ShutdownTimeout, config.DefaultServerShutdownTimeout)
	if err != nil {
		return fmt.Errorf("parse server shutdown timeout: %w", err)
	}

	h.server.ReadTimeout = readTimeout
	h.server.WriteTimeout = writeTimeout
	h.server.IdleTimeout = idleTimeout
	h.shutdownTTL = shutdownTimeout

	h.initialized = true
	slog.Info("HTTPServer initialized", "component", h.Name(), "port", h.cfg.Port)
	return nil
}

func (h *HTTPServerComponent) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.initialized {
		return fmt.Errorf("HTTPServer not initialized")
	}

	ln, err := net.Listen("tcp", h.server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", h.server.Addr, err)
	}

	go func() {
		slog.Info("HTTP server listening", "component", h.Name(), "addr", ln.Addr().String())
		if err := h.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server failed", "component", h.Name(), "error", err)
		}
	}()

	h.started = true
	h.startTime = time.Now()
	slog.Info("HTTPServer started", "component", h.Name())
	return nil
}

func (h *HTTPServerComponent) Stop(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.started {
		slog.Info("HTTPServer not started, skipping stop", "component", h.Name())
		return nil
	}

	slog.Info("Stopping HTTPServer...", "component", h.Name())
	shutdownCtx, cancel := context.WithTimeout(ctx, h.shutdownTTL)
	defer cancel()

	if err := h.server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTPServer shutdown error", "component", h.Name(), "error", err)
		return err
	}

	h.started = false
	slog.Info("HTTPServer stopped", "component", h.Name())
	return nil
}

func (h *HTTPServerComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if !h.initialized {
		return &daemon.ComponentHealth{
			Name:    h.Name(),
			Healthy: false,
			Error:   fmt.Errorf("not initialized"),
		}, nil
	}

	if !h.started {
		return &daemon.ComponentHealth{
			Name:    h.Name(),
			Healthy: false,
			Error:   fmt.Errorf("not started"),
		}, nil
	}

	return &daemon.ComponentHealth{
		Name:    h.Name(),
		Healthy: true,
		Details: map[string]any{
			"addr":   h.server.Addr,
			"uptime": time.Since(h.startTime).Truncate(time.Second).String(),
		},
	}, nil
}

// handler builds the mux; the caller holds h.mu.
func (h *HTTPServerComponent) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleHealth)

	if h.api != nil {
		h.api.Routes(mux)
	}
	if h.metrics.Enabled {
		path := h.metrics.Path
		if path == "" {
			path = config.DefaultMetricsPath
		}
		mux.Handle("GET "+path, promhttp.Handler())
	}
	return mux
}

// handleHealth answers 200 while every component is healthy and 503 once
// any probe fails or the daemon is not running.
func (h *HTTPServerComponent) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.daemon == nil {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
		return
	}

	report := h.daemon.Report()
	status := http.StatusOK
	if !report.Healthy {
		status = http.StatusServiceUnavailable
	}
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(report)
}
