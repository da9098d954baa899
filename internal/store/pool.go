package store

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Pool opens one Worker per workspace on first use and keeps it running
// until Close.
type Pool struct {
	mu       sync.Mutex
	rootPath string
	cfg      RuntimeConfig
	workers  map[string]*Worker
	closed   bool
}

func NewPool(workspaceRootPath string, cfg RuntimeConfig) *Pool {
	return &Pool{
		rootPath: workspaceRootPath,
		cfg:      cfg,
		workers:  make(map[string]*Worker),
	}
}

func (p *Pool) Worker(workspaceID string) (*Worker, error) {
	if err := ValidateWorkspaceID(workspaceID); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrWorkerStopped
	}
	if w, ok := p.workers[workspaceID]; ok {
		return w, nil
	}

	w, err := NewWorker(workspaceID, p.rootPath, p.cfg)
	if err != nil {
		return nil, fmt.Errorf("open workspace %s: %w", workspaceID, err)
	}
	w.Start()
	p.workers[workspaceID] = w
	slog.Debug("Workspace store opened", "workspace", workspaceID)
	return w, nil
}

// Workspaces lists the open workspaces in sorted order.
func (p *Pool) Workspaces() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	ids := make([]string, 0, len(p.workers))
	for id := range p.workers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Healthy reports whether every open worker is running with its lock held.
func (p *Pool) Healthy() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for id, w := range p.workers {
		if !w.IsRunning() {
			return fmt.Errorf("store worker %s not running", id)
		}
	}
	return nil
}

func (p *Pool) Close() {
	p.mu.Lock()
	workers := p.workers
	p.workers = make(map[string]*Worker)
	p.closed = true
	p.mu.Unlock()

	for _, w := range workers {
		w.Stop()
	}
}
