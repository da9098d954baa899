package scheduler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/natefinch/atomic"
	"github.com/oklog/ulid/v2"
	"github.com/robfig/cron/v3"
)

type LeaseStatus string

const (
	StatusLeased LeaseStatus = "LEASED"
)

type Lease struct {
	RunID     string      `json:"run_id"`
	Status    LeaseStatus `json:"status"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// Task is the persisted state of one cron task. The handler lives in memory
// and is registered again on every start.
type Task struct {
	ID          string    `json:"id"`
	Schedule    string    `json:"schedule"` // cron spec or "@every 1h"
	Description string    `json:"description"`
	NextRun     time.Time `json:"next_run"`
	LastRun     time.Time `json:"last_run,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
	Lease       *Lease    `json:"lease,omitempty"`
}

type TaskList struct {
	Tasks map[string]*Task `json:"tasks"`
}

// Store keeps task state in a JSON file written atomically.
type Store struct {
	path string
	data TaskList
	mu   sync.RWMutex
}

func NewStore(path string) (*Store, error) {
	s := &Store{
		path: path,
		data: TaskList{Tasks: make(map[string]*Task)},
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	content, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(content) == 0 {
		return nil
	}
	if err := json.Unmarshal(content, &s.data); err != nil {
		return fmt.Errorf("parse %s: %w", s.path, err)
	}
	if s.data.Tasks == nil {
		s.data.Tasks = make(map[string]*Task)
	}
	return nil
}

// save writes the task list; the caller holds the lock.
func (s *Store) save() error {
	b, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}
	return atomic.WriteFile(s.path, bytes.NewReader(b))
}

// Upsert registers a task or updates its schedule. A schedule change
// recomputes NextRun from now; otherwise persisted state is kept so a
// restart does not skip or repeat a run.
func (s *Store) Upsert(id, schedule, description string, now time.Time) (Task, error) {
	spec, err := cron.ParseStandard(schedule)
	if err != nil {
		return Task{}, fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.data.Tasks[id]
	if !ok || t.Schedule != schedule {
		t = &Task{ID: id, Schedule: schedule, NextRun: spec.Next(now)}
		s.data.Tasks[id] = t
	}
	t.Description = description
	return *t, s.save()
}

// LoadTasks returns copies of all tasks sorted by id.
func (s *Store) LoadTasks() ([]Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tasks := make([]Task, 0, len(s.data.Tasks))
	for _, t := range s.data.Tasks {
		tasks = append(tasks, *t)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return tasks, nil
}

// Due reports whether a task's NextRun has passed.
func (s *Store) Due(taskID string, now time.Time) (bool, time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.data.Tasks[taskID]
	if !ok {
		return false, time.Time{}, fmt.Errorf("task %s not found", taskID)
	}
	return !t.NextRun.After(now), t.NextRun, nil
}

func (s *Store) AcquireLease(taskID, runID string, now, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.data.Tasks[taskID]
	if !ok {
		return fmt.Errorf("task %s not found", taskID)
	}
	if t.Lease != nil && t.Lease.Status == StatusLeased && now.Before(t.Lease.ExpiresAt) {
		return fmt.Errorf("task %s already leased", taskID)
	}

	t.Lease = &Lease{RunID: runID, Status: StatusLeased, ExpiresAt: expiresAt}
	return s.save()
}

// MarkTaskDone releases the lease and schedules the next run after now.
// runErr is recorded on the task but does not stop the schedule.
func (s *Store) MarkTaskDone(taskID, runID string, now time.Time, runErr error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.data.Tasks[taskID]
	if !ok {
		return fmt.Errorf("task %s not found", taskID)
	}
	if t.Lease == nil || t.Lease.RunID != runID {
		return fmt.Errorf("lease mismatch for task %s", taskID)
	}

	spec, err := cron.ParseStandard(t.Schedule)
	if err != nil {
		return fmt.Errorf("invalid cron schedule: %w", err)
	}

	t.Lease = nil
	t.LastRun = now
	t.LastError = ""
	if runErr != nil {
		t.LastError = runErr.Error()
	}
	t.NextRun = spec.Next(now)
	return s.save()
}

// ReleaseExpiredLeases drops leases left behind by a crashed run and
// returns the affected task ids.
func (s *Store) ReleaseExpiredLeases(now time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var released []string
	for id, t := range s.data.Tasks {
		if t.Lease != nil && !now.Before(t.Lease.ExpiresAt) {
			t.Lease = nil
			released = append(released, id)
		}
	}
	if len(released) == 0 {
		return nil, nil
	}
	sort.Strings(released)
	return released, s.save()
}

func (s *Store) GetLease(taskID string) (*Lease, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.data.Tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("task %s not found", taskID)
	}
	if t.Lease == nil {
		return nil, nil
	}
	lease := *t.Lease
	return &lease, nil
}

func generateRunID() string {
	return ulid.Make().String()
}
