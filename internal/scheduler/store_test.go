package scheduler

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := NewStore(filepath.Join(t.TempDir(), "tasks.json"))
	if err != nil {
		t.Fatal(err)
	}
	return st
}

func TestLeaseLogic(t *testing.T) {
	st := newTestStore(t)
	now := time.Date(2025, time.March, 14, 20, 0, 0, 0, time.UTC)

	taskID := "wellness-daily"
	if _, err := st.Upsert(taskID, "@every 10s", "Daily wellness check", now); err != nil {
		t.Fatalf("Failed to create task: %v", err)
	}

	// Acquire Lease
	if err := st.AcquireLease(taskID, "run1", now, now.Add(time.Minute)); err != nil {
		t.Fatalf("Failed to acquire lease: %v", err)
	}

	lease, err := st.GetLease(taskID)
	if err != nil {
		t.Fatal(err)
	}
	if lease == nil || lease.RunID != "run1" {
		t.Fatal("Lease not persisted correctly")
	}

	if err := st.AcquireLease(taskID, "run2", now.Add(30*time.Second), now.Add(2*time.Minute)); err == nil {
		t.Error("Expected error when leasing already leased task")
	}

	// Expired lease can be taken over.
	later := now.Add(2 * time.Minute)
	if err := st.AcquireLease(taskID, "run3", later, later.Add(time.Minute)); err != nil {
		t.Fatalf("Failed to recover expired lease: %v", err)
	}

	if err := st.MarkTaskDone(taskID, "run1", later, nil); err == nil {
		t.Error("Expected lease mismatch for stale run id")
	}
	if err := st.MarkTaskDone(taskID, "run3", later, nil); err != nil {
		t.Fatalf("Failed to mark done: %v", err)
	}

	lease, _ = st.GetLease(taskID)
	if lease != nil {
		t.Error("Lease should be cleared after MarkTaskDone")
	}
}

func TestStorePersistsAcrossReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tasks.json")
	now := time.Date(2025, time.March, 14, 20, 0, 0, 0, time.UTC)

	st, err := NewStore(path)
	if err != nil {
		t.Fatal(err)
	}
	task, err := st.Upsert("wellness-daily", "0 21 * * *", "Daily wellness check", now)
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2025, time.March, 14, 21, 0, 0, 0, time.UTC)
	if !task.NextRun.Equal(want) {
		t.Fatalf("NextRun = %v, want %v", task.NextRun, want)
	}

	reopened, err := NewStore(path)
	if err != nil {
		t.Fatal(err)
	}
	tasks, _ := reopened.LoadTasks()
	if len(tasks) != 1 || !tasks[0].NextRun.Equal(want) {
		t.Fatalf("unexpected tasks after reload: %+v", tasks)
	}

	// Re-registering with the same schedule keeps the persisted NextRun.
	task, err = reopened.Upsert("wellness-daily", "0 21 * * *", "renamed", now.Add(2*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if !task.NextRun.Equal(want) || task.Description != "renamed" {
		t.Errorf("Upsert reset state: %+v", task)
	}

	task, _ = reopened.Upsert("wellness-daily", "0 22 * * *", "renamed", now)
	if task.NextRun.Hour() != 22 {
		t.Errorf("schedule change should recompute NextRun, got %v", task.NextRun)
	}
}

func TestUpsertRejectsBadSchedule(t *testing.T) {
	st := newTestStore(t)
	if _, err := st.Upsert("x", "not a cron", "", time.Now()); err == nil {
		t.Fatal("expected invalid schedule error")
	}
}

func TestDueAndMarkDone(t *testing.T) {
	st := newTestStore(t)
	now := time.Date(2025, time.March, 14, 20, 0, 0, 0, time.UTC)
	if _, err := st.Upsert("t", "0 21 * * *", "", now); err != nil {
		t.Fatal(err)
	}

	due, _, err := st.Due("t", now)
	if err != nil || due {
		t.Fatalf("task should not be due yet: due=%v err=%v", due, err)
	}

	fire := now.Add(90 * time.Minute)
	due, next, _ := st.Due("t", fire)
	if !due || next.Hour() != 21 {
		t.Fatalf("task should be due at 21:00, got due=%v next=%v", due, next)
	}

	if err := st.AcquireLease("t", "r", fire, fire.Add(time.Minute)); err != nil {
		t.Fatal(err)
	}
	if err := st.MarkTaskDone("t", "r", fire, errors.New("boom")); err != nil {
		t.Fatal(err)
	}

	tasks, _ := st.LoadTasks()
	if tasks[0].LastError != "boom" {
		t.Errorf("LastError = %q", tasks[0].LastError)
	}
	if !tasks[0].NextRun.Equal(time.Date(2025, time.March, 15, 21, 0, 0, 0, time.UTC)) {
		t.Errorf("NextRun = %v", tasks[0].NextRun)
	}

	if _, _, err := st.Due("missing", now); err == nil {
		t.Error("expected error for unknown task")
	}
}

func TestReleaseExpiredLeases(t *testing.T) {
	st := newTestStore(t)
	now := time.Date(2025, time.March, 14, 20, 0, 0, 0, time.UTC)
	for _, id := range []string{"a", "b"} {
		if _, err := st.Upsert(id, "@every 1m", "", now); err != nil {
			t.Fatal(err)
		}
	}
	_ = st.AcquireLease("a", "ra", now, now.Add(time.Minute))
	_ = st.AcquireLease("b", "rb", now, now.Add(time.Hour))

	released, err := st.ReleaseExpiredLeases(now.Add(5 * time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if len(released) != 1 || released[0] != "a" {
		t.Fatalf("released = %v, want [a]", released)
	}
	if lease, _ := st.GetLease("b"); lease == nil {
		t.Error("live lease should survive")
	}
}
