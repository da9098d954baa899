package activity

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// InMemory is a process-local Bridge. Recall returns matching records
// newest first; there is no similarity ranking. Failing workspaces can be
// configured to exercise error paths.
type InMemory struct {
	mu      sync.Mutex
	records map[string][]MemoryRecord
	events  []Event
	failing map[string]error
}

func NewInMemory() *InMemory {
	return &InMemory{
		records: make(map[string][]MemoryRecord),
		failing: make(map[string]error),
	}
}

// FailRecall makes every Recall whose query contains match return err.
func (m *InMemory) FailRecall(match string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failing[match] = err
}

func (m *InMemory) Recall(_ context.Context, workspaceID string, q RecallQuery) ([]MemoryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for match, err := range m.failing {
		if containsFold(q.Query, match) {
			return nil, err
		}
	}

	all := m.records[workspaceID]
	out := []MemoryRecord{}
	for i := len(all) - 1; i >= 0; i-- {
		if !matches(all[i], q) {
			continue
		}
		out = append(out, all[i])
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

func (m *InMemory) Store(_ context.Context, workspaceID, recordType, content string, salience float64, tags []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records[workspaceID] = append(m.records[workspaceID], MemoryRecord{
		ID:          ulid.Make().String(),
		WorkspaceID: workspaceID,
		Type:        recordType,
		Content:     content,
		Salience:    salience,
		Tags:        append([]string(nil), tags...),
		CreatedAt:   time.Now().UTC(),
	})
	return nil
}

func (m *InMemory) EmitEvent(_ context.Context, workspaceID, name string, payload map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = append(m.events, Event{
		ID:          ulid.Make().String(),
		WorkspaceID: workspaceID,
		Name:        name,
		Payload:     payload,
		Timestamp:   time.Now().UTC(),
	})
}

// Records returns a copy of the stored records for a workspace, oldest first.
func (m *InMemory) Records(workspaceID string) []MemoryRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MemoryRecord(nil), m.records[workspaceID]...)
}

// Events returns a copy of the emitted events in order.
func (m *InMemory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

// EventNames lists emitted event names in order.
func (m *InMemory) EventNames() []string {
	events := m.Events()
	names := make([]string, len(events))
	for i, ev := range events {
		names[i] = ev.Name
	}
	return names
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
