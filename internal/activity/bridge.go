// Package activity is the boundary between skills or workflows and durable
// state: memory recall, memory writes and telemetry events.
package activity

import (
	"context"
	"time"
)

// Memory record types.
const (
	TypeEpisodic   = "episodic"
	TypeSemantic   = "semantic"
	TypeProcedural = "procedural"
)

type RecallQuery struct {
	Query       string
	Types       []string
	Limit       int
	Tags        []string
	MinSalience float64
}

type MemoryRecord struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspace_id"`
	Type        string    `json:"type"`
	Content     string    `json:"content"`
	Salience    float64   `json:"salience"`
	Tags        []string  `json:"tags"`
	CreatedAt   time.Time `json:"created_at"`
	Similarity  float32   `json:"similarity"`
}

// Bridge is what skills and workflows use to reach durable state.
type Bridge interface {
	// Recall is read-only. Results are ordered by similarity to the query.
	Recall(ctx context.Context, workspaceID string, q RecallQuery) ([]MemoryRecord, error)
	// Store appends a record. Records are never updated.
	Store(ctx context.Context, workspaceID, recordType, content string, salience float64, tags []string) error
	// EmitEvent never fails the caller; delivery problems are logged.
	EmitEvent(ctx context.Context, workspaceID, name string, payload map[string]any)
}

// Event is one telemetry event as delivered to sinks.
type Event struct {
	ID          string         `json:"id"`
	WorkspaceID string         `json:"workspace_id"`
	Name        string         `json:"name"`
	Payload     map[string]any `json:"payload,omitempty"`
	Timestamp   time.Time      `json:"ts"`
}
