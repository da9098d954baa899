package store

import (
	"encoding/json"
	"time"
)

// --- Event log (events/events.jsonl) ---

type EventRecord struct {
	ID          string          `json:"id"` // ULID
	Timestamp   time.Time       `json:"ts"`
	WorkspaceID string          `json:"workspace_id"`
	Name        string          `json:"name"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// --- Memory (vectors/) ---

type VectorDocument struct {
	ID       string
	Vector   []float32
	Metadata map[string]string
	Content  string
}

type VectorResult struct {
	ID       string
	Score    float32
	Metadata map[string]string
	Content  string
}
