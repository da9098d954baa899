package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/harunnryd/hearth/internal/metrics"
	"github.com/harunnryd/hearth/internal/store"

	"github.com/oklog/ulid/v2"
	"github.com/tidwall/gjson"
)

const (
	metaType      = "type"
	metaTags      = "tags"
	metaSalience  = "salience"
	metaCreatedAt = "created_at"
)

// Service implements Bridge on top of the workspace store workers.
type Service struct {
	pool     *store.Pool
	embedder Embedder
	sink     EventSink
	now      func() time.Time
}

func NewService(pool *store.Pool, embedder Embedder, sink EventSink) *Service {
	if sink == nil {
		sink = NewLogSink(pool)
	}
	return &Service{
		pool:     pool,
		embedder: embedder,
		sink:     sink,
		now:      time.Now,
	}
}

func collectionName(workspaceID string) string {
	return "memory-" + workspaceID
}

func (s *Service) Recall(ctx context.Context, workspaceID string, q RecallQuery) ([]MemoryRecord, error) {
	records, err := s.recall(ctx, workspaceID, q)
	metrics.MemoryOps.WithLabelValues("recall", metrics.Status(err)).Inc()
	return records, err
}

func (s *Service) recall(ctx context.Context, workspaceID string, q RecallQuery) ([]MemoryRecord, error) {
	w, err := s.pool.Worker(workspaceID)
	if err != nil {
		return nil, err
	}

	vec, err := s.embedder.Embed(ctx, q.Query)
	if err != nil {
		return nil, fmt.Errorf("embed recall query: %w", err)
	}

	// Filters are applied after ranking, so rank the whole collection.
	hits, err := w.SearchVectors(ctx, collectionName(workspaceID), vec, 0)
	if err != nil {
		return nil, fmt.Errorf("search memory: %w", err)
	}

	out := make([]MemoryRecord, 0, len(hits))
	for _, hit := range hits {
		rec := decodeRecord(workspaceID, hit)
		if !matches(rec, q) {
			continue
		}
		out = append(out, rec)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}

	slog.Debug("Memory recalled", "workspace", workspaceID, "query", q.Query, "hits", len(hits), "returned", len(out))
	return out, nil
}

func (s *Service) Store(ctx context.Context, workspaceID, recordType, content string, salience float64, tags []string) error {
	err := s.store(ctx, workspaceID, recordType, content, salience, tags)
	metrics.MemoryOps.WithLabelValues("store", metrics.Status(err)).Inc()
	return err
}

func (s *Service) store(ctx context.Context, workspaceID, recordType, content string, salience float64, tags []string) error {
	if strings.TrimSpace(recordType) == "" {
		return fmt.Errorf("record type is required")
	}

	w, err := s.pool.Worker(workspaceID)
	if err != nil {
		return err
	}

	// Tags are embedded with the content so tag words pull records into
	// lexical recall results.
	vec, err := s.embedder.Embed(ctx, content+" "+strings.Join(tags, " "))
	if err != nil {
		return fmt.Errorf("embed memory: %w", err)
	}

	encodedTags, err := encodeTags(tags)
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}

	id := ulid.Make().String()
	err = w.UpsertVector(ctx, collectionName(workspaceID), store.VectorDocument{
		ID:     id,
		Vector: vec,
		Metadata: map[string]string{
			metaType:      recordType,
			metaTags:      encodedTags,
			metaSalience:  strconv.FormatFloat(salience, 'f', -1, 64),
			metaCreatedAt: s.now().UTC().Format(time.RFC3339Nano),
		},
		Content: content,
	})
	if err != nil {
		return fmt.Errorf("store memory: %w", err)
	}

	slog.Debug("Memory stored", "workspace", workspaceID, "id", id, "type", recordType, "tags", tags)
	return nil
}

func (s *Service) EmitEvent(ctx context.Context, workspaceID, name string, payload map[string]any) {
	ev := Event{
		ID:          ulid.Make().String(),
		WorkspaceID: workspaceID,
		Name:        name,
		Payload:     payload,
		Timestamp:   s.now().UTC(),
	}

	if err := s.sink.Publish(ctx, ev); err != nil {
		metrics.EventsEmitted.WithLabelValues(name, "error").Inc()
		slog.Warn("Event emission failed", "workspace", workspaceID, "event", name, "error", err)
		return
	}
	metrics.EventsEmitted.WithLabelValues(name, "ok").Inc()
}

func decodeRecord(workspaceID string, hit store.VectorResult) MemoryRecord {
	rec := MemoryRecord{
		ID:          hit.ID,
		WorkspaceID: workspaceID,
		Type:        hit.Metadata[metaType],
		Content:     hit.Content,
		Similarity:  hit.Score,
	}
	rec.Tags = decodeTags(hit.Metadata[metaTags])
	if v, err := strconv.ParseFloat(hit.Metadata[metaSalience], 64); err == nil {
		rec.Salience = v
	}
	if t, err := time.Parse(time.RFC3339Nano, hit.Metadata[metaCreatedAt]); err == nil {
		rec.CreatedAt = t
	}
	return rec
}

// encodeTags stores tags as a JSON array so a tag may contain any text.
func encodeTags(tags []string) (string, error) {
	if len(tags) == 0 {
		return "", nil
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// decodeTags reads a JSON array, or the comma-joined form of older stores.
func decodeTags(raw string) []string {
	if raw == "" {
		return nil
	}
	if !strings.HasPrefix(raw, "[") || !gjson.Valid(raw) {
		return strings.Split(raw, ",")
	}
	items := gjson.Parse(raw).Array()
	tags := make([]string, 0, len(items))
	for _, item := range items {
		tags = append(tags, item.String())
	}
	return tags
}

// matches applies the query filters: type must be one of q.Types (if any),
// the record must carry every tag in q.Tags, and salience must reach
// q.MinSalience.
func matches(rec MemoryRecord, q RecallQuery) bool {
	if len(q.Types) > 0 && !contains(q.Types, rec.Type) {
		return false
	}
	for _, tag := range q.Tags {
		if !contains(rec.Tags, tag) {
			return false
		}
	}
	return rec.Salience >= q.MinSalience
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
