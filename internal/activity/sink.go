package activity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/harunnryd/hearth/internal/store"

	"github.com/redis/go-redis/v9"
)

type EventSink interface {
	Name() string
	Publish(ctx context.Context, ev Event) error
}

// LogSink appends events to the workspace event log.
type LogSink struct {
	pool *store.Pool
}

func NewLogSink(pool *store.Pool) *LogSink {
	return &LogSink{pool: pool}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Publish(ctx context.Context, ev Event) error {
	w, err := s.pool.Worker(ev.WorkspaceID)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	return w.AppendEvent(ctx, store.EventRecord{
		ID:          ev.ID,
		Timestamp:   ev.Timestamp,
		WorkspaceID: ev.WorkspaceID,
		Name:        ev.Name,
		Payload:     payload,
	})
}

// RedisSink publishes events to a per-workspace stream <prefix>:<workspace>.
type RedisSink struct {
	client *redis.Client
	prefix string
	maxLen int64
}

func NewRedisSink(client *redis.Client, prefix string, maxLen int64) *RedisSink {
	return &RedisSink{client: client, prefix: prefix, maxLen: maxLen}
}

func (s *RedisSink) Name() string { return "redis" }

func (s *RedisSink) StreamKey(workspaceID string) string {
	return s.prefix + ":" + workspaceID
}

func (s *RedisSink) Publish(ctx context.Context, ev Event) error {
	payloadJSON := "{}"
	if ev.Payload != nil {
		if b, err := json.Marshal(ev.Payload); err == nil {
			payloadJSON = string(b)
		}
	}

	return s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.StreamKey(ev.WorkspaceID),
		MaxLen: s.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"id":      ev.ID,
			"name":    ev.Name,
			"payload": payloadJSON,
			"ts_nano": strconv.FormatInt(ev.Timestamp.UnixNano(), 10),
		},
	}).Err()
}

// MultiSink publishes to every sink and reports all failures together.
type MultiSink []EventSink

func (m MultiSink) Name() string { return "multi" }

func (m MultiSink) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, ev); err != nil {
			errs = append(errs, fmt.Errorf("%s sink: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}
