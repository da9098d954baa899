package activity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisSink_Publish(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	sink := NewRedisSink(client, "hearth:events", 100)
	ctx := context.Background()

	ev := Event{
		ID:          "01J00000000000000000000000",
		WorkspaceID: "family",
		Name:        "approval.pending",
		Payload:     map[string]any{"skill": "telephony"},
		Timestamp:   time.Date(2025, 3, 14, 22, 30, 0, 0, time.UTC),
	}
	require.NoError(t, sink.Publish(ctx, ev))

	msgs, err := client.XRange(ctx, "hearth:events:family", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "approval.pending", msgs[0].Values["name"])
	assert.JSONEq(t, `{"skill":"telephony"}`, msgs[0].Values["payload"].(string))
}

func TestRedisSink_Unreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	mr.Close()

	err = NewRedisSink(client, "hearth:events", 100).Publish(context.Background(), Event{WorkspaceID: "ws", Name: "x"})
	assert.Error(t, err)
}

type recordingSink struct {
	name   string
	err    error
	events []Event
}

func (r *recordingSink) Name() string { return r.name }

func (r *recordingSink) Publish(_ context.Context, ev Event) error {
	r.events = append(r.events, ev)
	return r.err
}

func TestMultiSink(t *testing.T) {
	ok := &recordingSink{name: "ok"}
	bad := &recordingSink{name: "bad", err: errors.New("boom")}

	err := MultiSink{bad, ok}.Publish(context.Background(), Event{Name: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad sink")
	assert.Len(t, ok.events, 1, "a failing sink does not stop the others")
}
