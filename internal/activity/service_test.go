package activity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/harunnryd/hearth/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, sink EventSink) (*Service, *store.Pool) {
	t.Helper()
	pool := store.NewPool(t.TempDir(), store.RuntimeConfig{})
	t.Cleanup(pool.Close)
	if sink == nil {
		sink = NewLogSink(pool)
	}
	return NewService(pool, NewHashEmbedder(64), sink), pool
}

func TestService_StoreAndRecall(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	require.NoError(t, svc.Store(ctx, "family", TypeEpisodic, `{"type":"hydration_daily_summary","goalMet":true}`, 0.5, []string{"wellness", "mom"}))
	require.NoError(t, svc.Store(ctx, "family", TypeEpisodic, `{"type":"movement_daily_summary","goalMet":true}`, 0.5, []string{"wellness", "dad"}))
	require.NoError(t, svc.Store(ctx, "family", TypeSemantic, "mom likes tea", 0.9, []string{"wellness", "mom"}))

	got, err := svc.Recall(ctx, "family", RecallQuery{
		Query: "wellness mom 2025-03-14",
		Types: []string{TypeEpisodic},
		Limit: 20,
		Tags:  []string{"wellness", "mom"},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)

	rec := got[0]
	assert.Contains(t, rec.Content, "hydration_daily_summary")
	assert.Equal(t, TypeEpisodic, rec.Type)
	assert.Equal(t, []string{"wellness", "mom"}, rec.Tags)
	assert.Equal(t, 0.5, rec.Salience)
	assert.False(t, rec.CreatedAt.IsZero())
}

func TestService_RecallFilters(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	for i, sal := range []float64{0.1, 0.5, 0.9} {
		require.NoError(t, svc.Store(ctx, "ws", TypeEpisodic, "note", sal, []string{"n", string(rune('a' + i))}))
	}

	got, err := svc.Recall(ctx, "ws", RecallQuery{Query: "note", MinSalience: 0.5})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = svc.Recall(ctx, "ws", RecallQuery{Query: "note", Limit: 1})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = svc.Recall(ctx, "ws", RecallQuery{Query: "note", Types: []string{TypeProcedural}})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestService_TagsWithCommasRoundTrip(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	require.NoError(t, svc.Store(ctx, "family", TypeEpisodic, "pickup plan", 0.5, []string{"errands", "smith, jr"}))

	got, err := svc.Recall(ctx, "family", RecallQuery{Query: "pickup", Tags: []string{"smith, jr"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"errands", "smith, jr"}, got[0].Tags)

	got, err = svc.Recall(ctx, "family", RecallQuery{Query: "pickup", Tags: []string{"smith"}})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDecodeTags(t *testing.T) {
	assert.Nil(t, decodeTags(""))
	assert.Equal(t, []string{"a", "b,c"}, decodeTags(`["a","b,c"]`))
	assert.Equal(t, []string{"wellness", "mom"}, decodeTags("wellness,mom"))
}

func TestService_RecallEmptyWorkspace(t *testing.T) {
	svc, _ := newTestService(t, nil)

	got, err := svc.Recall(context.Background(), "empty", RecallQuery{Query: "anything", Limit: 5})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestService_StoreRequiresType(t *testing.T) {
	svc, _ := newTestService(t, nil)
	assert.Error(t, svc.Store(context.Background(), "ws", " ", "x", 0.1, nil))
}

func TestService_EmitEventWritesLog(t *testing.T) {
	svc, pool := newTestService(t, nil)
	ctx := context.Background()

	svc.EmitEvent(ctx, "family", "wellness.daily.started", map[string]any{"members": 2})

	w, err := pool.Worker("family")
	require.NoError(t, err)
	events, err := w.ReadEvents(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "wellness.daily.started", events[0].Name)
	assert.JSONEq(t, `{"members":2}`, string(events[0].Payload))
}

type failingSink struct{ calls int }

func (f *failingSink) Name() string { return "failing" }

func (f *failingSink) Publish(context.Context, Event) error {
	f.calls++
	return errors.New("sink down")
}

func TestService_EmitEventSwallowsErrors(t *testing.T) {
	sink := &failingSink{}
	svc, _ := newTestService(t, sink)

	assert.NotPanics(t, func() {
		svc.EmitEvent(context.Background(), "family", "skill.completed", nil)
	})
	assert.Equal(t, 1, sink.calls)
}

func TestService_UsesClock(t *testing.T) {
	svc, _ := newTestService(t, nil)
	fixed := time.Date(2025, 3, 14, 21, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	require.NoError(t, svc.Store(context.Background(), "ws", TypeEpisodic, "x", 0.2, nil))
	got, err := svc.Recall(context.Background(), "ws", RecallQuery{Query: "x"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, fixed.Equal(got[0].CreatedAt))
}
