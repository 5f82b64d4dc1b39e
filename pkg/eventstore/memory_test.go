package eventstore

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreOptimisticAppend(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	id := uuid.New()

	e1, err := NewEvent("ItemAdded", map[string]int{"copies": 1})
	require.NoError(t, err)
	require.NoError(t, store.AppendEvents(ctx, id, "item", 0, []Event{e1, e1}))

	assert.ErrorIs(t, store.AppendEvents(ctx, id, "item", 1, []Event{e1}), ErrConcurrencyConflict)
	assert.ErrorIs(t, store.AppendEvents(ctx, id, "item", -1, []Event{e1}), ErrInvalidVersion)

	version, err := store.GetCurrentVersion(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, version)

	events, err := store.LoadEvents(ctx, id, 2, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 2, events[0].Version)
	assert.Equal(t, "item", events[0].AggregateType)
}

func TestMemoryStoreLoadRange(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	id := uuid.New()

	for i := 0; i < 5; i++ {
		e, err := NewEvent("ItemCirculated", map[string]int{"n": i})
		require.NoError(t, err)
		require.NoError(t, store.AppendEvents(ctx, id, "item", i, []Event{e}))
	}

	events, err := store.LoadEvents(ctx, id, 2, 4)
	require.NoError(t, err)
	require.Len(t, events, 3)

	var payload map[string]int
	require.NoError(t, events[0].Decode(&payload))
	assert.Equal(t, 1, payload["n"])
}
