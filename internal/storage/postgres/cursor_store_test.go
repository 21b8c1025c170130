package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-sandwich-bot/internal/storage"
)

func TestCursorStore_Upsert(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewCursorStore(pool)

	_, err := store.Get(ctx, "poll")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.Set(ctx, &storage.Cursor{Source: "poll", Slot: 100, Signature: "Sig100"}))
	require.NoError(t, store.Set(ctx, &storage.Cursor{Source: "poll", Slot: 200, Signature: "Sig200"}))
	require.NoError(t, store.Set(ctx, &storage.Cursor{Source: "stream", Slot: 150, Signature: "Sig150"}))

	got, err := store.Get(ctx, "poll")
	require.NoError(t, err)
	assert.Equal(t, int64(200), got.Slot)
	assert.Equal(t, "Sig200", got.Signature)

	assert.ErrorIs(t, store.Set(ctx, nil), storage.ErrInvalidInput)
}
