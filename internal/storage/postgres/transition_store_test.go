package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-sandwich-bot/internal/domain"
)

func TestTransitionStore_History(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTransitionStore(pool)

	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	steps := []domain.Transition{
		{BundleID: "b1", From: domain.StateBuilt, To: domain.StateFrontSubmitted, Signature: "front", At: at},
		{BundleID: "b2", From: domain.StateBuilt, To: domain.StateAborted, Error: "stale", At: at},
		{BundleID: "b1", From: domain.StateFrontSubmitted, To: domain.StateFrontConfirmed, Signature: "front", At: at},
		{BundleID: "b1", From: domain.StateFrontConfirmed, To: domain.StateBackFailed, Error: "send failed", At: at},
	}
	for i := range steps {
		require.NoError(t, store.Insert(ctx, &steps[i]))
	}

	got, err := store.GetByBundleID(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, domain.StateFrontSubmitted, got[0].To)
	assert.Equal(t, domain.StateFrontConfirmed, got[1].To)
	assert.Equal(t, domain.StateBackFailed, got[2].To)
	assert.Equal(t, "send failed", got[2].Error)
	assert.True(t, got[0].At.Equal(at))
}
