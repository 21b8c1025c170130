package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-sandwich-bot/internal/domain"
	"solana-sandwich-bot/internal/storage"
)

func TestEvaluationStore_InsertBulkAndQuery(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewEvaluationStore(conn)

	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	rows := []*domain.PlanEvaluation{
		{
			VictimSignature: "v1", InstructionIndex: 0, Pool: "pool", Slot: 10, InputMint: "COIN",
			AmountIn: 10_000, MinimumOut: 9_800, Accepted: true, PlanID: "p1", FrontIn: 3_590, NetProfit: 39,
			EvaluatedAt: at.Add(time.Second),
		},
		{
			VictimSignature: "v2", InstructionIndex: 1, Pool: "pool", Slot: 10, InputMint: "PC",
			AmountIn: 500, MinimumOut: 499, Reason: domain.RejectVictimSlippage, EvaluatedAt: at,
		},
	}
	require.NoError(t, store.InsertBulk(ctx, rows))

	got, err := store.GetByTimeRange(ctx, at, at.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, rows[1], got[0])
	assert.Equal(t, rows[0], got[1])
}

func TestEvaluationStore_Duplicates(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewEvaluationStore(conn)

	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	row := &domain.PlanEvaluation{VictimSignature: "v1", Slot: 10, EvaluatedAt: at}
	require.NoError(t, store.InsertBulk(ctx, []*domain.PlanEvaluation{row}))

	err := store.InsertBulk(ctx, []*domain.PlanEvaluation{{VictimSignature: "v9", Slot: 1, EvaluatedAt: at}, row})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	err = store.InsertBulk(ctx, []*domain.PlanEvaluation{row, row})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	got, err := store.GetByTimeRange(ctx, at, at)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
