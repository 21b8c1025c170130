package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"solana-sandwich-bot/internal/domain"
	"solana-sandwich-bot/internal/storage"
)

var t0 = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func TestOutcomeStore_InsertAndGet(t *testing.T) {
	store := NewOutcomeStore()
	ctx := context.Background()

	o := &domain.ExecutionOutcome{
		BundleID:       "b1",
		Kind:           domain.OutcomeBothLandedProfitable,
		FinalState:     domain.StateBackConfirmed,
		ExpectedProfit: 39,
		RealizedProfit: 37,
		RealizedKnown:  true,
		FinishedAt:     t0,
	}
	if err := store.Insert(ctx, o); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByBundleID(ctx, "b1")
	if err != nil {
		t.Fatalf("GetByBundleID failed: %v", err)
	}
	if got.RealizedProfit != 37 || got.Kind != domain.OutcomeBothLandedProfitable {
		t.Errorf("got %+v", got)
	}

	got.RealizedProfit = 0
	again, _ := store.GetByBundleID(ctx, "b1")
	if again.RealizedProfit != 37 {
		t.Error("store returned a shared pointer")
	}
}

func TestOutcomeStore_Errors(t *testing.T) {
	store := NewOutcomeStore()
	ctx := context.Background()

	if err := store.Insert(ctx, &domain.ExecutionOutcome{}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
	o := &domain.ExecutionOutcome{BundleID: "b1"}
	if err := store.Insert(ctx, o); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}
	if err := store.Insert(ctx, o); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
	if _, err := store.GetByBundleID(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestOutcomeStore_GetByTimeRange(t *testing.T) {
	store := NewOutcomeStore()
	ctx := context.Background()

	for i, id := range []string{"b3", "b1", "b2", "late"} {
		at := t0.Add(time.Duration(i) * time.Minute)
		if id == "b1" {
			at = t0.Add(-time.Minute)
		}
		if id == "late" {
			at = t0.Add(time.Hour)
		}
		if err := store.Insert(ctx, &domain.ExecutionOutcome{BundleID: id, FinishedAt: at}); err != nil {
			t.Fatalf("Insert %s: %v", id, err)
		}
	}

	got, err := store.GetByTimeRange(ctx, t0.Add(-time.Minute), t0.Add(10*time.Minute))
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	var ids []string
	for _, o := range got {
		ids = append(ids, o.BundleID)
	}
	if len(ids) != 3 || ids[0] != "b1" || ids[1] != "b3" || ids[2] != "b2" {
		t.Errorf("order %v", ids)
	}
}

func TestTransitionStore_KeepsOrder(t *testing.T) {
	store := NewTransitionStore()
	ctx := context.Background()

	steps := []domain.BundleState{domain.StateBuilt, domain.StateFrontSubmitted, domain.StateFrontConfirmed}
	for i := 1; i < len(steps); i++ {
		tr := &domain.Transition{BundleID: "b1", From: steps[i-1], To: steps[i], At: t0}
		if err := store.Insert(ctx, tr); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}
	if err := store.Insert(ctx, &domain.Transition{BundleID: "b1"}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}

	got, err := store.GetByBundleID(ctx, "b1")
	if err != nil {
		t.Fatalf("GetByBundleID failed: %v", err)
	}
	if len(got) != 2 || got[0].To != domain.StateFrontSubmitted || got[1].To != domain.StateFrontConfirmed {
		t.Errorf("history %+v", got)
	}
	if none, _ := store.GetByBundleID(ctx, "b2"); len(none) != 0 {
		t.Errorf("expected empty history, got %d", len(none))
	}
}

func TestEvaluationStore_InsertBulk(t *testing.T) {
	store := NewEvaluationStore()
	ctx := context.Background()

	rows := []*domain.PlanEvaluation{
		{VictimSignature: "v1", InstructionIndex: 0, Slot: 10, Accepted: true, EvaluatedAt: t0.Add(time.Second)},
		{VictimSignature: "v1", InstructionIndex: 1, Slot: 10, Reason: domain.RejectBelowMargin, EvaluatedAt: t0},
	}
	if err := store.InsertBulk(ctx, rows); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByTimeRange(ctx, t0, t0.Add(time.Minute))
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(got) != 2 || got[0].InstructionIndex != 1 || !got[1].Accepted {
		t.Errorf("rows %+v", got)
	}
}

func TestEvaluationStore_DuplicateFailsBatch(t *testing.T) {
	store := NewEvaluationStore()
	ctx := context.Background()

	first := &domain.PlanEvaluation{VictimSignature: "v1", Slot: 10, EvaluatedAt: t0}
	if err := store.InsertBulk(ctx, []*domain.PlanEvaluation{first}); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	batch := []*domain.PlanEvaluation{
		{VictimSignature: "v2", Slot: 11, EvaluatedAt: t0},
		{VictimSignature: "v1", Slot: 10, EvaluatedAt: t0},
	}
	if err := store.InsertBulk(ctx, batch); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("Expected ErrDuplicateKey, got %v", err)
	}
	intra := []*domain.PlanEvaluation{
		{VictimSignature: "v3", Slot: 12, EvaluatedAt: t0},
		{VictimSignature: "v3", Slot: 12, EvaluatedAt: t0},
	}
	if err := store.InsertBulk(ctx, intra); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("Expected ErrDuplicateKey for intra-batch duplicate, got %v", err)
	}

	got, _ := store.GetByTimeRange(ctx, t0, t0)
	if len(got) != 1 {
		t.Errorf("failed batches must not insert, have %d rows", len(got))
	}
}

func TestCursorStore_SetReplaces(t *testing.T) {
	store := NewCursorStore()
	ctx := context.Background()

	if _, err := store.Get(ctx, "poll"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	for _, sig := range []string{"s1", "s2"} {
		if err := store.Set(ctx, &storage.Cursor{Source: "poll", Signature: sig, Slot: 5}); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}
	got, err := store.Get(ctx, "poll")
	if err != nil || got.Signature != "s2" {
		t.Errorf("Get = %+v, %v", got, err)
	}
	if err := store.Set(ctx, &storage.Cursor{}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}
