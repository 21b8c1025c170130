package storage

import (
	"context"
	"time"

	"solana-sandwich-bot/internal/domain"
)

// OutcomeStore persists execution outcomes. Outcomes are immutable.
type OutcomeStore interface {
	// Insert adds an outcome. Returns ErrDuplicateKey if bundle_id exists.
	Insert(ctx context.Context, o *domain.ExecutionOutcome) error

	// GetByBundleID retrieves one outcome. Returns ErrNotFound if not exists.
	GetByBundleID(ctx context.Context, bundleID string) (*domain.ExecutionOutcome, error)

	// GetByTimeRange retrieves outcomes finished within [start, end], ordered by finished_at ASC.
	GetByTimeRange(ctx context.Context, start, end time.Time) ([]*domain.ExecutionOutcome, error)
}

// TransitionStore persists the bundle state history.
type TransitionStore interface {
	// Insert appends one transition.
	Insert(ctx context.Context, t *domain.Transition) error

	// GetByBundleID retrieves the transitions of a bundle in the order they happened.
	GetByBundleID(ctx context.Context, bundleID string) ([]*domain.Transition, error)
}

// EvaluationStore persists one analytics row per evaluated swap.
type EvaluationStore interface {
	// InsertBulk adds multiple rows. Fails the batch on a duplicate
	// (victim_signature, instruction_index, slot).
	InsertBulk(ctx context.Context, evs []*domain.PlanEvaluation) error

	// GetByTimeRange retrieves rows evaluated within [start, end], ordered by evaluated_at ASC.
	GetByTimeRange(ctx context.Context, start, end time.Time) ([]*domain.PlanEvaluation, error)
}
