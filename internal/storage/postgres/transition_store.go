package postgres

import (
	"context"
	"fmt"

	"solana-sandwich-bot/internal/domain"
	"solana-sandwich-bot/internal/storage"
)

// TransitionStore implements storage.TransitionStore using PostgreSQL.
type TransitionStore struct {
	pool *Pool
}

// NewTransitionStore creates a new TransitionStore.
func NewTransitionStore(pool *Pool) *TransitionStore {
	return &TransitionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TransitionStore = (*TransitionStore)(nil)

// Insert appends one transition.
func (s *TransitionStore) Insert(ctx context.Context, t *domain.Transition) error {
	if t == nil || t.BundleID == "" || t.To == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO bundle_transitions (bundle_id, from_state, to_state, signature, error, at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, t.BundleID, string(t.From), string(t.To), t.Signature, t.Error, t.At)
	if err != nil {
		return fmt.Errorf("insert transition: %w", err)
	}
	return nil
}

// GetByBundleID retrieves the transitions of a bundle in insert order.
func (s *TransitionStore) GetByBundleID(ctx context.Context, bundleID string) ([]*domain.Transition, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT bundle_id, from_state, to_state, signature, error, at
		FROM bundle_transitions
		WHERE bundle_id = $1
		ORDER BY seq ASC
	`, bundleID)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	var result []*domain.Transition
	for rows.Next() {
		var (
			tr       domain.Transition
			from, to string
		)
		if err := rows.Scan(&tr.BundleID, &from, &to, &tr.Signature, &tr.Error, &tr.At); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		tr.From = domain.BundleState(from)
		tr.To = domain.BundleState(to)
		tr.At = tr.At.UTC()
		result = append(result, &tr)
	}
	return result, rows.Err()
}
