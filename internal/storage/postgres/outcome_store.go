package postgres

import (
	"context"
	"fmt"
	"time"

	"solana-sandwich-bot/internal/domain"
	"solana-sandwich-bot/internal/storage"
)

// OutcomeStore implements storage.OutcomeStore using PostgreSQL.
type OutcomeStore struct {
	pool *Pool
}

// NewOutcomeStore creates a new OutcomeStore.
func NewOutcomeStore(pool *Pool) *OutcomeStore {
	return &OutcomeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.OutcomeStore = (*OutcomeStore)(nil)

const outcomeColumns = `
	bundle_id, plan_id, victim_signature, kind, final_state,
	front_signature, back_signature, expected_profit, realized_profit, realized_known,
	dry_run, error, started_at, finished_at`

// Insert adds an outcome. Returns ErrDuplicateKey if bundle_id exists.
func (s *OutcomeStore) Insert(ctx context.Context, o *domain.ExecutionOutcome) error {
	if o == nil || o.BundleID == "" {
		return storage.ErrInvalidInput
	}

	query := `INSERT INTO execution_outcomes (` + outcomeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := s.pool.Exec(ctx, query,
		o.BundleID, o.PlanID, o.VictimSignature, string(o.Kind), string(o.FinalState),
		o.FrontSignature, o.BackSignature, o.ExpectedProfit, o.RealizedProfit, o.RealizedKnown,
		o.DryRun, o.Error, o.StartedAt, o.FinishedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert outcome: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOutcome(row rowScanner) (*domain.ExecutionOutcome, error) {
	var (
		o           domain.ExecutionOutcome
		kind, state string
	)
	err := row.Scan(
		&o.BundleID, &o.PlanID, &o.VictimSignature, &kind, &state,
		&o.FrontSignature, &o.BackSignature, &o.ExpectedProfit, &o.RealizedProfit, &o.RealizedKnown,
		&o.DryRun, &o.Error, &o.StartedAt, &o.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	o.Kind = domain.OutcomeKind(kind)
	o.FinalState = domain.BundleState(state)
	o.StartedAt = o.StartedAt.UTC()
	o.FinishedAt = o.FinishedAt.UTC()
	return &o, nil
}

// GetByBundleID retrieves an outcome. Returns ErrNotFound if not exists.
func (s *OutcomeStore) GetByBundleID(ctx context.Context, bundleID string) (*domain.ExecutionOutcome, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+outcomeColumns+` FROM execution_outcomes WHERE bundle_id = $1`, bundleID)

	o, err := scanOutcome(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get outcome: %w", err)
	}
	return o, nil
}

// GetByTimeRange retrieves outcomes finished within [start, end], ordered by finished_at ASC.
func (s *OutcomeStore) GetByTimeRange(ctx context.Context, start, end time.Time) ([]*domain.ExecutionOutcome, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+outcomeColumns+`
		FROM execution_outcomes
		WHERE finished_at >= $1 AND finished_at <= $2
		ORDER BY finished_at ASC, bundle_id ASC
	`, start, end)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var result []*domain.ExecutionOutcome
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		result = append(result, o)
	}
	return result, rows.Err()
}
