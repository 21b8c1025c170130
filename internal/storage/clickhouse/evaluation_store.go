package clickhouse

import (
	"context"
	"fmt"
	"time"

	"solana-sandwich-bot/internal/domain"
	"solana-sandwich-bot/internal/storage"
)

// EvaluationStore implements storage.EvaluationStore using ClickHouse.
// MergeTree does not enforce uniqueness, so duplicates are checked before insert.
type EvaluationStore struct {
	conn *Conn
}

// NewEvaluationStore creates a new EvaluationStore.
func NewEvaluationStore(conn *Conn) *EvaluationStore {
	return &EvaluationStore{conn: conn}
}

// Compile-time interface check.
var _ storage.EvaluationStore = (*EvaluationStore)(nil)

const evaluationColumns = `
	victim_signature, instruction_index, pool, slot, input_mint,
	amount_in, minimum_out, accepted, reason, plan_id, front_in, net_profit, evaluated_at`

// InsertBulk adds multiple rows in one batch. Fails entire batch on any duplicate.
func (s *EvaluationStore) InsertBulk(ctx context.Context, evs []*domain.PlanEvaluation) error {
	if len(evs) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(evs))
	for _, e := range evs {
		if e == nil || e.VictimSignature == "" {
			return storage.ErrInvalidInput
		}
		key := fmt.Sprintf("%s|%d|%d", e.VictimSignature, e.InstructionIndex, e.Slot)
		if _, exists := seen[key]; exists {
			return storage.ErrDuplicateKey
		}
		seen[key] = struct{}{}
	}

	for _, e := range evs {
		exists, err := s.exists(ctx, e)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO plan_evaluations (`+evaluationColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, e := range evs {
		var accepted uint8
		if e.Accepted {
			accepted = 1
		}
		err = batch.Append(
			e.VictimSignature, uint32(e.InstructionIndex), e.Pool, e.Slot, e.InputMint,
			e.AmountIn, e.MinimumOut, accepted, string(e.Reason), e.PlanID, e.FrontIn, e.NetProfit,
			e.EvaluatedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByTimeRange retrieves rows evaluated within [start, end], ordered by evaluated_at ASC.
func (s *EvaluationStore) GetByTimeRange(ctx context.Context, start, end time.Time) ([]*domain.PlanEvaluation, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT `+evaluationColumns+`
		FROM plan_evaluations
		WHERE evaluated_at >= ? AND evaluated_at <= ?
		ORDER BY evaluated_at ASC, victim_signature ASC, instruction_index ASC
	`, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanEvaluations(rows)
}

func (s *EvaluationStore) exists(ctx context.Context, e *domain.PlanEvaluation) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `
		SELECT count(*) FROM plan_evaluations
		WHERE victim_signature = ? AND instruction_index = ? AND slot = ?
	`, e.VictimSignature, uint32(e.InstructionIndex), e.Slot).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanEvaluations(rows chRows) ([]*domain.PlanEvaluation, error) {
	var result []*domain.PlanEvaluation
	for rows.Next() {
		var (
			e           domain.PlanEvaluation
			instruction uint32
			accepted    uint8
			reason      string
		)
		err := rows.Scan(
			&e.VictimSignature, &instruction, &e.Pool, &e.Slot, &e.InputMint,
			&e.AmountIn, &e.MinimumOut, &accepted, &reason, &e.PlanID, &e.FrontIn, &e.NetProfit,
			&e.EvaluatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan evaluation: %w", err)
		}
		e.InstructionIndex = int(instruction)
		e.Accepted = accepted == 1
		e.Reason = domain.RejectReason(reason)
		e.EvaluatedAt = e.EvaluatedAt.UTC()
		result = append(result, &e)
	}
	return result, rows.Err()
}
