package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"solana-sandwich-bot/internal/domain"
	"solana-sandwich-bot/internal/storage"
)

// evaluationKey is the unique key of an evaluation row.
type evaluationKey struct {
	signature   string
	instruction int
	slot        int64
}

// EvaluationStore is an in-memory implementation of storage.EvaluationStore.
type EvaluationStore struct {
	mu   sync.RWMutex
	data map[evaluationKey]*domain.PlanEvaluation
}

// NewEvaluationStore creates a new in-memory evaluation store.
func NewEvaluationStore() *EvaluationStore {
	return &EvaluationStore{
		data: make(map[evaluationKey]*domain.PlanEvaluation),
	}
}

func keyOf(e *domain.PlanEvaluation) evaluationKey {
	return evaluationKey{signature: e.VictimSignature, instruction: e.InstructionIndex, slot: e.Slot}
}

// InsertBulk adds multiple rows atomically. Fails entire batch on any duplicate.
func (s *EvaluationStore) InsertBulk(_ context.Context, evs []*domain.PlanEvaluation) error {
	if len(evs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[evaluationKey]struct{}, len(evs))
	for _, e := range evs {
		if e == nil || e.VictimSignature == "" {
			return storage.ErrInvalidInput
		}
		k := keyOf(e)
		if _, exists := s.data[k]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[k]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[k] = struct{}{}
	}

	for _, e := range evs {
		copy := *e
		s.data[keyOf(e)] = &copy
	}
	return nil
}

// GetByTimeRange retrieves rows evaluated within [start, end], ordered by evaluated_at ASC.
func (s *EvaluationStore) GetByTimeRange(_ context.Context, start, end time.Time) ([]*domain.PlanEvaluation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PlanEvaluation
	for _, e := range s.data {
		if e.EvaluatedAt.Before(start) || e.EvaluatedAt.After(end) {
			continue
		}
		copy := *e
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if !a.EvaluatedAt.Equal(b.EvaluatedAt) {
			return a.EvaluatedAt.Before(b.EvaluatedAt)
		}
		if a.VictimSignature != b.VictimSignature {
			return a.VictimSignature < b.VictimSignature
		}
		return a.InstructionIndex < b.InstructionIndex
	})

	return result, nil
}

var _ storage.EvaluationStore = (*EvaluationStore)(nil)
