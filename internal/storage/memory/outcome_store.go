package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"solana-sandwich-bot/internal/domain"
	"solana-sandwich-bot/internal/storage"
)

// OutcomeStore is an in-memory implementation of storage.OutcomeStore.
type OutcomeStore struct {
	mu   sync.RWMutex
	data map[string]*domain.ExecutionOutcome // keyed by bundle_id
}

// NewOutcomeStore creates a new in-memory outcome store.
func NewOutcomeStore() *OutcomeStore {
	return &OutcomeStore{
		data: make(map[string]*domain.ExecutionOutcome),
	}
}

// Insert adds an outcome. Returns ErrDuplicateKey if bundle_id exists.
func (s *OutcomeStore) Insert(_ context.Context, o *domain.ExecutionOutcome) error {
	if o == nil || o.BundleID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[o.BundleID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *o
	s.data[o.BundleID] = &copy
	return nil
}

// GetByBundleID retrieves an outcome. Returns ErrNotFound if not exists.
func (s *OutcomeStore) GetByBundleID(_ context.Context, bundleID string) (*domain.ExecutionOutcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, exists := s.data[bundleID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *o
	return &copy, nil
}

// GetByTimeRange retrieves outcomes finished within [start, end], ordered by finished_at ASC.
func (s *OutcomeStore) GetByTimeRange(_ context.Context, start, end time.Time) ([]*domain.ExecutionOutcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ExecutionOutcome
	for _, o := range s.data {
		if o.FinishedAt.Before(start) || o.FinishedAt.After(end) {
			continue
		}
		copy := *o
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].FinishedAt.Equal(result[j].FinishedAt) {
			return result[i].BundleID < result[j].BundleID
		}
		return result[i].FinishedAt.Before(result[j].FinishedAt)
	})

	return result, nil
}

var _ storage.OutcomeStore = (*OutcomeStore)(nil)
