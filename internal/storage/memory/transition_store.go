package memory

import (
	"context"
	"sync"

	"solana-sandwich-bot/internal/domain"
	"solana-sandwich-bot/internal/storage"
)

// TransitionStore is an in-memory implementation of storage.TransitionStore.
type TransitionStore struct {
	mu   sync.RWMutex
	data map[string][]domain.Transition // keyed by bundle_id, in insert order
}

// NewTransitionStore creates a new in-memory transition store.
func NewTransitionStore() *TransitionStore {
	return &TransitionStore{
		data: make(map[string][]domain.Transition),
	}
}

// Insert appends one transition.
func (s *TransitionStore) Insert(_ context.Context, t *domain.Transition) error {
	if t == nil || t.BundleID == "" || t.To == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[t.BundleID] = append(s.data[t.BundleID], *t)
	return nil
}

// GetByBundleID retrieves the transitions of a bundle in insert order.
func (s *TransitionStore) GetByBundleID(_ context.Context, bundleID string) ([]*domain.Transition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.data[bundleID]
	result := make([]*domain.Transition, 0, len(history))
	for i := range history {
		copy := history[i]
		result = append(result, &copy)
	}
	return result, nil
}

var _ storage.TransitionStore = (*TransitionStore)(nil)
