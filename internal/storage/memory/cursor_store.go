package memory

import (
	"context"
	"sync"

	"solana-sandwich-bot/internal/storage"
)

// CursorStore is an in-memory implementation of storage.CursorStore.
type CursorStore struct {
	mu   sync.RWMutex
	data map[string]storage.Cursor
}

// NewCursorStore creates a new in-memory cursor store.
func NewCursorStore() *CursorStore {
	return &CursorStore{data: make(map[string]storage.Cursor)}
}

// Get returns the cursor of source. Returns ErrNotFound if none was saved.
func (s *CursorStore) Get(_ context.Context, source string) (*storage.Cursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.data[source]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &c, nil
}

// Set saves the cursor, replacing the previous one.
func (s *CursorStore) Set(_ context.Context, c *storage.Cursor) error {
	if c == nil || c.Source == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[c.Source] = *c
	return nil
}

var _ storage.CursorStore = (*CursorStore)(nil)
