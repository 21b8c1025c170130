package postgres

import (
	"context"
	"fmt"

	"solana-sandwich-bot/internal/storage"
)

// CursorStore is a PostgreSQL implementation of storage.CursorStore.
// One row per source in source_cursors.
type CursorStore struct {
	pool *Pool
}

// NewCursorStore creates a new PostgreSQL cursor store.
func NewCursorStore(pool *Pool) *CursorStore {
	return &CursorStore{pool: pool}
}

var _ storage.CursorStore = (*CursorStore)(nil)

// Get returns the cursor of source. Returns ErrNotFound if none was saved.
func (s *CursorStore) Get(ctx context.Context, source string) (*storage.Cursor, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT source, slot, signature
		FROM source_cursors
		WHERE source = $1
	`, source)

	var c storage.Cursor
	if err := row.Scan(&c.Source, &c.Slot, &c.Signature); err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get cursor: %w", err)
	}
	return &c, nil
}

// Set saves the cursor. Uses upsert to handle initial insert and subsequent updates.
func (s *CursorStore) Set(ctx context.Context, c *storage.Cursor) error {
	if c == nil || c.Source == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO source_cursors (source, slot, signature, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (source) DO UPDATE
		SET slot = EXCLUDED.slot,
		    signature = EXCLUDED.signature,
		    updated_at = NOW()
	`, c.Source, c.Slot, c.Signature)
	if err != nil {
		return fmt.Errorf("set cursor: %w", err)
	}
	return nil
}
