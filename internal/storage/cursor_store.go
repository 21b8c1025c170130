package storage

import "context"

// Cursor is the last processed position of a transaction source.
type Cursor struct {
	Source    string // source name, e.g. "poll"
	Slot      int64  // slot of the last processed signature
	Signature string // last processed transaction signature
}

// CursorStore persists source cursors so a restart resumes where the
// previous run stopped instead of replaying or skipping transactions.
type CursorStore interface {
	// Get returns the cursor of source. Returns ErrNotFound if none was saved.
	Get(ctx context.Context, source string) (*Cursor, error)

	// Set saves the cursor, replacing the previous one.
	Set(ctx context.Context, c *Cursor) error
}
