package monitor

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"solana-sandwich-bot/internal/solana"
	"solana-sandwich-bot/internal/storage"
)

// ErrSourceClosed is returned by a Source whose upstream stream ended.
var ErrSourceClosed = errors.New("transaction source closed")

// Source yields batches of confirmed AMM transactions.
type Source interface {
	// Next blocks until the next batch is available. An empty batch is valid.
	Next(ctx context.Context) ([]*solana.Transaction, error)
}

// PollGateway is the gateway surface a PollSource needs.
type PollGateway interface {
	PollRecentTransactions(ctx context.Context, until string, limit int) ([]*solana.Transaction, string, error)
}

// PollSource polls the program's signature list on a fixed cadence.
type PollSource struct {
	gw       PollGateway
	interval time.Duration
	limit    int
	cursors  storage.CursorStore
	logger   *zap.Logger

	cursor string
	slot   int64
	loaded bool
	last   time.Time
}

// PollSourceOptions configures a PollSource.
type PollSourceOptions struct {
	Interval time.Duration       // default 1s
	Limit    int                 // signatures per poll; default 25
	Cursors  storage.CursorStore // optional; resumes from the saved cursor
	Logger   *zap.Logger
}

// pollCursorName is the CursorStore key of the poll source.
const pollCursorName = "poll"

// NewPollSource creates a PollSource.
func NewPollSource(gw PollGateway, opts PollSourceOptions) *PollSource {
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	if opts.Limit <= 0 {
		opts.Limit = 25
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &PollSource{
		gw:       gw,
		interval: opts.Interval,
		limit:    opts.Limit,
		cursors:  opts.Cursors,
		logger:   opts.Logger.Named("poll_source"),
	}
}

// Next waits out the rest of the poll interval and fetches everything newer
// than the cursor.
func (s *PollSource) Next(ctx context.Context) ([]*solana.Transaction, error) {
	s.loadCursor(ctx)

	if wait := s.interval - time.Since(s.last); !s.last.IsZero() && wait > 0 {
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
	s.last = time.Now()

	txs, cursor, err := s.gw.PollRecentTransactions(ctx, s.cursor, s.limit)
	if cursor != s.cursor {
		s.advance(ctx, cursor, txs)
	}
	return txs, err
}

func (s *PollSource) loadCursor(ctx context.Context) {
	if s.loaded || s.cursors == nil {
		s.loaded = true
		return
	}
	s.loaded = true
	c, err := s.cursors.Get(ctx, pollCursorName)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		s.logger.Warn("load cursor failed, starting from the tip", zap.Error(err))
	default:
		s.cursor, s.slot = c.Signature, c.Slot
		s.logger.Info("resuming from cursor", zap.String("signature", c.Signature), zap.Int64("slot", c.Slot))
	}
}

func (s *PollSource) advance(ctx context.Context, cursor string, txs []*solana.Transaction) {
	s.cursor = cursor
	for _, tx := range txs {
		if tx.Slot > s.slot {
			s.slot = tx.Slot
		}
	}
	if s.cursors == nil {
		return
	}
	if err := s.cursors.Set(ctx, &storage.Cursor{Source: pollCursorName, Slot: s.slot, Signature: cursor}); err != nil {
		s.logger.Warn("save cursor failed", zap.Error(err))
	}
}

// StreamGateway is the gateway surface a StreamSource needs.
type StreamGateway interface {
	SubscribeLogs(ctx context.Context) (<-chan solana.LogNotification, error)
	FetchTransaction(ctx context.Context, signature string) (*solana.Transaction, error)
}

// StreamSource follows the program's log subscription and fetches the full
// transaction of every successful notification that carries a ray_log.
type StreamSource struct {
	gw     StreamGateway
	logger *zap.Logger
	ch     <-chan solana.LogNotification
}

// NewStreamSource creates a StreamSource. The subscription opens on the first Next.
func NewStreamSource(gw StreamGateway, logger *zap.Logger) *StreamSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreamSource{gw: gw, logger: logger.Named("stream_source")}
}

// Next returns at most one transaction per call.
func (s *StreamSource) Next(ctx context.Context) ([]*solana.Transaction, error) {
	if s.ch == nil {
		ch, err := s.gw.SubscribeLogs(ctx)
		if err != nil {
			return nil, err
		}
		s.ch = ch
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case n, ok := <-s.ch:
			if !ok {
				return nil, ErrSourceClosed
			}
			if n.Err != nil || !hasRayLog(n.Logs) {
				continue
			}
			tx, err := s.gw.FetchTransaction(ctx, n.Signature)
			if err != nil {
				return nil, err
			}
			if tx == nil {
				s.logger.Debug("transaction not available yet", zap.String("signature", n.Signature))
				return nil, nil
			}
			return []*solana.Transaction{tx}, nil
		}
	}
}

func hasRayLog(logs []string) bool {
	for _, l := range logs {
		if strings.Contains(l, "ray_log:") {
			return true
		}
	}
	return false
}
