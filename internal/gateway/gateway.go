package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"solana-sandwich-bot/internal/domain"
	"solana-sandwich-bot/internal/observability"
	"solana-sandwich-bot/internal/solana"
)

// Config configures a Gateway.
type Config struct {
	// ProgramID is the AMM program whose signatures are polled.
	ProgramID string
	// WaitTimeout bounds the throttle wait of every call.
	WaitTimeout time.Duration
	// Commitment used for the log subscription.
	Commitment string
}

// Gateway wraps a solana.RPCClient behind the throttle. It never retries: the
// client must be built with zero retries and every upstream failure surfaces as
// *domain.RpcError.
type Gateway struct {
	rpc      solana.RPCClient
	ws       solana.WSClient
	throttle *Throttle
	cfg      Config
	logger   *zap.Logger
}

// New creates a Gateway. ws may be nil when no stream source is used.
func New(rpc solana.RPCClient, ws solana.WSClient, throttle *Throttle, cfg Config, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Commitment == "" {
		cfg.Commitment = solana.CommitmentConfirmed
	}
	return &Gateway{
		rpc:      rpc,
		ws:       ws,
		throttle: throttle,
		cfg:      cfg,
		logger:   logger.Named("gateway"),
	}
}

// Submission is the node's acknowledgement of a sent transaction.
type Submission struct {
	Signature   string
	SubmittedAt time.Time
}

// do waits for a permit, runs fn and converts its error.
func (g *Gateway) do(ctx context.Context, method string, fn func(ctx context.Context) error) error {
	waitStart := time.Now()
	if err := g.throttle.Acquire(ctx, g.cfg.WaitTimeout); err != nil {
		observability.RecordThrottleWait(time.Since(waitStart).Seconds(), errors.Is(err, domain.ErrRateLimitTimeout))
		if errors.Is(err, domain.ErrRateLimitTimeout) {
			g.logger.Debug("throttle wait timeout", zap.String("method", method))
		}
		return err
	}
	observability.RecordThrottleWait(time.Since(waitStart).Seconds(), false)

	start := time.Now()
	err := fn(ctx)
	observability.RecordRPCCall(method, time.Since(start).Seconds(), err)
	if err != nil {
		rpcErr := wrapRPCError(method, err)
		g.logger.Debug("rpc call failed", zap.String("method", method), zap.Error(rpcErr))
		return rpcErr
	}
	return nil
}

func wrapRPCError(method string, err error) *domain.RpcError {
	var existing *domain.RpcError
	if errors.As(err, &existing) {
		return existing
	}

	out := &domain.RpcError{Method: method, Message: err.Error(), Err: err}
	var jsonErr *solana.RPCError
	var statusErr *solana.StatusError
	switch {
	case errors.As(err, &jsonErr):
		out.Code = jsonErr.Code
		out.Message = jsonErr.Message
	case errors.As(err, &statusErr):
		out.StatusCode = statusErr.StatusCode
		out.Message = strings.TrimSpace(statusErr.Body)
	}
	return out
}

// PollRecentTransactions fetches program transactions newer than until,
// oldest first, and returns the newest signature as the next cursor.
// Signatures that failed on chain, or that the node cannot return, are skipped.
func (g *Gateway) PollRecentTransactions(ctx context.Context, until string, limit int) ([]*solana.Transaction, string, error) {
	var sigs []solana.SignatureInfo
	err := g.do(ctx, "getSignaturesForAddress", func(ctx context.Context) error {
		var err error
		sigs, err = g.rpc.GetSignaturesForAddress(ctx, g.cfg.ProgramID, &solana.SignaturesOpts{Until: until, Limit: limit})
		return err
	})
	if err != nil {
		return nil, until, err
	}
	if len(sigs) == 0 {
		return nil, until, nil
	}

	cursor := sigs[0].Signature
	txs := make([]*solana.Transaction, 0, len(sigs))
	for i := len(sigs) - 1; i >= 0; i-- {
		if sigs[i].Err != nil {
			continue
		}
		tx, err := g.FetchTransaction(ctx, sigs[i].Signature)
		if err != nil {
			if ctx.Err() != nil {
				return txs, cursor, ctx.Err()
			}
			g.logger.Warn("fetch transaction failed",
				zap.String("signature", sigs[i].Signature),
				zap.Error(err),
			)
			continue
		}
		if tx != nil {
			txs = append(txs, tx)
		}
	}
	return txs, cursor, nil
}

// FetchTransaction returns a confirmed transaction, or nil if the node does
// not know it yet.
func (g *Gateway) FetchTransaction(ctx context.Context, signature string) (*solana.Transaction, error) {
	var tx *solana.Transaction
	err := g.do(ctx, "getTransaction", func(ctx context.Context) error {
		var err error
		tx, err = g.rpc.GetTransaction(ctx, signature)
		return err
	})
	return tx, err
}

// Submit sends a signed transaction with preflight skipped and node retries
// disabled.
func (g *Gateway) Submit(ctx context.Context, payload []byte) (Submission, error) {
	var sig string
	noRetries := uint(0)
	err := g.do(ctx, "sendTransaction", func(ctx context.Context) error {
		var err error
		sig, err = g.rpc.SendTransaction(ctx, payload, &solana.SendOpts{SkipPreflight: true, MaxRetries: &noRetries})
		return err
	})
	if err != nil {
		return Submission{}, err
	}
	return Submission{Signature: sig, SubmittedAt: time.Now().UTC()}, nil
}

// GetStatus maps a signature status to pending, landed, failed or unknown.
func (g *Gateway) GetStatus(ctx context.Context, signature string) (domain.TxStatus, error) {
	var statuses []*solana.SignatureStatus
	err := g.do(ctx, "getSignatureStatuses", func(ctx context.Context) error {
		var err error
		statuses, err = g.rpc.GetSignatureStatuses(ctx, []string{signature})
		return err
	})
	if err != nil {
		return domain.TxUnknown, err
	}
	if len(statuses) == 0 {
		return domain.TxUnknown, nil
	}
	return MapStatus(statuses[0]), nil
}

// MapStatus converts one getSignatureStatuses entry.
func MapStatus(s *solana.SignatureStatus) domain.TxStatus {
	switch {
	case s == nil:
		return domain.TxUnknown
	case s.Err != nil:
		return domain.TxFailed
	case s.ConfirmationStatus == solana.CommitmentConfirmed, s.ConfirmationStatus == solana.CommitmentFinalized:
		return domain.TxLanded
	default:
		return domain.TxPending
	}
}

// FetchAccounts reads several accounts at one slot.
func (g *Gateway) FetchAccounts(ctx context.Context, keys []string) (*solana.MultipleAccounts, error) {
	var res *solana.MultipleAccounts
	err := g.do(ctx, "getMultipleAccounts", func(ctx context.Context) error {
		var err error
		res, err = g.rpc.GetMultipleAccounts(ctx, keys)
		return err
	})
	return res, err
}

// LatestBlockhash returns the most recent blockhash.
func (g *Gateway) LatestBlockhash(ctx context.Context) (*solana.LatestBlockhash, error) {
	var res *solana.LatestBlockhash
	err := g.do(ctx, "getLatestBlockhash", func(ctx context.Context) error {
		var err error
		res, err = g.rpc.GetLatestBlockhash(ctx)
		return err
	})
	return res, err
}

// CurrentSlot returns the node's current slot.
func (g *Gateway) CurrentSlot(ctx context.Context) (int64, error) {
	var slot int64
	err := g.do(ctx, "getSlot", func(ctx context.Context) error {
		var err error
		slot, err = g.rpc.GetSlot(ctx)
		return err
	})
	return slot, err
}

// SubscribeLogs streams logs mentioning the AMM program. The subscription is
// a single long-lived request and is not throttled.
func (g *Gateway) SubscribeLogs(ctx context.Context) (<-chan solana.LogNotification, error) {
	if g.ws == nil {
		return nil, fmt.Errorf("gateway: no websocket client configured")
	}
	ch, err := g.ws.SubscribeLogs(ctx, solana.LogsFilter{Mentions: []string{g.cfg.ProgramID}, Commitment: g.cfg.Commitment})
	if err != nil {
		return nil, wrapRPCError("logsSubscribe", err)
	}
	return ch, nil
}
