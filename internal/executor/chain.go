// Package executor drives signed bundles through submission, confirmation
// and settlement.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"solana-sandwich-bot/internal/domain"
	"solana-sandwich-bot/internal/gateway"
	"solana-sandwich-bot/internal/solana"
)

// Chain is the part of the gateway the coordinator talks to.
type Chain interface {
	Submit(ctx context.Context, payload []byte) (gateway.Submission, error)
	GetStatus(ctx context.Context, signature string) (domain.TxStatus, error)
	CurrentSlot(ctx context.Context) (int64, error)
	FetchTransaction(ctx context.Context, signature string) (*solana.Transaction, error)
}

var _ Chain = (*gateway.Gateway)(nil)

// SlotReader reads the current slot.
type SlotReader interface {
	CurrentSlot(ctx context.Context) (int64, error)
}

// DryRunChain replaces submission with a no-op. Every submitted payload
// reports landed on its first status query. Slot reads are delegated so the
// staleness check still runs against the real chain.
type DryRunChain struct {
	slots  SlotReader
	logger *zap.Logger

	mu        sync.Mutex
	submitted map[string]bool
	order     []string
}

// NewDryRunChain creates a DryRunChain. slots may be nil, in which case the
// current slot is reported as 0 and no bundle is ever stale.
func NewDryRunChain(slots SlotReader, logger *zap.Logger) *DryRunChain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DryRunChain{
		slots:     slots,
		logger:    logger.Named("dryrun"),
		submitted: make(map[string]bool),
	}
}

// Submit records the transaction signature without sending anything.
func (c *DryRunChain) Submit(_ context.Context, payload []byte) (gateway.Submission, error) {
	tx, err := solanago.TransactionFromBytes(payload)
	if err != nil {
		return gateway.Submission{}, fmt.Errorf("dry run: decode payload: %w", err)
	}
	if len(tx.Signatures) == 0 {
		return gateway.Submission{}, errors.New("dry run: unsigned payload")
	}
	sig := tx.Signatures[0].String()

	c.mu.Lock()
	c.submitted[sig] = true
	c.order = append(c.order, sig)
	c.mu.Unlock()

	c.logger.Info("would submit transaction",
		zap.String("signature", sig),
		zap.Int("instructions", len(tx.Message.Instructions)),
		zap.Int("bytes", len(payload)),
	)
	return gateway.Submission{Signature: sig, SubmittedAt: time.Now().UTC()}, nil
}

// GetStatus reports landed for recorded signatures and unknown otherwise.
func (c *DryRunChain) GetStatus(_ context.Context, signature string) (domain.TxStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.submitted[signature] {
		return domain.TxLanded, nil
	}
	return domain.TxUnknown, nil
}

// CurrentSlot delegates to the slot reader.
func (c *DryRunChain) CurrentSlot(ctx context.Context) (int64, error) {
	if c.slots == nil {
		return 0, nil
	}
	return c.slots.CurrentSlot(ctx)
}

// FetchTransaction returns nothing: simulated transactions never exist on chain.
func (c *DryRunChain) FetchTransaction(context.Context, string) (*solana.Transaction, error) {
	return nil, nil
}

// Submitted returns the simulated signatures in submission order.
func (c *DryRunChain) Submitted() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.order...)
}
