// Package monitor runs the poll, decode, evaluate and dispatch loop.
package monitor

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"solana-sandwich-bot/internal/decoder"
	"solana-sandwich-bot/internal/domain"
	"solana-sandwich-bot/internal/evaluator"
	"solana-sandwich-bot/internal/observability"
	"solana-sandwich-bot/internal/pool"
	"solana-sandwich-bot/internal/solana"
)

// Dispatcher accepts plans without blocking; false means dropped.
type Dispatcher interface {
	TryDispatch(plan *domain.SandwichPlan) bool
}

// Options contains the collaborators of a Monitor.
type Options struct {
	Source     Source
	Decoder    *decoder.Decoder // default: Raydium AMM v4
	Pools      pool.Provider
	Params     evaluator.Params
	Dispatcher Dispatcher // nil evaluates without executing
	Sink       domain.EventSink
	Logger     *zap.Logger

	// ErrorBackoff is the pause after a failed poll; default 500ms.
	ErrorBackoff time.Duration
	// SeenSize bounds the signature dedupe set; default 4096.
	SeenSize int
}

// Monitor is the top-level detection loop.
type Monitor struct {
	source     Source
	decoder    *decoder.Decoder
	pools      pool.Provider
	params     evaluator.Params
	dispatcher Dispatcher
	sink       domain.EventSink
	logger     *zap.Logger
	backoff    time.Duration
	seen       *recent
	now        func() time.Time
}

// New creates a Monitor.
func New(opts Options) (*Monitor, error) {
	if opts.Source == nil || opts.Pools == nil {
		return nil, errors.New("monitor: source and pool provider are required")
	}
	if !opts.Params.Validate() {
		return nil, errors.New("monitor: invalid strategy params")
	}
	if opts.Decoder == nil {
		opts.Decoder = decoder.New()
	}
	if opts.Sink == nil {
		opts.Sink = domain.DiscardSink{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.ErrorBackoff <= 0 {
		opts.ErrorBackoff = 500 * time.Millisecond
	}
	return &Monitor{
		source:     opts.Source,
		decoder:    opts.Decoder,
		pools:      opts.Pools,
		params:     opts.Params,
		dispatcher: opts.Dispatcher,
		sink:       opts.Sink,
		logger:     opts.Logger.Named("monitor"),
		backoff:    opts.ErrorBackoff,
		seen:       newRecent(opts.SeenSize),
		now:        time.Now,
	}, nil
}

// Run polls until ctx is cancelled or the source closes. Failed polls are
// logged and retried after ErrorBackoff.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("monitor started",
		zap.String("program", m.decoder.ProgramID()),
		zap.Uint64("max_trade_size", m.params.MaxTradeSize),
		zap.Int64("min_margin", m.params.MinMargin),
		zap.Bool("execute", m.dispatcher != nil),
	)

	for {
		txs, err := m.source.Next(ctx)
		if ctx.Err() != nil {
			m.logger.Info("monitor stopping")
			return ctx.Err()
		}
		if errors.Is(err, ErrSourceClosed) {
			return err
		}
		if err != nil {
			m.logger.Warn("poll failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(m.backoff):
			}
		}

		for _, tx := range txs {
			m.HandleTransaction(ctx, tx)
		}
	}
}

// HandleTransaction runs one transaction through decode, evaluate and
// dispatch. It returns the plans that were built. Transactions already seen
// are ignored.
func (m *Monitor) HandleTransaction(ctx context.Context, tx *solana.Transaction) []*domain.SandwichPlan {
	if tx == nil || !m.seen.add(tx.Signature) {
		return nil
	}
	observability.RecordTransactionSeen()
	observability.UpdateHighestSlot(tx.Slot)

	records, err := m.decoder.Decode(tx)
	if err != nil {
		m.logger.Debug("decode failed", zap.String("signature", tx.Signature), zap.Error(err))
		m.sink.Emit(ctx, domain.Event{
			Kind:      domain.EventDecodeFailed,
			At:        m.now().UTC(),
			Signature: tx.Signature,
			Error:     err.Error(),
		})
	}

	var plans []*domain.SandwichPlan
	for i := range records {
		swap := records[i]
		m.sink.Emit(ctx, domain.Event{
			Kind:      domain.EventSwapDecoded,
			At:        m.now().UTC(),
			Signature: swap.Signature,
			Swap:      &swap,
		})
		if plan := m.evaluate(ctx, swap); plan != nil {
			plans = append(plans, plan)
		}
	}
	return plans
}

func (m *Monitor) evaluate(ctx context.Context, swap domain.SwapRecord) *domain.SandwichPlan {
	log := m.logger.With(
		zap.String("signature", swap.Signature),
		zap.Int("instruction", swap.InstructionIndex),
		zap.String("pool", swap.Pool),
	)

	st, err := m.pools.Snapshot(ctx, swap)
	if err != nil {
		log.Warn("pool snapshot failed", zap.Error(err))
		m.reject(ctx, swap, domain.RejectNoReserves, err)
		return nil
	}

	plan, reason := evaluator.Evaluate(swap, st, m.params)
	if plan == nil {
		log.Debug("no opportunity", zap.String("reason", string(reason)))
		m.reject(ctx, swap, reason, nil)
		return nil
	}
	plan.CreatedAt = m.now().UTC()

	log.Info("opportunity found",
		zap.String("plan_id", plan.ID),
		zap.Uint64("front_in", plan.FrontIn),
		zap.Int64("net_profit", plan.NetProfit),
		zap.String("victim_price", plan.VictimPrice().String()),
	)
	m.sink.Emit(ctx, domain.Event{
		Kind:      domain.EventPlanBuilt,
		At:        plan.CreatedAt,
		Signature: swap.Signature,
		Swap:      &plan.Swap,
		Plan:      plan,
	})

	if m.dispatcher != nil && !m.dispatcher.TryDispatch(plan) {
		log.Info("opportunity dropped: executor busy", zap.String("plan_id", plan.ID))
		m.sink.Emit(ctx, domain.Event{
			Kind:      domain.EventOpportunityDropped,
			At:        m.now().UTC(),
			Signature: swap.Signature,
			Plan:      plan,
			Error:     "executor busy",
		})
	}
	return plan
}

func (m *Monitor) reject(ctx context.Context, swap domain.SwapRecord, reason domain.RejectReason, err error) {
	ev := domain.Event{
		Kind:      domain.EventPlanRejected,
		At:        m.now().UTC(),
		Signature: swap.Signature,
		Swap:      &swap,
		Reason:    reason,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	m.sink.Emit(ctx, ev)
}
