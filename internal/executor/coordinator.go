package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"solana-sandwich-bot/internal/bundle"
	"solana-sandwich-bot/internal/domain"
	"solana-sandwich-bot/internal/observability"
	"solana-sandwich-bot/internal/storage"
)

// ErrConfirmTimeout is recorded when a leg did not land within ConfirmTimeout.
var ErrConfirmTimeout = errors.New("confirmation timeout")

// Builder turns a plan into a signed bundle.
type Builder interface {
	Build(plan *domain.SandwichPlan, signer bundle.Signer) (*domain.TransactionBundle, error)
}

// Alerter delivers operator alerts about finished bundles.
type Alerter interface {
	Alert(ctx context.Context, o *domain.ExecutionOutcome) error
}

// Config configures a Coordinator.
type Config struct {
	MaxInFlight    int           // concurrent bundles; default 1
	PollInterval   time.Duration // status poll cadence; default 400ms
	ConfirmTimeout time.Duration // per-leg confirmation bound; default 30s
	MaxSlotLag     int64         // plan slot age that aborts a bundle; default 4
	TxFee          uint64        // per-transaction fee in base units
	DryRun         bool
	LockTTL        time.Duration // wallet lock expiry for shared locks; default 2m
}

func (c *Config) applyDefaults() {
	if c.MaxInFlight <= 0 {
		c.MaxInFlight = 1
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 400 * time.Millisecond
	}
	if c.ConfirmTimeout <= 0 {
		c.ConfirmTimeout = 30 * time.Second
	}
	if c.MaxSlotLag <= 0 {
		c.MaxSlotLag = 4
	}
	if c.LockTTL <= 0 {
		c.LockTTL = 2 * time.Minute
	}
}

// Options contains the collaborators of a Coordinator.
type Options struct {
	Config   Config
	Chain    Chain
	Builder  Builder
	Signer   bundle.Signer
	Lock     WalletLock           // default: in-process lock
	Outcomes storage.OutcomeStore // optional
	Alerter  Alerter              // optional; partial fills are then only logged
	Sink     domain.EventSink     // default: discard
	Logger   *zap.Logger
}

// Coordinator executes sandwich plans one bundle at a time per slot. Plans
// arrive through TryDispatch and are consumed by the workers started in Run.
type Coordinator struct {
	cfg      Config
	chain    Chain
	builder  Builder
	signer   bundle.Signer
	lock     WalletLock
	outcomes storage.OutcomeStore
	alerter  Alerter
	sink     domain.EventSink
	logger   *zap.Logger
	now      func() time.Time

	slots chan struct{}
	queue chan *domain.SandwichPlan
}

// New creates a Coordinator.
func New(opts Options) (*Coordinator, error) {
	if opts.Chain == nil || opts.Builder == nil || opts.Signer == nil {
		return nil, errors.New("executor: chain, builder and signer are required")
	}
	cfg := opts.Config
	cfg.applyDefaults()

	lock := opts.Lock
	if lock == nil {
		lock = NewLocalLock()
	}
	sink := opts.Sink
	if sink == nil {
		sink = domain.DiscardSink{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Coordinator{
		cfg:      cfg,
		chain:    opts.Chain,
		builder:  opts.Builder,
		signer:   opts.Signer,
		lock:     lock,
		outcomes: opts.Outcomes,
		alerter:  opts.Alerter,
		sink:     sink,
		logger:   logger.Named("executor"),
		now:      time.Now,
		slots:    make(chan struct{}, cfg.MaxInFlight),
		queue:    make(chan *domain.SandwichPlan, cfg.MaxInFlight),
	}, nil
}

// TryDispatch hands plan to a worker if a concurrency slot is free. It never
// blocks; false means the opportunity must be dropped.
func (c *Coordinator) TryDispatch(plan *domain.SandwichPlan) bool {
	select {
	case c.slots <- struct{}{}:
	default:
		return false
	}
	select {
	case c.queue <- plan:
		observability.RecordInFlight(1)
		return true
	default:
		c.release()
		return false
	}
}

func (c *Coordinator) release() {
	<-c.slots
	observability.RecordInFlight(-1)
}

// Run starts MaxInFlight workers and blocks until ctx is cancelled and every
// running bundle has finished.
func (c *Coordinator) Run(ctx context.Context) error {
	c.logger.Info("coordinator started",
		zap.Int("max_in_flight", c.cfg.MaxInFlight),
		zap.Bool("dry_run", c.cfg.DryRun),
	)

	var wg sync.WaitGroup
	for i := 0; i < c.cfg.MaxInFlight; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case plan := <-c.queue:
					c.Execute(ctx, plan)
					c.release()
				}
			}
		}()
	}
	wg.Wait()

	c.logger.Info("coordinator stopped")
	return ctx.Err()
}

// Execute runs one plan to a terminal state. It returns nil when the plan
// never produced a bundle (wallet busy or build failure).
func (c *Coordinator) Execute(ctx context.Context, plan *domain.SandwichPlan) *domain.ExecutionOutcome {
	log := c.logger.With(
		zap.String("plan_id", plan.ID),
		zap.String("victim", plan.Swap.Signature),
	)

	wallet := c.signer.PublicKey().String()
	unlock, err := c.lock.Acquire(ctx, "wallet:"+wallet, c.cfg.LockTTL)
	if err != nil {
		log.Info("opportunity dropped", zap.Error(err))
		c.drop(ctx, plan, err)
		return nil
	}
	defer unlock()

	b, err := c.builder.Build(plan, c.signer)
	if err != nil {
		log.Error("build failed", zap.Error(err))
		c.drop(ctx, plan, err)
		return nil
	}

	started := c.now().UTC()
	m := newMachine(b, c.sink, c.now)
	log = log.With(zap.String("bundle_id", b.ID))

	c.run(ctx, m, b, plan, log)

	outcome := c.outcome(ctx, m, b, plan, started, log)
	c.finish(ctx, outcome, log)
	return outcome
}

// run drives the state machine from built to a terminal state.
func (c *Coordinator) run(ctx context.Context, m *machine, b *domain.TransactionBundle, plan *domain.SandwichPlan, log *zap.Logger) {
	stale, err := c.stale(ctx, plan)
	if err != nil {
		log.Warn("bundle not submitted", zap.Error(err))
		c.must(ctx, m, domain.StateFrontFailed, "", err, log)
		return
	}
	if stale {
		err := fmt.Errorf("plan slot %d is stale", plan.Pool.Slot)
		log.Info("bundle aborted", zap.Error(err))
		c.must(ctx, m, domain.StateAborted, "", err, log)
		return
	}

	front, err := c.chain.Submit(ctx, b.Front.Payload)
	if err != nil {
		log.Warn("front submission failed", zap.Error(err))
		c.must(ctx, m, domain.StateFrontFailed, b.Front.Signature, err, log)
		return
	}
	c.must(ctx, m, domain.StateFrontSubmitted, front.Signature, nil, log)

	// From here on the bundle runs to completion even during shutdown.
	ctx = context.WithoutCancel(ctx)

	if err := c.confirm(ctx, front.Signature); err != nil {
		log.Warn("front leg did not land", zap.Error(err))
		c.must(ctx, m, domain.StateFrontFailed, front.Signature, err, log)
		return
	}
	c.must(ctx, m, domain.StateFrontConfirmed, front.Signature, nil, log)

	back, err := c.chain.Submit(ctx, b.Back.Payload)
	if err != nil {
		log.Error("back submission failed, position left open", zap.Error(err))
		c.must(ctx, m, domain.StateBackFailed, b.Back.Signature, err, log)
		return
	}
	c.must(ctx, m, domain.StateBackSubmitted, back.Signature, nil, log)

	if err := c.confirm(ctx, back.Signature); err != nil {
		log.Error("back leg did not land, position left open", zap.Error(err))
		c.must(ctx, m, domain.StateBackFailed, back.Signature, err, log)
		return
	}
	c.must(ctx, m, domain.StateBackConfirmed, back.Signature, nil, log)
}

// must advances m. The coordinator only requests legal transitions, so a
// refusal is a programming error and is logged loudly.
func (c *Coordinator) must(ctx context.Context, m *machine, to domain.BundleState, sig string, cause error, log *zap.Logger) {
	if err := m.advance(ctx, to, sig, cause); err != nil {
		log.DPanic("state machine refused transition", zap.Error(err))
	}
}

func (c *Coordinator) stale(ctx context.Context, plan *domain.SandwichPlan) (bool, error) {
	slot, err := c.chain.CurrentSlot(ctx)
	if err != nil {
		return false, fmt.Errorf("read current slot: %w", err)
	}
	return slot-plan.Pool.Slot > c.cfg.MaxSlotLag, nil
}

// confirm polls the status of sig until it lands, fails or ConfirmTimeout
// elapses. Status read errors are transient and keep the poll going.
func (c *Coordinator) confirm(ctx context.Context, sig string) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ConfirmTimeout)
	defer cancel()

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		status, err := c.chain.GetStatus(ctx, sig)
		switch {
		case err != nil:
			lastErr = err
		case status == domain.TxLanded:
			return nil
		case status == domain.TxFailed:
			return fmt.Errorf("transaction %s failed on chain", sig)
		}

		select {
		case <-ctx.Done():
			if lastErr != nil {
				return fmt.Errorf("%w: last status error: %v", ErrConfirmTimeout, lastErr)
			}
			return ErrConfirmTimeout
		case <-ticker.C:
		}
	}
}

func (c *Coordinator) outcome(ctx context.Context, m *machine, b *domain.TransactionBundle, plan *domain.SandwichPlan, started time.Time, log *zap.Logger) *domain.ExecutionOutcome {
	o := &domain.ExecutionOutcome{
		BundleID:        b.ID,
		PlanID:          plan.ID,
		VictimSignature: plan.Swap.Signature,
		FinalState:      m.state,
		ExpectedProfit:  plan.NetProfit,
		DryRun:          c.cfg.DryRun,
		Error:           m.lastError(),
		StartedAt:       started,
	}
	for _, t := range m.history {
		switch t.To {
		case domain.StateFrontSubmitted:
			o.FrontSignature = t.Signature
		case domain.StateBackSubmitted:
			o.BackSignature = t.Signature
		}
	}

	profitable := false
	if m.state == domain.StateBackConfirmed {
		o.RealizedProfit, o.RealizedKnown = c.realized(ctx, o, b, plan, log)
		profitable = o.RealizedProfit > 0
	}
	o.Kind = domain.OutcomeFor(m.state, profitable)
	o.FinishedAt = c.now().UTC()
	return o
}

// realized reads both legs back and measures the wallet's base-mint delta.
// In dry-run mode, and whenever a leg cannot be read, the plan's expected
// profit stands in.
func (c *Coordinator) realized(ctx context.Context, o *domain.ExecutionOutcome, b *domain.TransactionBundle, plan *domain.SandwichPlan, log *zap.Logger) (int64, bool) {
	if c.cfg.DryRun {
		return plan.NetProfit, true
	}

	front, err := c.chain.FetchTransaction(ctx, o.FrontSignature)
	if err != nil || front == nil {
		log.Warn("settlement unknown: front leg unavailable", zap.Error(err))
		return plan.NetProfit, false
	}
	back, err := c.chain.FetchTransaction(ctx, o.BackSignature)
	if err != nil || back == nil {
		log.Warn("settlement unknown: back leg unavailable", zap.Error(err))
		return plan.NetProfit, false
	}

	profit, err := settle(front, back, b.Wallet, plan.BaseMint, c.cfg.TxFee)
	if err != nil {
		log.Warn("settlement unknown", zap.Error(err))
		return plan.NetProfit, false
	}
	return profit, true
}

func (c *Coordinator) finish(ctx context.Context, o *domain.ExecutionOutcome, log *zap.Logger) {
	ctx = context.WithoutCancel(ctx)

	log.Info("bundle finished",
		zap.String("outcome", string(o.Kind)),
		zap.String("state", string(o.FinalState)),
		zap.Int64("expected_profit", o.ExpectedProfit),
		zap.Int64("realized_profit", o.RealizedProfit),
		zap.Bool("realized_known", o.RealizedKnown),
		zap.Duration("elapsed", o.FinishedAt.Sub(o.StartedAt)),
	)

	c.sink.Emit(ctx, domain.Event{
		Kind:      domain.EventOutcome,
		At:        o.FinishedAt,
		Signature: o.VictimSignature,
		Outcome:   o,
	})

	if c.outcomes != nil {
		if err := c.outcomes.Insert(ctx, o); err != nil {
			log.Error("persist outcome failed", zap.Error(err))
		}
	}

	if o.Partial() {
		log.Error("front leg landed but back leg failed: manual unwind required",
			zap.String("front_signature", o.FrontSignature),
			zap.String("back_signature", o.BackSignature),
			zap.String("error", o.Error),
		)
	}
	if c.alerter != nil {
		if err := c.alerter.Alert(ctx, o); err != nil {
			log.Error("alert delivery failed",
				zap.String("outcome", string(o.Kind)),
				zap.Error(err),
			)
		}
	}
}

func (c *Coordinator) drop(ctx context.Context, plan *domain.SandwichPlan, err error) {
	c.sink.Emit(ctx, domain.Event{
		Kind:      domain.EventOpportunityDropped,
		At:        c.now().UTC(),
		Signature: plan.Swap.Signature,
		Plan:      plan,
		Error:     err.Error(),
	})
}
