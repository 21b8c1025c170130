package storage

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"solana-sandwich-bot/internal/domain"
	"solana-sandwich-bot/internal/observability"
)

// RecorderOptions configures a Recorder.
type RecorderOptions struct {
	Evaluations   EvaluationStore // optional
	Transitions   TransitionStore // optional
	BatchSize     int             // evaluation rows per InsertBulk; default 500
	FlushInterval time.Duration   // max age of a partial batch; default 2s
	Buffer        int             // queued events before Emit drops; default 4096
	Database      string          // label for query metrics
	Logger        *zap.Logger
}

// Recorder is a domain.EventSink that persists evaluation rows and bundle
// transitions off the hot path. Emit never blocks: when the queue is full the
// event is dropped and counted.
type Recorder struct {
	evals       EvaluationStore
	transitions TransitionStore
	batchSize   int
	interval    time.Duration
	database    string
	logger      *zap.Logger

	ch      chan domain.Event
	mu      sync.Mutex
	dropped int
}

// NewRecorder creates a Recorder. Call Run to start persisting.
func NewRecorder(opts RecorderOptions) *Recorder {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 2 * time.Second
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 4096
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Recorder{
		evals:       opts.Evaluations,
		transitions: opts.Transitions,
		batchSize:   opts.BatchSize,
		interval:    opts.FlushInterval,
		database:    opts.Database,
		logger:      opts.Logger.Named("recorder"),
		ch:          make(chan domain.Event, opts.Buffer),
	}
}

// Emit queues ev if it is one the recorder persists.
func (r *Recorder) Emit(_ context.Context, ev domain.Event) {
	switch ev.Kind {
	case domain.EventPlanBuilt, domain.EventPlanRejected:
		if r.evals == nil {
			return
		}
	case domain.EventBundleTransition:
		if r.transitions == nil {
			return
		}
	default:
		return
	}

	select {
	case r.ch <- ev:
	default:
		r.mu.Lock()
		r.dropped++
		r.mu.Unlock()
	}
}

// Dropped returns how many events were discarded on a full queue.
func (r *Recorder) Dropped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Run persists queued events until ctx is cancelled, then drains the queue
// and flushes the last batch with a fresh context.
func (r *Recorder) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	batch := make([]*domain.PlanEvaluation, 0, r.batchSize)
	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}
		r.insertEvaluations(ctx, batch)
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			for {
				select {
				case ev := <-r.ch:
					if row := r.handle(final, ev); row != nil {
						batch = append(batch, row)
						if len(batch) >= r.batchSize {
							flush(final)
						}
					}
				default:
					flush(final)
					return ctx.Err()
				}
			}

		case ev := <-r.ch:
			if row := r.handle(ctx, ev); row != nil {
				batch = append(batch, row)
				if len(batch) >= r.batchSize {
					flush(ctx)
				}
			}

		case <-ticker.C:
			flush(ctx)
		}
	}
}

// handle writes transitions directly and returns evaluation rows for batching.
func (r *Recorder) handle(ctx context.Context, ev domain.Event) *domain.PlanEvaluation {
	switch ev.Kind {
	case domain.EventPlanBuilt:
		if ev.Plan == nil {
			return nil
		}
		row := ev.Plan.Evaluation(ev.At)
		return &row
	case domain.EventPlanRejected:
		if ev.Swap == nil {
			return nil
		}
		row := domain.RejectedEvaluation(*ev.Swap, ev.Reason, ev.At)
		return &row
	case domain.EventBundleTransition:
		if ev.Transition == nil {
			return nil
		}
		start := time.Now()
		err := r.transitions.Insert(ctx, ev.Transition)
		observability.RecordDBQuery(r.database, "insert_transition", time.Since(start).Seconds(), err)
		if err != nil {
			r.logger.Warn("store transition failed",
				zap.String("bundle_id", ev.Transition.BundleID),
				zap.String("to", string(ev.Transition.To)),
				zap.Error(err),
			)
		}
	}
	return nil
}

// insertEvaluations writes one batch. A duplicate in the batch falls back to
// row-by-row inserts so the rest still lands.
func (r *Recorder) insertEvaluations(ctx context.Context, batch []*domain.PlanEvaluation) {
	start := time.Now()
	err := r.evals.InsertBulk(ctx, batch)
	observability.RecordDBQuery(r.database, "insert_evaluations", time.Since(start).Seconds(), err)
	if err == nil {
		return
	}
	if !errors.Is(err, ErrDuplicateKey) {
		r.logger.Warn("store evaluations failed", zap.Int("rows", len(batch)), zap.Error(err))
		return
	}

	var stored, dupes, errs int
	for _, row := range batch {
		err := r.evals.InsertBulk(ctx, []*domain.PlanEvaluation{row})
		switch {
		case err == nil:
			stored++
		case errors.Is(err, ErrDuplicateKey):
			dupes++
		default:
			errs++
		}
	}
	r.logger.Info("stored evaluations row by row",
		zap.Int("stored", stored),
		zap.Int("duplicates", dupes),
		zap.Int("errors", errs),
	)
}

var _ domain.EventSink = (*Recorder)(nil)
