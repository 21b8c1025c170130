package executor

import (
	"context"
	"fmt"
	"time"

	"solana-sandwich-bot/internal/domain"
)

// machine is the tagged state of one bundle. Every accepted transition is
// recorded and emitted exactly once.
type machine struct {
	bundleID string
	victim   string
	state    domain.BundleState
	history  []domain.Transition
	sink     domain.EventSink
	now      func() time.Time
}

func newMachine(bundle *domain.TransactionBundle, sink domain.EventSink, now func() time.Time) *machine {
	return &machine{
		bundleID: bundle.ID,
		victim:   bundle.VictimSignature,
		state:    domain.StateBuilt,
		sink:     sink,
		now:      now,
	}
}

// advance moves to the next state. cause is recorded on failure transitions.
func (m *machine) advance(ctx context.Context, to domain.BundleState, signature string, cause error) error {
	if !domain.CanTransition(m.state, to) {
		return fmt.Errorf("bundle %s: illegal transition %s -> %s", m.bundleID, m.state, to)
	}

	t := domain.Transition{
		BundleID:  m.bundleID,
		From:      m.state,
		To:        to,
		Signature: signature,
		At:        m.now().UTC(),
	}
	if cause != nil {
		t.Error = cause.Error()
	}

	m.state = to
	m.history = append(m.history, t)
	m.sink.Emit(ctx, domain.Event{
		Kind:       domain.EventBundleTransition,
		At:         t.At,
		Signature:  m.victim,
		Transition: &t,
	})
	return nil
}

// lastError returns the error of the most recent failing transition.
func (m *machine) lastError() string {
	for i := len(m.history) - 1; i >= 0; i-- {
		if m.history[i].Error != "" {
			return m.history[i].Error
		}
	}
	return ""
}
