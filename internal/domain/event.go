package domain

import (
	"context"
	"time"
)

// EventKind names a pipeline event.
type EventKind string

const (
	EventSwapDecoded        EventKind = "swap_decoded"
	EventDecodeFailed       EventKind = "decode_failed"
	EventPlanBuilt          EventKind = "plan_built"
	EventPlanRejected       EventKind = "plan_rejected"
	EventBundleTransition   EventKind = "bundle_transition"
	EventOutcome            EventKind = "outcome"
	EventOpportunityDropped EventKind = "opportunity_dropped"
)

// Event is one structured pipeline event. Only the field matching Kind is set,
// except Swap which accompanies plan events.
type Event struct {
	Kind       EventKind         `json:"kind"`
	At         time.Time         `json:"at"`
	Signature  string            `json:"signature,omitempty"`
	Swap       *SwapRecord       `json:"swap,omitempty"`
	Plan       *SandwichPlan     `json:"plan,omitempty"`
	Reason     RejectReason      `json:"reason,omitempty"`
	Transition *Transition       `json:"transition,omitempty"`
	Outcome    *ExecutionOutcome `json:"outcome,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// EventSink receives pipeline events. Implementations must be safe for
// concurrent use and must not block the caller for long.
type EventSink interface {
	Emit(ctx context.Context, ev Event)
}

// DiscardSink drops every event.
type DiscardSink struct{}

func (DiscardSink) Emit(context.Context, Event) {}
