// Package events fans pipeline events out to several sinks.
package events

import (
	"context"

	"solana-sandwich-bot/internal/domain"
)

// Multi forwards every event to each sink in order.
type Multi []domain.EventSink

// NewMulti builds a Multi, skipping nil sinks.
func NewMulti(sinks ...domain.EventSink) Multi {
	out := make(Multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (m Multi) Emit(ctx context.Context, ev domain.Event) {
	for _, s := range m {
		s.Emit(ctx, ev)
	}
}

// Filter forwards only the listed event kinds to Sink.
type Filter struct {
	Sink  domain.EventSink
	Kinds map[domain.EventKind]bool
}

// Only creates a Filter passing kinds through to sink.
func Only(sink domain.EventSink, kinds ...domain.EventKind) Filter {
	f := Filter{Sink: sink, Kinds: make(map[domain.EventKind]bool, len(kinds))}
	for _, k := range kinds {
		f.Kinds[k] = true
	}
	return f
}

func (f Filter) Emit(ctx context.Context, ev domain.Event) {
	if f.Kinds[ev.Kind] {
		f.Sink.Emit(ctx, ev)
	}
}

var (
	_ domain.EventSink = Multi(nil)
	_ domain.EventSink = Filter{}
)
