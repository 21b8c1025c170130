package events

import (
	"context"
	"testing"

	"solana-sandwich-bot/internal/domain"
)

type countSink map[domain.EventKind]int

func (c countSink) Emit(_ context.Context, ev domain.Event) { c[ev.Kind]++ }

func TestMulti_FansOut(t *testing.T) {
	a, b := countSink{}, countSink{}
	m := NewMulti(a, nil, b)
	if len(m) != 2 {
		t.Fatalf("nil sink kept: %d sinks", len(m))
	}

	m.Emit(context.Background(), domain.Event{Kind: domain.EventPlanBuilt})
	if a[domain.EventPlanBuilt] != 1 || b[domain.EventPlanBuilt] != 1 {
		t.Errorf("a=%v b=%v", a, b)
	}
}

func TestOnly(t *testing.T) {
	c := countSink{}
	f := Only(c, domain.EventOutcome)
	ctx := context.Background()

	f.Emit(ctx, domain.Event{Kind: domain.EventSwapDecoded})
	f.Emit(ctx, domain.Event{Kind: domain.EventOutcome})
	if c[domain.EventSwapDecoded] != 0 || c[domain.EventOutcome] != 1 {
		t.Errorf("counts %v", c)
	}
}
