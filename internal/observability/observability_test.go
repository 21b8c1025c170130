package observability

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"solana-sandwich-bot/internal/domain"
)

func TestNewLogger(t *testing.T) {
	logger, level, err := NewLogger("warn", false)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if logger.Core().Enabled(zapcore.InfoLevel) {
		t.Error("info enabled at warn level")
	}
	level.SetLevel(zapcore.DebugLevel)
	if !logger.Core().Enabled(zapcore.DebugLevel) {
		t.Error("atomic level change not applied")
	}

	if _, _, err := NewLogger("loud", false); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestMetricsSink(t *testing.T) {
	m := NewMetrics("test", prometheus.NewRegistry())
	sink := NewMetricsSink(m)
	ctx := context.Background()
	at := time.Unix(1_700_000_000, 0)

	sink.Emit(ctx, domain.Event{Kind: domain.EventSwapDecoded, At: at})
	sink.Emit(ctx, domain.Event{Kind: domain.EventSwapDecoded, At: at})
	sink.Emit(ctx, domain.Event{Kind: domain.EventDecodeFailed})
	sink.Emit(ctx, domain.Event{Kind: domain.EventPlanBuilt, Plan: &domain.SandwichPlan{NetProfit: 39}})
	sink.Emit(ctx, domain.Event{Kind: domain.EventPlanRejected, Reason: domain.RejectBelowMargin})
	sink.Emit(ctx, domain.Event{Kind: domain.EventBundleTransition, Transition: &domain.Transition{To: domain.StateFrontSubmitted}})
	sink.Emit(ctx, domain.Event{Kind: domain.EventOutcome, Outcome: &domain.ExecutionOutcome{
		Kind: domain.OutcomeBothLandedProfitable, RealizedProfit: 37, RealizedKnown: true,
	}})
	sink.Emit(ctx, domain.Event{Kind: domain.EventOutcome, Outcome: &domain.ExecutionOutcome{
		Kind: domain.OutcomeBothLandedProfitable, RealizedProfit: 39, RealizedKnown: true, DryRun: true,
	}})
	sink.Emit(ctx, domain.Event{Kind: domain.EventOpportunityDropped})

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"swaps", testutil.ToFloat64(m.SwapsDecoded), 2},
		{"last swap", testutil.ToFloat64(m.LastSwapDecoded), 1_700_000_000},
		{"decode failures", testutil.ToFloat64(m.DecodeFailures), 1},
		{"accepted", testutil.ToFloat64(m.Evaluations.WithLabelValues("accepted")), 1},
		{"below margin", testutil.ToFloat64(m.Evaluations.WithLabelValues("below_margin")), 1},
		{"transitions", testutil.ToFloat64(m.BundleTransitions.WithLabelValues("front_submitted")), 1},
		{"live outcomes", testutil.ToFloat64(m.Outcomes.WithLabelValues("both_landed_profitable", "false")), 1},
		{"dry outcomes", testutil.ToFloat64(m.Outcomes.WithLabelValues("both_landed_profitable", "true")), 1},
		{"realized, live only", testutil.ToFloat64(m.RealizedProfit), 37},
		{"dropped", testutil.ToFloat64(m.OpportunitiesDropped), 1},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestLogSink_Levels(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	sink := NewLogSink(zap.New(core))
	ctx := context.Background()

	sink.Emit(ctx, domain.Event{Kind: domain.EventSwapDecoded, Swap: &domain.SwapRecord{}})
	sink.Emit(ctx, domain.Event{Kind: domain.EventPlanBuilt, Signature: "v1", Plan: &domain.SandwichPlan{ID: "p1"}})
	sink.Emit(ctx, domain.Event{Kind: domain.EventOutcome, Outcome: &domain.ExecutionOutcome{
		BundleID: "b1", Kind: domain.OutcomeFrontOnlyLanded,
	}})

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected debug event filtered, got %d entries", len(entries))
	}
	if entries[0].ContextMap()["plan_id"] != "p1" || entries[0].ContextMap()["signature"] != "v1" {
		t.Errorf("plan fields %v", entries[0].ContextMap())
	}
	if entries[1].Level != zapcore.ErrorLevel || entries[1].ContextMap()["outcome"] != "front_only_landed" {
		t.Errorf("partial outcome logged as %v %v", entries[1].Level, entries[1].ContextMap())
	}
}
