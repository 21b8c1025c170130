package observability

import (
	"context"
	"strconv"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"solana-sandwich-bot/internal/domain"
)

// LogSink writes one structured line per pipeline event.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a LogSink logging under "events".
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger.Named("events")}
}

func (s *LogSink) Emit(_ context.Context, ev domain.Event) {
	fields := []zap.Field{zap.String("kind", string(ev.Kind))}
	if ev.Signature != "" {
		fields = append(fields, zap.String("signature", ev.Signature))
	}
	if ev.Error != "" {
		fields = append(fields, zap.String("error", ev.Error))
	}

	level := zapcore.InfoLevel
	switch ev.Kind {
	case domain.EventSwapDecoded:
		level = zapcore.DebugLevel
		if ev.Swap != nil {
			fields = append(fields,
				zap.String("pool", ev.Swap.Pool),
				zap.String("swap_kind", string(ev.Swap.Kind)),
				zap.Uint64("amount_in", ev.Swap.AmountIn),
				zap.Uint64("minimum_out", ev.Swap.MinimumOut),
			)
		}
	case domain.EventDecodeFailed:
		level = zapcore.WarnLevel
	case domain.EventPlanRejected:
		level = zapcore.DebugLevel
		fields = append(fields, zap.String("reason", string(ev.Reason)))
	case domain.EventPlanBuilt, domain.EventOpportunityDropped:
		if ev.Plan != nil {
			fields = append(fields,
				zap.String("plan_id", ev.Plan.ID),
				zap.Uint64("front_in", ev.Plan.FrontIn),
				zap.Int64("net_profit", ev.Plan.NetProfit),
			)
		}
	case domain.EventBundleTransition:
		if tr := ev.Transition; tr != nil {
			fields = append(fields,
				zap.String("bundle_id", tr.BundleID),
				zap.String("from", string(tr.From)),
				zap.String("to", string(tr.To)),
			)
			if tr.Signature != "" {
				fields = append(fields, zap.String("tx", tr.Signature))
			}
		}
	case domain.EventOutcome:
		if o := ev.Outcome; o != nil {
			fields = append(fields,
				zap.String("bundle_id", o.BundleID),
				zap.String("outcome", string(o.Kind)),
				zap.Int64("expected_profit", o.ExpectedProfit),
				zap.Int64("realized_profit", o.RealizedProfit),
				zap.Bool("realized_known", o.RealizedKnown),
				zap.Bool("dry_run", o.DryRun),
			)
			if o.Partial() {
				level = zapcore.ErrorLevel
			}
		}
	}

	if ce := s.logger.Check(level, "pipeline event"); ce != nil {
		ce.Write(fields...)
	}
}

// MetricsSink turns pipeline events into Prometheus counters.
type MetricsSink struct {
	m *Metrics
}

// NewMetricsSink creates a MetricsSink. A nil m uses DefaultMetrics.
func NewMetricsSink(m *Metrics) *MetricsSink {
	if m == nil {
		m = DefaultMetrics
	}
	return &MetricsSink{m: m}
}

func (s *MetricsSink) Emit(_ context.Context, ev domain.Event) {
	switch ev.Kind {
	case domain.EventSwapDecoded:
		s.m.SwapsDecoded.Inc()
		s.m.LastSwapDecoded.Set(float64(ev.At.Unix()))
	case domain.EventDecodeFailed:
		s.m.DecodeFailures.Inc()
	case domain.EventPlanBuilt:
		s.m.Evaluations.WithLabelValues("accepted").Inc()
		if ev.Plan != nil {
			s.m.PlanNetProfit.Observe(float64(ev.Plan.NetProfit))
		}
	case domain.EventPlanRejected:
		s.m.Evaluations.WithLabelValues(string(ev.Reason)).Inc()
	case domain.EventBundleTransition:
		if ev.Transition != nil {
			s.m.BundleTransitions.WithLabelValues(string(ev.Transition.To)).Inc()
		}
	case domain.EventOutcome:
		if o := ev.Outcome; o != nil {
			s.m.Outcomes.WithLabelValues(string(o.Kind), strconv.FormatBool(o.DryRun)).Inc()
			if !o.DryRun && o.RealizedKnown {
				s.m.RealizedProfit.Add(float64(o.RealizedProfit))
			}
		}
	case domain.EventOpportunityDropped:
		s.m.OpportunitiesDropped.Inc()
	}
}

var (
	_ domain.EventSink = (*LogSink)(nil)
	_ domain.EventSink = (*MetricsSink)(nil)
)
