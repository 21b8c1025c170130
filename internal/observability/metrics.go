// Package observability provides Prometheus metrics, the zap logger and the
// event sinks that feed them.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the bot.
type Metrics struct {
	// Gateway metrics
	RPCCalls         *prometheus.CounterVec
	RPCCallLatency   *prometheus.HistogramVec
	ThrottleWait     prometheus.Histogram
	ThrottleTimeouts prometheus.Counter

	// Monitor metrics
	TransactionsSeen prometheus.Counter
	SwapsDecoded     prometheus.Counter
	DecodeFailures   prometheus.Counter
	HighestSlotSeen  prometheus.Gauge

	// Evaluator metrics
	Evaluations   *prometheus.CounterVec
	PlanNetProfit prometheus.Histogram

	// Executor metrics
	BundleTransitions    *prometheus.CounterVec
	Outcomes             *prometheus.CounterVec
	RealizedProfit       prometheus.Gauge
	BundlesInFlight      prometheus.Gauge
	OpportunitiesDropped prometheus.Counter
	AlertsSent           *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSwapDecoded prometheus.Gauge
}

// NewMetrics creates a Metrics instance registered on reg.
// A nil reg uses the default Prometheus registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "sandwich"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		RPCCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "rpc_calls_total",
			Help:      "Total number of RPC calls by method and status",
		}, []string{"method", "status"}),
		RPCCallLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds, excluding throttle wait",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		ThrottleWait: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "throttle_wait_seconds",
			Help:      "Time spent waiting for a rate limit permit",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}),
		ThrottleTimeouts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "throttle_timeouts_total",
			Help:      "Total number of calls rejected with a rate limit timeout",
		}),

		TransactionsSeen: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "transactions_seen_total",
			Help:      "Total number of transactions pulled from the source",
		}),
		SwapsDecoded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "swaps_decoded_total",
			Help:      "Total number of swap records decoded",
		}),
		DecodeFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "decode_failures_total",
			Help:      "Total number of logs or instructions that failed to decode",
		}),
		HighestSlotSeen: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "highest_slot_seen",
			Help:      "Highest Solana slot number seen",
		}),

		Evaluations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "evaluator",
			Name:      "evaluations_total",
			Help:      "Total number of evaluations by result (accepted or reject reason)",
		}, []string{"result"}),
		PlanNetProfit: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "evaluator",
			Name:      "plan_net_profit",
			Help:      "Expected net profit of accepted plans in base units",
			Buckets:   prometheus.ExponentialBuckets(1000, 4, 10),
		}),

		BundleTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "bundle_transitions_total",
			Help:      "Total number of bundle state transitions by target state",
		}, []string{"to"}),
		Outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "outcomes_total",
			Help:      "Total number of execution outcomes by kind",
		}, []string{"kind", "dry_run"}),
		RealizedProfit: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "realized_profit",
			Help:      "Cumulative realized profit in base units",
		}),
		BundlesInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "bundles_in_flight",
			Help:      "Number of bundles currently executing",
		}),
		OpportunitiesDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "opportunities_dropped_total",
			Help:      "Total number of plans dropped because every slot was busy",
		}),
		AlertsSent: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "alerts_total",
			Help:      "Total number of alerts by sender and status",
		}, []string{"sender", "status"}),

		DBQueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		LastSwapDecoded: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_swap_decoded_timestamp",
			Help:      "Unix timestamp of the last decoded swap",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// RecordRPCCall records one gateway call.
func RecordRPCCall(method string, seconds float64, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	DefaultMetrics.RPCCalls.WithLabelValues(method, status).Inc()
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordThrottleWait records the time a call waited for its permit.
func RecordThrottleWait(seconds float64, timedOut bool) {
	DefaultMetrics.ThrottleWait.Observe(seconds)
	if timedOut {
		DefaultMetrics.ThrottleTimeouts.Inc()
	}
}

// UpdateHighestSlot updates the highest slot seen gauge.
func UpdateHighestSlot(slot int64) {
	DefaultMetrics.HighestSlotSeen.Set(float64(slot))
}

// RecordTransactionSeen increments the transactions seen counter.
func RecordTransactionSeen() {
	DefaultMetrics.TransactionsSeen.Inc()
}

// RecordInFlight adjusts the in-flight bundle gauge by delta.
func RecordInFlight(delta int) {
	DefaultMetrics.BundlesInFlight.Add(float64(delta))
}

// RecordAlert records one alert delivery attempt.
func RecordAlert(sender string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	DefaultMetrics.AlertsSent.WithLabelValues(sender, status).Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
