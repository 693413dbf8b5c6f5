// Package metrics provides Prometheus observability metrics for the forum
// scheduler. It covers business outcomes (fulfillment) and operational
// health of the seed search.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry is the custom prometheus registry for our application
var Registry = prometheus.NewRegistry()

// factory allows us to register metrics to our custom Registry directly
var factory = promauto.With(Registry)

// =============================================================================
// CRITICAL METRICS - Business Impact Visibility
// =============================================================================

// RequestsTotal tracks the total meeting requests in the selected run.
var RequestsTotal = factory.NewGauge(prometheus.GaugeOpts{
	Namespace: "scheduler",
	Name:      "requests_total",
	Help:      "Total meeting requests processed in the selected run",
})

// FulfilledTotal tracks requests fulfilled in the selected run.
var FulfilledTotal = factory.NewGauge(prometheus.GaugeOpts{
	Namespace: "scheduler",
	Name:      "fulfilled_total",
	Help:      "Meeting requests fulfilled in the selected run",
})

// UnfulfilledTotal tracks requests left unfulfilled in the selected run.
var UnfulfilledTotal = factory.NewGauge(prometheus.GaugeOpts{
	Namespace: "scheduler",
	Name:      "unfulfilled_total",
	Help:      "Meeting requests left unfulfilled in the selected run",
})

// UnfulfilledByTier breaks unfulfilled requests down by supplier tier.
var UnfulfilledByTier = factory.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "scheduler",
	Name:      "unfulfilled_by_tier",
	Help:      "Unfulfilled meeting requests broken down by supplier tier",
}, []string{"tier"})

// SuppliersAffected tracks suppliers with at least one unfulfilled
// request.
var SuppliersAffected = factory.NewGauge(prometheus.GaugeOpts{
	Namespace: "scheduler",
	Name:      "suppliers_affected",
	Help:      "Suppliers with at least one unfulfilled request in the selected run",
})

// RotationWarningsTotal tracks staff who could not be placed into any
// presentation session.
var RotationWarningsTotal = factory.NewGauge(prometheus.GaugeOpts{
	Namespace: "scheduler",
	Name:      "rotation_warnings_total",
	Help:      "Eligible staff left without a rotating presentation session",
})

// =============================================================================
// IMPORTANT METRICS - Operational Health
// =============================================================================

// TrialsTotal counts seed trials by search stage (base or addon).
var TrialsTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "search",
	Name:      "trials_total",
	Help:      "Seed trials executed, by search stage",
}, []string{"stage"})

// TrialDurationSeconds tracks the duration of a single seed trial.
var TrialDurationSeconds = factory.NewHistogram(prometheus.HistogramOpts{
	Namespace: "search",
	Name:      "trial_duration_seconds",
	Help:      "Time taken to run one seed trial",
	Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
})

// SearchDurationSeconds tracks the duration of a full scheduling run.
var SearchDurationSeconds = factory.NewHistogram(prometheus.HistogramOpts{
	Namespace: "search",
	Name:      "duration_seconds",
	Help:      "Time taken to run the full multi-seed search",
	Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0, 30.0},
})

// BestSeed records the winning base seed of the outer search.
var BestSeed = factory.NewGauge(prometheus.GaugeOpts{
	Namespace: "search",
	Name:      "best_seed",
	Help:      "Winning base seed selected by the outer search",
})

// ParserErrorsTotal tracks parse errors by error type.
var ParserErrorsTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "parser",
	Name:      "errors_total",
	Help:      "Total parse errors by error type",
}, []string{"error_type"})

// ParserRecordsTotal tracks total records successfully parsed.
var ParserRecordsTotal = factory.NewCounter(prometheus.CounterOpts{
	Namespace: "parser",
	Name:      "records_total",
	Help:      "Total input records successfully parsed",
})

// =============================================================================
// Helper Functions
// =============================================================================

// ResetGauges resets all scheduler gauges before a new run.
func ResetGauges() {
	RequestsTotal.Set(0)
	FulfilledTotal.Set(0)
	UnfulfilledTotal.Set(0)
	SuppliersAffected.Set(0)
	RotationWarningsTotal.Set(0)
	UnfulfilledByTier.Reset()
}
