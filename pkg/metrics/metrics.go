// Package metrics provides Prometheus instrumentation for the harness.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GenerationDuration tracks wall-clock time of one engine's full
	// generation pass in seconds.
	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "harness_generation_duration_seconds",
			Help:    "Wall-clock duration of a full generation pass.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"role"}, // "baseline" or "test"
	)

	// ComparisonsTotal tracks equality comparisons by outcome.
	ComparisonsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harness_comparisons_total",
			Help: "Total baseline/test sequence comparisons by outcome.",
		},
		[]string{"outcome"}, // "match", "mismatch"
	)

	// SequenceMismatchesTotal counts individual prompt indices whose token
	// sequences diverged. This is the primary correctness signal.
	SequenceMismatchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "harness_sequence_mismatches_total",
			Help: "Total prompt indices with diverging token sequences.",
		},
	)

	// ObservedAcceptanceRate is the last acceptance rate read from the test
	// engine (-1 when the metric was unavailable).
	ObservedAcceptanceRate = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "harness_observed_draft_acceptance_rate",
			Help: "Last draft acceptance rate read from the test engine.",
		},
	)

	// BaselineCacheLookupsTotal tracks baseline-result cache lookups.
	BaselineCacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harness_baseline_cache_lookups_total",
			Help: "Baseline-result cache lookups by result.",
		},
		[]string{"result"}, // "hit", "miss"
	)
)

// RecordComparison records the outcome of one full batch comparison.
func RecordComparison(mismatches int) {
	if mismatches == 0 {
		ComparisonsTotal.WithLabelValues("match").Inc()
		return
	}
	ComparisonsTotal.WithLabelValues("mismatch").Inc()
	SequenceMismatchesTotal.Add(float64(mismatches))
}
