package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Comparison metrics
var (
	ComparisonsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dupfinder_comparisons_total",
			Help: "Total number of pairwise comparisons by outcome",
		},
		[]string{"algorithm", "outcome"}, // "duplicate", "distinct", "failed", "skipped"
	)

	ComparisonDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dupfinder_comparison_duration_seconds",
			Help:    "Duration of a single pairwise comparison in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"algorithm"},
	)

	DuplicatesFound = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dupfinder_duplicates_found_total",
			Help: "Total number of duplicate relations recorded",
		},
		[]string{"algorithm"},
	)
)

// Descriptor cache metrics
var (
	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dupfinder_descriptor_cache_requests_total",
			Help: "Descriptor cache lookups by result",
		},
		[]string{"cache", "result"}, // "hit", "miss", "uncached"
	)

	CacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dupfinder_descriptor_cache_entries",
			Help: "Number of descriptors currently cached",
		},
		[]string{"cache"},
	)
)

// Run metrics
var (
	ReferenceSweeps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dupfinder_reference_sweeps_total",
			Help: "Total number of completed reference file sweeps",
		},
		[]string{"algorithm"},
	)

	ReferenceSweepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dupfinder_reference_sweep_duration_seconds",
			Help:    "Duration of one reference file sweep in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		},
		[]string{"algorithm"},
	)

	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dupfinder_runs_total",
			Help: "Total number of analysis runs by result",
		},
		[]string{"algorithm", "result"}, // "completed", "cancelled"
	)
)

// ObserveComparison records one finished comparison
func ObserveComparison(algorithm, outcome string, elapsed time.Duration) {
	ComparisonsTotal.WithLabelValues(algorithm, outcome).Inc()
	if outcome != "skipped" {
		ComparisonDuration.WithLabelValues(algorithm).Observe(elapsed.Seconds())
	}
}

// Serve exposes /metrics on addr. It blocks like http.ListenAndServe.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return server.ListenAndServe()
}
