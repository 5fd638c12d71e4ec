package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP request metrics for API server
var (
	// HTTPRequestDuration tracks the duration of HTTP requests
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests by method, path, and status",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestsTotal counts the total number of HTTP requests
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests by method, path, and status",
		},
		[]string{"method", "path", "status"},
	)

	// RateLimited counts requests rejected by the rate limiter
	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "planner_rate_limited_total",
			Help: "Total number of requests rejected by the per-client rate limiter",
		},
	)

	// AuthFailures counts rejected API keys by reason (missing, invalid, revoked)
	AuthFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planner_auth_failures_total",
			Help: "Total number of rejected API requests by reason",
		},
		[]string{"reason"},
	)
)

// Planner metrics
var (
	// Evaluations counts configurations evaluated per entry point
	Evaluations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planner_evaluations_total",
			Help: "Total number of configurations evaluated by source (plan, recommend, capacity, sweep, scenario)",
		},
		[]string{"source"},
	)

	// UnstableResults counts evaluations whose queue had no steady state
	UnstableResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planner_unstable_results_total",
			Help: "Total number of evaluations with arrival rate at or above capacity by source",
		},
		[]string{"source"},
	)

	// OptimizationDuration tracks wall time of a full grid search
	OptimizationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "planner_optimization_duration_seconds",
			Help: "Duration of optimizer grid searches",
			// 1ms to ~4s
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
	)

	// OptimizationCandidates counts grid points evaluated by the optimizer
	OptimizationCandidates = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "planner_optimization_candidates_total",
			Help: "Total number of grid candidates evaluated by the optimizer",
		},
	)

	// OptimizationFeasible tracks how many candidates met the targets per search
	OptimizationFeasible = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "planner_optimization_feasible_candidates",
			Help:    "Number of feasible candidates per optimizer search",
			Buckets: []float64{0, 1, 10, 50, 100, 250, 500, 768},
		},
	)

	// OptimizationsTotal counts searches by outcome (found, none)
	OptimizationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planner_optimizations_total",
			Help: "Total number of optimizer searches by outcome",
		},
		[]string{"outcome"},
	)
)

// RecordHTTPRequest records the duration and increments the counter for an HTTP request
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordEvaluation counts one evaluation and whether it was unstable
func RecordEvaluation(source string, stable bool) {
	Evaluations.WithLabelValues(source).Inc()
	if !stable {
		UnstableResults.WithLabelValues(source).Inc()
	}
}

// RecordOptimization records one completed optimizer search
func RecordOptimization(duration time.Duration, evaluated, feasible int, found bool) {
	OptimizationDuration.Observe(duration.Seconds())
	OptimizationCandidates.Add(float64(evaluated))
	OptimizationFeasible.Observe(float64(feasible))

	outcome := "none"
	if found {
		outcome = "found"
	}
	OptimizationsTotal.WithLabelValues(outcome).Inc()
}

// RecordRateLimited increments the rate limit rejection counter
func RecordRateLimited() {
	RateLimited.Inc()
}

// RecordAuthFailure increments the auth failure counter
func RecordAuthFailure(reason string) {
	AuthFailures.WithLabelValues(reason).Inc()
}

// CacheStats reports cumulative cache counters
type CacheStats interface {
	CacheHits() uint64
	CacheMisses() uint64
	CacheLen() int
}

// RegisterCacheStats exposes a result cache's counters on reg. Registering
// twice on the same registry returns prometheus.AlreadyRegisteredError.
func RegisterCacheStats(reg prometheus.Registerer, stats CacheStats) error {
	collectors := []prometheus.Collector{
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "planner_memo_hits_total",
			Help: "Total number of evaluations served from the result cache",
		}, func() float64 { return float64(stats.CacheHits()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "planner_memo_misses_total",
			Help: "Total number of evaluations computed and stored in the result cache",
		}, func() float64 { return float64(stats.CacheMisses()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "planner_memo_entries",
			Help: "Number of results currently held in the result cache",
		}, func() float64 { return float64(stats.CacheLen()) }),
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
