package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Resolution metrics
	ResolveRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resolver_requests_total",
			Help: "Total number of swap resolution requests",
		},
		[]string{"mode", "status"},
	)

	ResolveDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "resolver_phase_duration_seconds",
			Help:    "Duration of each resolution phase",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 15},
		},
		[]string{"phase"},
	)

	// Route finder metrics
	VerificationCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resolver_verification_calls_total",
			Help: "On-chain candidate verification calls by outcome",
		},
		[]string{"outcome"},
	)

	CandidatesEvaluated = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "resolver_candidates_evaluated",
		Help:    "Candidate paths evaluated per route-finder invocation",
		Buckets: []float64{1, 2, 4, 8, 16, 32},
	})

	// Liquidity oracle cache
	PairCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "resolver_pair_cache_hits_total",
		Help: "Liquidity oracle cache hits",
	})

	PairCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "resolver_pair_cache_misses_total",
		Help: "Liquidity oracle cache misses",
	})

	// Aggregator metrics
	SourceResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resolver_source_results_total",
			Help: "Per-source aggregation outcomes",
		},
		[]string{"source", "outcome"},
	)

	UpstreamTimeouts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resolver_upstream_timeouts_total",
			Help: "Upstream calls that exceeded their budget",
		},
		[]string{"dependency"},
	)

	// Bridge metrics
	BridgeQuotes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resolver_bridge_quotes_total",
			Help: "Bridge provider quote outcomes",
		},
		[]string{"provider", "outcome"},
	)

	// Slippage controller metrics
	SlippageAttempts = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "resolver_slippage_attempts",
		Help:    "Auto-slippage attempts consumed per request",
		Buckets: []float64{1, 2, 3},
	})

	SlippageApplied = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "resolver_slippage_applied_bps",
		Help:    "Final applied slippage tolerance in bps",
		Buckets: []float64{10, 50, 100, 300, 500, 1000, 2000, 3050},
	})

	// Simulation metrics
	SimulationRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resolver_simulation_runs_total",
			Help: "Simulation validator outcomes",
		},
		[]string{"outcome"},
	)

	SimulationRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "resolver_simulation_transient_retries_total",
		Help: "Transient-failure retries performed by the simulation validator",
	})

	// HTTP metrics
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resolver_http_requests_total",
			Help: "HTTP requests by method, path and status",
		},
		[]string{"method", "path", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "resolver_http_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)
