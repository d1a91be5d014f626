package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GenerationsTotal tracks generation requests by outcome
	GenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atelier_generations_total",
			Help: "Total number of generation requests",
		},
		[]string{"result"},
	)

	// GenerationDuration tracks end-to-end generation latency
	GenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "atelier_generation_duration_seconds",
			Help:    "End-to-end generation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// CacheLookupsTotal tracks prompt cache lookups by outcome (hit, miss, error)
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atelier_cache_lookups_total",
			Help: "Total number of prompt cache lookups",
		},
		[]string{"outcome"},
	)

	// CacheEntriesDeleted tracks cleanup deletions by mode (age, least_used)
	CacheEntriesDeleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atelier_cache_entries_deleted_total",
			Help: "Total number of cache entries removed by cleanup",
		},
		[]string{"mode"},
	)

	// ProviderCallsTotal tracks provider invocations
	ProviderCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atelier_provider_calls_total",
			Help: "Total number of provider generate calls",
		},
		[]string{"provider"},
	)

	// ProviderErrorsTotal tracks provider failures by error type
	ProviderErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atelier_provider_errors_total",
			Help: "Total number of provider errors",
		},
		[]string{"provider", "error_type"},
	)

	// ProviderLatency tracks provider call latency
	ProviderLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "atelier_provider_latency_seconds",
			Help:    "Provider call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	// BreakerState tracks circuit breaker state per provider (0=closed, 1=open, 2=half-open)
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "atelier_breaker_state",
			Help: "Circuit breaker state per provider (0=closed, 1=open, 2=half-open)",
		},
		[]string{"provider"},
	)

	// FailoverRotationsTotal tracks how often a request moved past a provider
	FailoverRotationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atelier_failover_rotations_total",
			Help: "Total number of failover rotations away from a provider",
		},
		[]string{"provider"},
	)
)
