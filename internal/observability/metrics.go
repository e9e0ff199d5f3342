package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courier_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "courier_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// TransitionsTotal counts transition attempts by operation and outcome
	// (applied, noop, rejected, failed).
	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courier_transitions_total",
		Help: "Shipment/messenger transitions by operation and outcome",
	}, []string{"operation", "outcome"})

	// SyncSweepsTotal counts reconciliation sweeps by kind (in_transit, returning).
	SyncSweepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courier_sync_sweeps_total",
		Help: "Lazy reconciliation sweeps run on read",
	}, []string{"kind"})

	// SyncAdvancedTotal counts shipments a sweep moved forward.
	SyncAdvancedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courier_sync_advanced_total",
		Help: "Shipments advanced by reconciliation sweeps",
	}, []string{"kind"})

	// SyncFailuresTotal counts per-shipment failures that were skipped until the next read.
	SyncFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courier_sync_failures_total",
		Help: "Per-shipment reconciliation failures",
	}, []string{"kind"})

	// CharacterCacheResults counts projection cache lookups by result. stale counts
	// fetches whose write was dropped because an invalidation landed first.
	CharacterCacheResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "courier_character_cache_results_total",
		Help: "Messenger projection cache lookups",
	}, []string{"result"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}

// RecordTransition increments the transition counter.
func RecordTransition(operation, outcome string) {
	TransitionsTotal.WithLabelValues(operation, outcome).Inc()
}
