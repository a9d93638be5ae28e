// Package metrics exposes Prometheus instrumentation for the sync core with
// careful attention to label cardinality:
//
//   - operation: queue operation tag (record_message, record_transaction, …)
//   - category:  cache category name (fixed set of six)
//   - reason:    bounded enums (miss reason, failure kind, probe result)
//
// Collectors are created and registered per instance against an injected
// Registerer rather than the package-global default, so tests and embedders
// can run multiple cores in one process without collisions. All collectors
// are safe for concurrent use.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Failure kinds recorded by the reconciler.
const (
	FailureTransient = "transient"
	FailureRejected  = "rejected"
	FailureExhausted = "exhausted"
)

// Probe results recorded by the network monitor.
const (
	ProbeOK    = "ok"
	ProbeError = "error"
)

// Metrics bundles every collector of the sync core.
type Metrics struct {
	// Queue / reconciler
	Enqueued       *prometheus.CounterVec // by operation
	Synced         prometheus.Counter
	Failures       *prometheus.CounterVec // by kind
	QueueDepth     prometheus.Gauge
	SubmitSeconds  prometheus.Histogram
	BackoffSeconds prometheus.Histogram

	// Cache
	CacheHits      *prometheus.CounterVec // by category
	CacheMisses    *prometheus.CounterVec // by category, reason
	CacheEvictions *prometheus.CounterVec // by category
	CachePurged    prometheus.Counter

	// Network monitor
	Probes         *prometheus.CounterVec // by result
	ThroughputKbps prometheus.Gauge
	Online         prometheus.Gauge
	Transitions    *prometheus.CounterVec // by quality
}

// New builds the collector set and registers it with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Enqueued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sync_enqueued_total",
				Help: "Total mutations accepted into the offline queue.",
			},
			[]string{"operation"},
		),
		Synced: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sync_synced_total",
				Help: "Total queue entries acknowledged by the remote API and removed.",
			},
		),
		Failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sync_failures_total",
				Help: "Delivery failures by kind (transient, rejected, exhausted).",
			},
			[]string{"kind"},
		),
		QueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "sync_queue_depth",
				Help: "Entries currently held in the durable queue.",
			},
		),
		SubmitSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sync_submit_duration_seconds",
				Help:    "Duration of remote submit calls in seconds.",
				Buckets: prometheus.DefBuckets, // suitable for general HTTP latency
			},
		),
		BackoffSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name: "sync_backoff_seconds",
				Help: "Backoff delays applied between retries, in seconds.",
				// Matches the backoff range: base 1s doubling to the 60s cap.
				Buckets: []float64{1, 2, 4, 8, 16, 32, 64},
			},
		),

		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Cache reads served fresh, by category.",
			},
			[]string{"category"},
		),
		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Cache misses by category and reason (not_present, expired).",
			},
			[]string{"category", "reason"},
		),
		CacheEvictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_evictions_total",
				Help: "Least-recently-used evictions by category.",
			},
			[]string{"category"},
		),
		CachePurged: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_purged_entries_total",
				Help: "Entries removed by expiry sweeps.",
			},
		),

		Probes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "net_probes_total",
				Help: "Connectivity probes by result (ok, error).",
			},
			[]string{"result"},
		),
		ThroughputKbps: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "net_throughput_kbps",
				Help: "Last measured downlink throughput in kbps.",
			},
		),
		Online: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "net_online",
				Help: "1 when the link is classified online, 0 when offline.",
			},
		),
		Transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "net_transitions_total",
				Help: "Connectivity state transitions by new quality class.",
			},
			[]string{"quality"},
		),
	}

	reg.MustRegister(
		m.Enqueued, m.Synced, m.Failures, m.QueueDepth, m.SubmitSeconds, m.BackoffSeconds,
		m.CacheHits, m.CacheMisses, m.CacheEvictions, m.CachePurged,
		m.Probes, m.ThroughputKbps, m.Online, m.Transitions,
	)
	return m
}

// NewForTest returns a Metrics backed by a private registry, for tests that
// need a real instance without touching the default registry.
func NewForTest() *Metrics {
	return New(prometheus.NewRegistry())
}
