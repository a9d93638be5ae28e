package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNew_RegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Enqueued.WithLabelValues("record_message").Inc()
	m.Synced.Inc()
	m.Failures.WithLabelValues(FailureTransient).Inc()
	m.QueueDepth.Set(3)
	m.SubmitSeconds.Observe(0.2)
	m.BackoffSeconds.Observe(2)
	m.CacheHits.WithLabelValues("price_data").Inc()
	m.CacheMisses.WithLabelValues("price_data", "expired").Inc()
	m.CacheEvictions.WithLabelValues("price_data").Inc()
	m.CachePurged.Inc()
	m.Probes.WithLabelValues(ProbeOK).Inc()
	m.ThroughputKbps.Set(640)
	m.Online.Set(1)
	m.Transitions.WithLabelValues("fast").Inc()

	fams, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	got := make(map[string]bool, len(fams))
	for _, f := range fams {
		got[f.GetName()] = true
	}
	want := []string{
		"sync_enqueued_total", "sync_synced_total", "sync_failures_total",
		"sync_queue_depth", "sync_submit_duration_seconds", "sync_backoff_seconds",
		"cache_hits_total", "cache_misses_total", "cache_evictions_total",
		"cache_purged_entries_total",
		"net_probes_total", "net_throughput_kbps", "net_online", "net_transitions_total",
	}
	for _, name := range want {
		if !got[name] {
			t.Fatalf("metric %q not gathered", name)
		}
	}
}

func TestNew_SeparateRegistriesDoNotCollide(t *testing.T) {
	a := New(prometheus.NewRegistry())
	b := New(prometheus.NewRegistry())
	a.Synced.Inc()
	b.Synced.Inc()
}
