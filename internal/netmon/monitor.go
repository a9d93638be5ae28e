// Package netmon watches the link to the remote API. It probes on a fixed
// cadence, classifies throughput into quality classes, and fans out every
// Online/Offline or quality transition to subscribed callbacks. Rural
// deployments swing between 2G-grade and broadband-grade links many times a
// day, so classification (not just reachability) is part of the contract.
package netmon

import (
	"context"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mandimitra/go-sync-core/internal/config"
	"github.com/mandimitra/go-sync-core/internal/domain"
	"github.com/mandimitra/go-sync-core/internal/metrics"
	"github.com/mandimitra/go-sync-core/internal/utils"
)

// HeaderLinkSpeedHint lets the server (or an intermediary that knows the
// subscriber's radio bearer) report downlink speed directly, skipping the
// timed-download estimate.
const HeaderLinkSpeedHint = "X-Link-Speed-Kbps"

// minSampleBytes is the smallest probe body worth timing. Below this the
// measurement is dominated by latency, not bandwidth.
const minSampleBytes = 4 << 10

// Callback receives the new state on every transition, synchronously on the
// monitor's goroutine. Callbacks must be quick and must not call back into
// the monitor.
type Callback func(domain.ConnectivityState)

// Monitor probes the remote API's probe endpoint and publishes transitions.
type Monitor struct {
	cfg      config.NetConfig
	probeURL string
	http     *http.Client
	met      *metrics.Metrics
	log      zerolog.Logger

	mu     sync.Mutex
	state  domain.ConnectivityState
	subs   map[int]Callback
	nextID int
}

// New builds a monitor against the remote base URL. The link starts out
// classified Offline until the first probe says otherwise.
func New(baseURL string, cfg config.NetConfig, met *metrics.Metrics, log zerolog.Logger) *Monitor {
	return &Monitor{
		cfg:      cfg,
		probeURL: strings.TrimRight(baseURL, "/") + "/v1/probe",
		http:     &http.Client{},
		met:      met,
		log:      log.With().Str("component", "netmon").Logger(),
		state:    domain.ConnectivityState{Status: domain.StatusOffline, Quality: domain.QualityOffline},
		subs:     make(map[int]Callback),
	}
}

// Subscribe registers a transition callback and returns its unsubscribe
// function. Unsubscribing twice is harmless.
func (m *Monitor) Subscribe(cb Callback) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.subs[id] = cb
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

// State returns the most recent classification.
func (m *Monitor) State() domain.ConnectivityState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Run probes once immediately, then on every tick until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	m.CheckNow(ctx)
	ticker := time.NewTicker(m.cfg.ProbeInterval)
	defer ticker.Stop()

	m.log.Info().Dur("probe_interval", m.cfg.ProbeInterval).Msg("network monitor started")
	for {
		select {
		case <-ctx.Done():
			m.log.Info().Msg("network monitor stopped")
			return ctx.Err()
		case <-ticker.C:
			m.CheckNow(ctx)
		}
	}
}

// CheckNow measures immediately, outside the regular cadence. Intended for
// app-foreground events and startup. The call is bounded by the probe
// timeout and never fails: an unreachable endpoint classifies as Offline.
func (m *Monitor) CheckNow(ctx context.Context) domain.ConnectivityState {
	s := m.measure(ctx)
	m.publish(s)
	return s
}

func (m *Monitor) measure(ctx context.Context) domain.ConnectivityState {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	defer cancel()

	measuredAt := time.Now()
	offline := domain.ConnectivityState{
		Status:     domain.StatusOffline,
		Quality:    domain.QualityOffline,
		MeasuredAt: measuredAt,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.probeURL, nil)
	if err != nil {
		m.met.Probes.WithLabelValues(metrics.ProbeError).Inc()
		return offline
	}
	start := time.Now()
	resp, err := m.http.Do(req)
	if err != nil {
		m.met.Probes.WithLabelValues(metrics.ProbeError).Inc()
		m.log.Debug().Err(err).Msg("probe failed")
		return offline
	}
	rtt := time.Since(start)
	defer resp.Body.Close()

	// Prefer the reported hint; otherwise time the probe payload. A body too
	// small to time meaningfully falls back to a conservative low estimate
	// instead of failing the measurement.
	kbps := float64(utils.AtoiDefault(resp.Header.Get(HeaderLinkSpeedHint), 0))
	if kbps <= 0 {
		n, rerr := io.Copy(io.Discard, resp.Body)
		elapsed := time.Since(start)
		if rerr == nil && n >= minSampleBytes && elapsed > 0 {
			kbps = float64(n) * 8 / 1000 / elapsed.Seconds()
		} else {
			kbps = m.cfg.SlowKbps
		}
	}

	m.met.Probes.WithLabelValues(metrics.ProbeOK).Inc()
	return domain.ConnectivityState{
		Status:         domain.StatusOnline,
		Quality:        classify(m.cfg, kbps),
		ThroughputKbps: kbps,
		RTT:            rtt,
		MeasuredAt:     measuredAt,
	}
}

// publish stores the new state and, when status or quality changed, invokes
// every subscriber synchronously in subscription order, outside the lock.
func (m *Monitor) publish(s domain.ConnectivityState) {
	m.mu.Lock()
	prev := m.state
	m.state = s
	changed := prev.Status != s.Status || prev.Quality != s.Quality
	var cbs []Callback
	if changed {
		ids := make([]int, 0, len(m.subs))
		for id := range m.subs {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		cbs = make([]Callback, 0, len(ids))
		for _, id := range ids {
			cbs = append(cbs, m.subs[id])
		}
	}
	m.mu.Unlock()

	if s.Online() {
		m.met.Online.Set(1)
	} else {
		m.met.Online.Set(0)
	}
	m.met.ThroughputKbps.Set(s.ThroughputKbps)

	if !changed {
		return
	}
	m.met.Transitions.WithLabelValues(string(s.Quality)).Inc()
	m.log.Info().
		Str("status", string(s.Status)).
		Str("quality", string(s.Quality)).
		Float64("kbps", s.ThroughputKbps).
		Dur("rtt", s.RTT).
		Msg("connectivity changed")
	for _, cb := range cbs {
		cb(s)
	}
}

// classify buckets measured throughput against the configured thresholds.
func classify(cfg config.NetConfig, kbps float64) domain.QualityClass {
	switch {
	case kbps >= cfg.FastKbps:
		return domain.QualityFast
	case kbps >= cfg.ModerateKbps:
		return domain.QualityModerate
	case kbps >= cfg.SlowKbps:
		return domain.QualitySlow
	default:
		return domain.QualityVerySlow
	}
}
