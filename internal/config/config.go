// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes settings for the
// durable store, sync retry policy, network probing, cache policies, logging,
// and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// SyncConfig defines the reconciler's retry and pacing policy.
type SyncConfig struct {
	MaxAttempts   int           // SYNC_MAX_ATTEMPTS: delivery attempts before an entry freezes as failed
	BaseDelay     time.Duration // SYNC_BASE_DELAY: backoff seed
	MaxDelay      time.Duration // SYNC_MAX_DELAY: backoff cap
	SubmitTimeout time.Duration // SYNC_SUBMIT_TIMEOUT: per-submission bound
	TimerInterval time.Duration // SYNC_TIMER_INTERVAL: periodic drain trigger while online
}

// NetConfig defines the network monitor's probe cadence and the kbps
// thresholds that bucket measured throughput into quality classes.
type NetConfig struct {
	ProbeInterval time.Duration // NET_PROBE_INTERVAL
	ProbeTimeout  time.Duration // NET_PROBE_TIMEOUT
	FastKbps      float64       // NET_FAST_KBPS: >= is Fast
	ModerateKbps  float64       // NET_MODERATE_KBPS: >= is Moderate
	SlowKbps      float64       // NET_SLOW_KBPS: >= is Slow, below is VerySlow
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "mandi-sync-core")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// Config holds all configuration values for the application.
type Config struct {
	// Logging
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool   // pretty console logs in dev

	// Storage
	DBPath string // SQLite path for the durable store

	// Remote API
	RemoteBaseURL string // REMOTE_BASE_URL

	// Sync / network
	Sync SyncConfig
	Net  NetConfig

	// Cache
	PolicyFile    string        // CACHE_POLICY_FILE: optional YAML per-category overrides
	PurgeInterval time.Duration // CACHE_PURGE_INTERVAL
	FetchTimeout  time.Duration // CACHE_FETCH_TIMEOUT: per-call bound on fetch-through reads
	Policies      PolicySet     // resolved per-category TTL/capacity

	// Notifications
	NotifyLocale string // NOTIFY_LOCALE: preferred BCP-47 tag for user-facing text

	// Metrics
	MetricsAddr string // METRICS_ADDR: if set, serve Prometheus on this addr

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
// When CACHE_POLICY_FILE is set, the file's per-category overrides are
// merged over the built-in policy defaults.
func Load() (Config, error) {
	cfg := Config{
		// Logging
		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		// Storage
		DBPath: getenv("DB_PATH", "mandi-sync.db"),

		// Remote API
		RemoteBaseURL: getenv("REMOTE_BASE_URL", "http://localhost:8080"),

		// Sync
		Sync: SyncConfig{
			MaxAttempts:   getint("SYNC_MAX_ATTEMPTS", 5),
			BaseDelay:     getdur("SYNC_BASE_DELAY", 1*time.Second),
			MaxDelay:      getdur("SYNC_MAX_DELAY", 60*time.Second),
			SubmitTimeout: getdur("SYNC_SUBMIT_TIMEOUT", 10*time.Second),
			TimerInterval: getdur("SYNC_TIMER_INTERVAL", 2*time.Minute),
		},

		// Network probing
		Net: NetConfig{
			ProbeInterval: getdur("NET_PROBE_INTERVAL", 30*time.Second),
			ProbeTimeout:  getdur("NET_PROBE_TIMEOUT", 5*time.Second),
			FastKbps:      getfloat("NET_FAST_KBPS", 1000),
			ModerateKbps:  getfloat("NET_MODERATE_KBPS", 500),
			SlowKbps:      getfloat("NET_SLOW_KBPS", 100),
		},

		// Cache
		PolicyFile:    getenv("CACHE_POLICY_FILE", ""),
		PurgeInterval: getdur("CACHE_PURGE_INTERVAL", 10*time.Minute),
		FetchTimeout:  getdur("CACHE_FETCH_TIMEOUT", 5*time.Second),
		Policies:      DefaultPolicies(),

		// Notifications
		NotifyLocale: getenv("NOTIFY_LOCALE", "en"),

		// Metrics
		MetricsAddr: getenv("METRICS_ADDR", ""),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "mandi-sync-core"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}

	// --- policy file overlay ---
	if cfg.PolicyFile != "" {
		overlaid, err := LoadPolicyFile(cfg.PolicyFile, cfg.Policies)
		if err != nil {
			return cfg, err
		}
		cfg.Policies = overlaid
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if strings.TrimSpace(cfg.RemoteBaseURL) == "" {
		return cfg, errors.New("REMOTE_BASE_URL must not be empty")
	}
	if cfg.Sync.MaxAttempts < 1 {
		return cfg, errors.New("SYNC_MAX_ATTEMPTS must be >= 1")
	}
	if cfg.Sync.BaseDelay <= 0 || cfg.Sync.MaxDelay <= 0 {
		return cfg, errors.New("SYNC_BASE_DELAY and SYNC_MAX_DELAY must be positive durations")
	}
	if cfg.Sync.MaxDelay < cfg.Sync.BaseDelay {
		return cfg, errors.New("SYNC_MAX_DELAY must be >= SYNC_BASE_DELAY")
	}
	if cfg.Sync.SubmitTimeout <= 0 || cfg.Sync.TimerInterval <= 0 {
		return cfg, errors.New("sync timeouts must be positive durations")
	}
	if cfg.Net.ProbeInterval <= 0 || cfg.Net.ProbeTimeout <= 0 {
		return cfg, errors.New("probe interval and timeout must be positive durations")
	}
	if !(cfg.Net.FastKbps > cfg.Net.ModerateKbps && cfg.Net.ModerateKbps > cfg.Net.SlowKbps && cfg.Net.SlowKbps > 0) {
		return cfg, errors.New("speed thresholds must satisfy fast > moderate > slow > 0")
	}
	if cfg.PurgeInterval <= 0 {
		return cfg, errors.New("CACHE_PURGE_INTERVAL must be > 0")
	}
	if cfg.FetchTimeout <= 0 {
		return cfg, errors.New("CACHE_FETCH_TIMEOUT must be > 0")
	}
	if strings.TrimSpace(cfg.NotifyLocale) == "" {
		return cfg, errors.New("NOTIFY_LOCALE must not be empty")
	}
	if err := cfg.Policies.Validate(); err != nil {
		return cfg, err
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
