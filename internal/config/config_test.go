package config

import (
	"strings"
	"testing"
	"time"

	"github.com/mandimitra/go-sync-core/internal/domain"
)

// --- MustLoad ---

func TestMustLoad_PanicsOnInvalidConfig(t *testing.T) {
	t.Setenv("LOG_LEVEL", "verbose") // invalid -> Load() error
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("MustLoad should panic on invalid config")
		}
	}()
	_ = MustLoad()
}

// --- Load success + normalization + parsing ---

func TestLoad_Success_DefaultsAndOverrides(t *testing.T) {
	// Logging
	t.Setenv("LOG_LEVEL", "warning") // will normalize to "warn"
	t.Setenv("LOG_PRETTY", "yes")

	// Storage / remote
	t.Setenv("DB_PATH", "sync.sqlite")
	t.Setenv("REMOTE_BASE_URL", "https://api.mandi.example")

	// Sync
	t.Setenv("SYNC_MAX_ATTEMPTS", "3")
	t.Setenv("SYNC_BASE_DELAY", "2s")
	t.Setenv("SYNC_MAX_DELAY", "30s")
	t.Setenv("SYNC_SUBMIT_TIMEOUT", "5s")
	t.Setenv("SYNC_TIMER_INTERVAL", "1m")

	// Network (use an invalid value for parse fallback to default)
	t.Setenv("NET_PROBE_INTERVAL", "15s")
	t.Setenv("NET_PROBE_TIMEOUT", "2s")
	t.Setenv("NET_FAST_KBPS", "x") // -> default 1000

	// Cache / notify / metrics
	t.Setenv("CACHE_PURGE_INTERVAL", "5m")
	t.Setenv("CACHE_FETCH_TIMEOUT", "3s")
	t.Setenv("NOTIFY_LOCALE", "hi")
	t.Setenv("METRICS_ADDR", ":9091")

	// OTEL
	t.Setenv("OTEL_ENABLED", "1")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "otel:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "0")
	t.Setenv("OTEL_SERVICE_NAME", "svc")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.75")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	// Logging
	if cfg.LogLevel != "warn" || !cfg.LogPretty {
		t.Fatalf("logging unexpected: %+v", cfg)
	}

	// Storage / remote
	if cfg.DBPath != "sync.sqlite" || cfg.RemoteBaseURL != "https://api.mandi.example" {
		t.Fatalf("storage/remote fields unexpected: %+v", cfg)
	}

	// Sync
	if cfg.Sync.MaxAttempts != 3 ||
		cfg.Sync.BaseDelay != 2*time.Second ||
		cfg.Sync.MaxDelay != 30*time.Second ||
		cfg.Sync.SubmitTimeout != 5*time.Second ||
		cfg.Sync.TimerInterval != time.Minute {
		t.Fatalf("sync fields unexpected: %+v", cfg.Sync)
	}

	// Network (FastKbps fell back to default)
	if cfg.Net.ProbeInterval != 15*time.Second ||
		cfg.Net.ProbeTimeout != 2*time.Second ||
		cfg.Net.FastKbps != 1000 ||
		cfg.Net.ModerateKbps != 500 ||
		cfg.Net.SlowKbps != 100 {
		t.Fatalf("net fields unexpected: %+v", cfg.Net)
	}

	// Cache / notify / metrics
	if cfg.PurgeInterval != 5*time.Minute || cfg.FetchTimeout != 3*time.Second || cfg.NotifyLocale != "hi" || cfg.MetricsAddr != ":9091" {
		t.Fatalf("cache/notify/metrics unexpected: %+v", cfg)
	}

	// Built-in policies resolved with no policy file.
	if p := cfg.Policies[domain.CategoryPriceData]; p.MaxAge != 24*time.Hour || p.MaxEntries != 500 {
		t.Fatalf("price_data policy unexpected: %+v", p)
	}
	if p := cfg.Policies[domain.CategoryGenericAPI]; p.MaxAge != time.Hour || p.MaxEntries != 300 {
		t.Fatalf("generic_api policy unexpected: %+v", p)
	}

	// OTEL
	if !cfg.OTEL.Enabled || cfg.OTEL.Endpoint != "otel:4317" || cfg.OTEL.Insecure || cfg.OTEL.ServiceName != "svc" || cfg.OTEL.SampleRatio != 0.75 {
		t.Fatalf("otel unexpected: %+v", cfg.OTEL)
	}
}

// --- Load validations (each case triggers exactly one validation error) ---

func TestLoad_ValidationErrors(t *testing.T) {
	t.Run("invalid LOG_LEVEL", func(t *testing.T) {
		t.Setenv("LOG_LEVEL", "verbose")
		if _, err := Load(); err == nil {
			t.Fatalf("expected LOG_LEVEL validation error")
		}
	})
	t.Run("empty DB_PATH via spaces", func(t *testing.T) {
		t.Setenv("DB_PATH", "   ")
		if _, err := Load(); err == nil || !containsErr(err, "DB_PATH must not be empty") {
			t.Fatalf("expected DB_PATH validation error, got: %v", err)
		}
	})
	t.Run("empty REMOTE_BASE_URL via spaces", func(t *testing.T) {
		t.Setenv("REMOTE_BASE_URL", "   ")
		if _, err := Load(); err == nil || !containsErr(err, "REMOTE_BASE_URL") {
			t.Fatalf("expected REMOTE_BASE_URL validation error, got: %v", err)
		}
	})
	t.Run("max attempts < 1", func(t *testing.T) {
		t.Setenv("SYNC_MAX_ATTEMPTS", "0")
		if _, err := Load(); err == nil || !containsErr(err, "SYNC_MAX_ATTEMPTS") {
			t.Fatalf("expected SYNC_MAX_ATTEMPTS validation error, got: %v", err)
		}
	})
	t.Run("max delay below base delay", func(t *testing.T) {
		t.Setenv("SYNC_BASE_DELAY", "10s")
		t.Setenv("SYNC_MAX_DELAY", "5s")
		if _, err := Load(); err == nil || !containsErr(err, "SYNC_MAX_DELAY must be >= SYNC_BASE_DELAY") {
			t.Fatalf("expected delay ordering error, got: %v", err)
		}
	})
	t.Run("non-positive submit timeout", func(t *testing.T) {
		t.Setenv("SYNC_SUBMIT_TIMEOUT", "0s")
		if _, err := Load(); err == nil || !containsErr(err, "sync timeouts") {
			t.Fatalf("expected sync timeout validation error, got: %v", err)
		}
	})
	t.Run("non-positive probe interval", func(t *testing.T) {
		t.Setenv("NET_PROBE_INTERVAL", "0s")
		if _, err := Load(); err == nil || !containsErr(err, "probe interval") {
			t.Fatalf("expected probe validation error, got: %v", err)
		}
	})
	t.Run("unordered speed thresholds", func(t *testing.T) {
		t.Setenv("NET_MODERATE_KBPS", "2000") // above fast
		if _, err := Load(); err == nil || !containsErr(err, "fast > moderate > slow") {
			t.Fatalf("expected threshold ordering error, got: %v", err)
		}
	})
	t.Run("non-positive purge interval", func(t *testing.T) {
		t.Setenv("CACHE_PURGE_INTERVAL", "0s")
		if _, err := Load(); err == nil || !containsErr(err, "CACHE_PURGE_INTERVAL") {
			t.Fatalf("expected CACHE_PURGE_INTERVAL validation error, got: %v", err)
		}
	})
	t.Run("non-positive fetch timeout", func(t *testing.T) {
		t.Setenv("CACHE_FETCH_TIMEOUT", "0s")
		if _, err := Load(); err == nil || !containsErr(err, "CACHE_FETCH_TIMEOUT") {
			t.Fatalf("expected CACHE_FETCH_TIMEOUT validation error, got: %v", err)
		}
	})
	t.Run("empty NOTIFY_LOCALE via spaces", func(t *testing.T) {
		t.Setenv("NOTIFY_LOCALE", "   ")
		if _, err := Load(); err == nil || !containsErr(err, "NOTIFY_LOCALE") {
			t.Fatalf("expected NOTIFY_LOCALE validation error, got: %v", err)
		}
	})
	t.Run("otel sample ratio out of range", func(t *testing.T) {
		t.Setenv("OTEL_TRACES_SAMPLER_ARG", "1.5")
		if _, err := Load(); err == nil || !containsErr(err, "OTEL_TRACES_SAMPLER_ARG") {
			t.Fatalf("expected OTEL_TRACES_SAMPLER_ARG validation error, got: %v", err)
		}
	})
	t.Run("missing policy file", func(t *testing.T) {
		t.Setenv("CACHE_POLICY_FILE", "no-such-file.yaml")
		if _, err := Load(); err == nil || !containsErr(err, "read cache policy file") {
			t.Fatalf("expected policy file error, got: %v", err)
		}
	})
}

// --- helpers ---

func TestHelpers_TypedGetters(t *testing.T) {
	t.Setenv("X_EMPTY", "")
	if got := getenv("X_EMPTY", "def"); got != "def" {
		t.Fatalf("getenv empty: got %q", got)
	}
	t.Setenv("X_STR", "v")
	if got := getenv("X_STR", "def"); got != "v" {
		t.Fatalf("getenv set: got %q", got)
	}

	t.Setenv("X_INT", "42")
	if got := getint("X_INT", 7); got != 42 {
		t.Fatalf("getint: got %d", got)
	}
	t.Setenv("X_INT_BAD", "4x2")
	if got := getint("X_INT_BAD", 7); got != 7 {
		t.Fatalf("getint fallback: got %d", got)
	}

	t.Setenv("X_FLOAT", "2.5")
	if got := getfloat("X_FLOAT", 1.0); got != 2.5 {
		t.Fatalf("getfloat: got %v", got)
	}

	t.Setenv("X_BOOL_ON", "On")
	if !getbool("X_BOOL_ON", false) {
		t.Fatalf("getbool on: want true")
	}
	t.Setenv("X_BOOL_OFF", "no")
	if getbool("X_BOOL_OFF", true) {
		t.Fatalf("getbool no: want false")
	}
	t.Setenv("X_BOOL_JUNK", "maybe")
	if !getbool("X_BOOL_JUNK", true) {
		t.Fatalf("getbool junk: want default true")
	}

	t.Setenv("X_DUR", "90s")
	if got := getdur("X_DUR", time.Second); got != 90*time.Second {
		t.Fatalf("getdur: got %v", got)
	}
	t.Setenv("X_DUR_BAD", "soon")
	if got := getdur("X_DUR_BAD", time.Second); got != time.Second {
		t.Fatalf("getdur fallback: got %v", got)
	}
}

func containsErr(err error, substr string) bool {
	return err != nil && strings.Contains(err.Error(), substr)
}
