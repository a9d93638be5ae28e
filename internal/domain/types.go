package domain

import (
	"fmt"
	"time"
)

// OperationType tags a queued mutation with the remote endpoint semantics it
// carries. The set is open-ended; these are the operations the trading flows
// produce today.
type OperationType string

const (
	OpRecordMessage     OperationType = "record_message"
	OpRecordTransaction OperationType = "record_transaction"
	OpUpdatePreference  OperationType = "update_preference"
)

// QueueState is the lifecycle state of a QueueEntry.
type QueueState string

const (
	StatePending  QueueState = "pending"
	StateInFlight QueueState = "in_flight"
	StateFailed   QueueState = "failed"
	StateSynced   QueueState = "synced"
)

// Valid reports whether s is one of the known queue states.
func (s QueueState) Valid() bool {
	switch s {
	case StatePending, StateInFlight, StateFailed, StateSynced:
		return true
	}
	return false
}

// ParseQueueState converts a string (CLI flag, config value) into a QueueState.
func ParseQueueState(s string) (QueueState, error) {
	st := QueueState(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown queue state %q", s)
	}
	return st, nil
}

// Category names a cache class with its own TTL and capacity policy.
type Category string

const (
	CategoryPriceData            Category = "price_data"
	CategoryTransactionHistory   Category = "transaction_history"
	CategoryUserPreferences      Category = "user_preferences"
	CategoryNegotiationTemplates Category = "negotiation_templates"
	CategoryAudioAsset           Category = "audio_asset"
	CategoryGenericAPI           Category = "generic_api"
)

// Categories returns all known cache categories in a stable order, used by
// whole-store sweeps and diagnostics.
func Categories() []Category {
	return []Category{
		CategoryPriceData,
		CategoryTransactionHistory,
		CategoryUserPreferences,
		CategoryNegotiationTemplates,
		CategoryAudioAsset,
		CategoryGenericAPI,
	}
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryPriceData, CategoryTransactionHistory, CategoryUserPreferences,
		CategoryNegotiationTemplates, CategoryAudioAsset, CategoryGenericAPI:
		return true
	}
	return false
}

// ParseCategory converts a string (CLI flag, policy file key) into a Category.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown cache category %q", s)
	}
	return c, nil
}

// MissReason distinguishes the two cache-miss outcomes: a key that was never
// cached versus one that was cached but is past its TTL. Callers branch on it
// to decide between showing nothing and showing stale data with a warning.
type MissReason string

const (
	MissNotPresent MissReason = "not_present"
	MissExpired    MissReason = "expired"
)

// ConnectivityStatus is the coarse online/offline flag.
type ConnectivityStatus string

const (
	StatusOnline  ConnectivityStatus = "online"
	StatusOffline ConnectivityStatus = "offline"
)

// QualityClass buckets measured throughput against fixed kbps thresholds.
type QualityClass string

const (
	QualityFast     QualityClass = "fast"
	QualityModerate QualityClass = "moderate"
	QualitySlow     QualityClass = "slow"
	QualityVerySlow QualityClass = "very_slow"
	QualityOffline  QualityClass = "offline"
)

// ConnectivityState is the snapshot the network monitor publishes to its
// subscribers on every transition. It is transient and never persisted.
type ConnectivityState struct {
	Status         ConnectivityStatus `json:"status"`
	Quality        QualityClass       `json:"quality"`
	ThroughputKbps float64            `json:"throughput_kbps"`
	RTT            time.Duration      `json:"rtt"`
	MeasuredAt     time.Time          `json:"measured_at"`
}

// Online reports whether the snapshot represents a usable link.
func (s ConnectivityState) Online() bool { return s.Status == StatusOnline }
