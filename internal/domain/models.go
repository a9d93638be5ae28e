// Package domain defines the persistence models for the offline sync queue
// and the category cache, plus the value types (operation tags, queue states,
// cache categories, connectivity classes) shared across the repository and
// service layers. These types are mapped with GORM and form the core data
// layer of the sync subsystem.
package domain

import "time"

// QueueEntry represents a single pending mutation captured by the application
// layer, durably stored until the remote API acknowledges it. Entries are
// drained in id order; ids are time-ordered UUIDs (v7), so lexicographic
// order equals creation order.
//
// Fields:
//   - ID: time-ordered UUID primary key (char(36)); the FIFO total-order key.
//   - OperationType: enumerated mutation tag (record_message, record_transaction, ...).
//   - Payload: opaque serialized operation body; validated only by the remote API.
//   - IdempotencyKey: stable per-entry key sent with every delivery attempt so
//     the remote API can discard duplicate at-least-once deliveries.
//   - State: pending | in_flight | failed | synced (enforced by DB constraint).
//   - Attempts: count of delivery attempts so far; only ever increases.
//   - LastError: last failure reason; empty unless a delivery has failed.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
//
// There is no soft-deletion marker: a synced entry is removed permanently,
// no tombstones are retained.
type QueueEntry struct {
	ID             string        `json:"id"              gorm:"type:char(36);primaryKey"`
	OperationType  OperationType `json:"operation_type"  gorm:"type:varchar(32);not null;index:idx_queue_op"`
	Payload        []byte        `json:"payload"         gorm:"type:blob;not null"`
	IdempotencyKey string        `json:"idempotency_key" gorm:"type:char(36);not null;uniqueIndex:ux_queue_idem"`
	State          QueueState    `json:"state"           gorm:"type:varchar(16);not null;default:'pending';index:idx_queue_state;check:state IN ('pending','in_flight','failed','synced')"`
	Attempts       int           `json:"attempts"        gorm:"not null;default:0"`
	LastError      string        `json:"last_error,omitempty" gorm:"type:text;not null;default:''"`
	CreatedAt      time.Time     `json:"created_at"      gorm:"index:idx_queue_created"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// TableName returns the database table name for QueueEntry.
func (QueueEntry) TableName() string { return "sync_queue" }

// CacheEntry represents one cached server payload, keyed by (category, key).
// The TTL is snapshotted from the category policy at store time, so a later
// policy change does not retroactively re-age existing rows.
//
// Fields:
//   - Category / Key: composite primary key; Key is the logical lookup key
//     scoped to the category (e.g. commodity+region for price data).
//   - Value: opaque cached payload.
//   - StoredAt: wall-clock timestamp of the last refresh.
//   - MaxAgeSeconds: TTL snapshot; the entry is servable iff
//     0 <= now-StoredAt <= MaxAgeSeconds (negative age means the device clock
//     rolled back and the entry is treated as expired).
//   - LastAccessAt: recency marker updated on every hit; the (category,
//     last_access_at) index drives least-recently-used eviction on overflow.
type CacheEntry struct {
	Category      Category  `json:"category"        gorm:"type:varchar(32);primaryKey;index:idx_cache_lru,priority:1"`
	Key           string    `json:"key"             gorm:"type:varchar(255);primaryKey"`
	Value         []byte    `json:"value"           gorm:"type:blob;not null"`
	StoredAt      time.Time `json:"stored_at"       gorm:"not null"`
	MaxAgeSeconds int64     `json:"max_age_seconds" gorm:"not null"`
	LastAccessAt  time.Time `json:"last_access_at"  gorm:"not null;index:idx_cache_lru,priority:2"`
}

// TableName returns the database table name for CacheEntry.
func (CacheEntry) TableName() string { return "cache_store" }

// Expired reports whether the entry is past its TTL at the given instant.
// The servable interval is closed: at exactly MaxAgeSeconds of age the entry
// is still fresh. A negative age (clock rollback) fails closed as expired.
func (e CacheEntry) Expired(now time.Time) bool {
	age := now.Sub(e.StoredAt)
	if age < 0 {
		return true
	}
	return age > time.Duration(e.MaxAgeSeconds)*time.Second
}
