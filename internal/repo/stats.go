// Aggregate/statistics queries over both collections, used by the status
// surface, the diagnostics export, and the metrics refresh. Each function is
// context-aware and safe to call from services or the CLI.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/mandimitra/go-sync-core/internal/domain"
)

// QueueStats is a point-in-time summary of the sync_queue collection.
type QueueStats struct {
	Total           int64                       `json:"total"`
	PerState        map[domain.QueueState]int64 `json:"per_state"`
	OldestPendingAt *time.Time                  `json:"oldest_pending_at,omitempty"`
}

// CollectQueueStats returns entry counts grouped by state plus the creation
// time of the oldest pending entry (nil when the queue has no pending work).
func CollectQueueStats(ctx context.Context, db *gorm.DB) (QueueStats, error) {
	stats := QueueStats{PerState: make(map[domain.QueueState]int64)}

	var rows []struct {
		State domain.QueueState
		N     int64
	}
	err := db.WithContext(ctx).
		Model(&domain.QueueEntry{}).
		Select("state, COUNT(*) AS n").
		Group("state").
		Scan(&rows).Error
	if err != nil {
		return QueueStats{}, wrapStorage(err)
	}
	for _, r := range rows {
		stats.PerState[r.State] = r.N
		stats.Total += r.N
	}

	if stats.PerState[domain.StatePending] > 0 {
		// Get earliest created_at (avoid MIN() -> TEXT in SQLite)
		var row struct {
			CreatedAt time.Time
		}
		err := db.WithContext(ctx).
			Model(&domain.QueueEntry{}).
			Select("created_at").
			Where("state = ?", domain.StatePending).
			Order("created_at ASC").
			Limit(1).
			Scan(&row).Error
		if err != nil {
			return QueueStats{}, wrapStorage(err)
		}
		stats.OldestPendingAt = &row.CreatedAt
	}
	return stats, nil
}

// CacheStats is a point-in-time summary of the cache_store collection.
type CacheStats struct {
	Total       int64                     `json:"total"`
	PerCategory map[domain.Category]int64 `json:"per_category"`
}

// CollectCacheStats returns entry counts grouped by category.
func CollectCacheStats(ctx context.Context, db *gorm.DB) (CacheStats, error) {
	stats := CacheStats{PerCategory: make(map[domain.Category]int64)}

	var rows []struct {
		Category domain.Category
		N        int64
	}
	err := db.WithContext(ctx).
		Model(&domain.CacheEntry{}).
		Select("category, COUNT(*) AS n").
		Group("category").
		Scan(&rows).Error
	if err != nil {
		return CacheStats{}, wrapStorage(err)
	}
	for _, r := range rows {
		stats.PerCategory[r.Category] = r.N
		stats.Total += r.N
	}
	return stats, nil
}
