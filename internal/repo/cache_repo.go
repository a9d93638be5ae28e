// Repository functions for the cache_store collection. TTL decisions and
// eviction policy live in the cache package; this file only persists rows
// keyed by (category, key) and answers the recency queries eviction needs.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mandimitra/go-sync-core/internal/domain"
)

// UpsertCacheEntry inserts or replaces the row for (category, key). A refresh
// overwrites value, TTL snapshot, and both timestamps in one statement.
func UpsertCacheEntry(ctx context.Context, db *gorm.DB, e *domain.CacheEntry) error {
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "category"}, {Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "stored_at", "max_age_seconds", "last_access_at"}),
		}).
		Create(e).Error
	return wrapStorage(err)
}

// GetCacheEntry fetches the row for (category, key), or ErrNotFound.
func GetCacheEntry(ctx context.Context, db *gorm.DB, category domain.Category, key string) (*domain.CacheEntry, error) {
	var e domain.CacheEntry
	err := db.WithContext(ctx).
		Where("category = ? AND key = ?", category, key).
		First(&e).Error
	if err != nil {
		return nil, wrapStorage(err)
	}
	return &e, nil
}

// TouchCacheEntry moves the row's recency marker forward after a hit.
func TouchCacheEntry(ctx context.Context, db *gorm.DB, category domain.Category, key string, at time.Time) error {
	err := db.WithContext(ctx).
		Model(&domain.CacheEntry{}).
		Where("category = ? AND key = ?", category, key).
		Update("last_access_at", at).Error
	return wrapStorage(err)
}

// DeleteCacheEntry removes one row. Missing rows are not an error; invalidate
// is idempotent.
func DeleteCacheEntry(ctx context.Context, db *gorm.DB, category domain.Category, key string) error {
	err := db.WithContext(ctx).
		Delete(&domain.CacheEntry{}, "category = ? AND key = ?", category, key).Error
	return wrapStorage(err)
}

// DeleteCacheCategory removes every row in a category and returns the count.
func DeleteCacheCategory(ctx context.Context, db *gorm.DB, category domain.Category) (int64, error) {
	res := db.WithContext(ctx).Delete(&domain.CacheEntry{}, "category = ?", category)
	if res.Error != nil {
		return 0, wrapStorage(res.Error)
	}
	return res.RowsAffected, nil
}

// CountCacheCategory returns the number of rows in a category.
func CountCacheCategory(ctx context.Context, db *gorm.DB, category domain.Category) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.CacheEntry{}).
		Where("category = ?", category).
		Count(&total).Error
	if err != nil {
		return 0, wrapStorage(err)
	}
	return total, nil
}

// OldestAccessed returns the least-recently-used row of a category: the
// eviction victim when the category is at capacity.
func OldestAccessed(ctx context.Context, db *gorm.DB, category domain.Category) (*domain.CacheEntry, error) {
	var e domain.CacheEntry
	err := db.WithContext(ctx).
		Where("category = ?", category).
		Order("last_access_at asc").
		First(&e).Error
	if err != nil {
		return nil, wrapStorage(err)
	}
	return &e, nil
}

// ListCacheKeys returns the keys of a category without decoding full rows,
// so a sweep can visit entries one by one and isolate corrupt ones.
func ListCacheKeys(ctx context.Context, db *gorm.DB, category domain.Category) ([]string, error) {
	var keys []string
	err := db.WithContext(ctx).
		Model(&domain.CacheEntry{}).
		Where("category = ?", category).
		Order("key asc").
		Pluck("key", &keys).Error
	if err != nil {
		return nil, wrapStorage(err)
	}
	return keys, nil
}

// ListCacheEntries returns rows ordered by (category, key). With no
// categories given it returns the whole collection.
func ListCacheEntries(ctx context.Context, db *gorm.DB, categories ...domain.Category) ([]domain.CacheEntry, error) {
	q := db.WithContext(ctx).Order("category asc, key asc")
	if len(categories) > 0 {
		q = q.Where("category IN ?", categories)
	}
	var out []domain.CacheEntry
	if err := q.Find(&out).Error; err != nil {
		return nil, wrapStorage(err)
	}
	return out, nil
}
