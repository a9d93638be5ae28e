package repo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mandimitra/go-sync-core/internal/domain"
)

func newCacheRepoDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("cache_repo_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if err := db.AutoMigrate(&domain.CacheEntry{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedCache(t *testing.T, db *gorm.DB, cat domain.Category, key string, access time.Time) {
	t.Helper()
	e := &domain.CacheEntry{
		Category: cat, Key: key, Value: []byte("v:" + key),
		StoredAt: access, MaxAgeSeconds: 3600, LastAccessAt: access,
	}
	if err := UpsertCacheEntry(context.Background(), db, e); err != nil {
		t.Fatalf("seed %s/%s: %v", cat, key, err)
	}
}

func TestUpsertCacheEntry_InsertThenReplace(t *testing.T) {
	db := newCacheRepoDB(t)
	ctx := context.Background()

	t0 := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	seedCache(t, db, domain.CategoryPriceData, "tomato:maharashtra", t0)

	// Refresh with new value and timestamps.
	t1 := t0.Add(time.Hour)
	e := &domain.CacheEntry{
		Category: domain.CategoryPriceData, Key: "tomato:maharashtra",
		Value: []byte("fresh"), StoredAt: t1, MaxAgeSeconds: 7200, LastAccessAt: t1,
	}
	if err := UpsertCacheEntry(ctx, db, e); err != nil {
		t.Fatalf("upsert refresh: %v", err)
	}

	got, err := GetCacheEntry(ctx, db, domain.CategoryPriceData, "tomato:maharashtra")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got.Value) != "fresh" || got.MaxAgeSeconds != 7200 {
		t.Fatalf("refresh not applied: %+v", got)
	}
	var cnt int64
	if err := db.Model(&domain.CacheEntry{}).Count(&cnt).Error; err != nil || cnt != 1 {
		t.Fatalf("expected single row after upsert, cnt=%d err=%v", cnt, err)
	}
}

func TestGetCacheEntry_NotFound(t *testing.T) {
	db := newCacheRepoDB(t)
	if _, err := GetCacheEntry(context.Background(), db, domain.CategoryPriceData, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTouchCacheEntry_MovesRecency(t *testing.T) {
	db := newCacheRepoDB(t)
	ctx := context.Background()

	t0 := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	seedCache(t, db, domain.CategoryPriceData, "a", t0)

	t1 := t0.Add(30 * time.Minute)
	if err := TouchCacheEntry(ctx, db, domain.CategoryPriceData, "a", t1); err != nil {
		t.Fatalf("touch: %v", err)
	}
	got, err := GetCacheEntry(ctx, db, domain.CategoryPriceData, "a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.LastAccessAt.Equal(t1) {
		t.Fatalf("LastAccessAt = %v; want %v", got.LastAccessAt, t1)
	}
	if !got.StoredAt.Equal(t0) {
		t.Fatalf("touch must not move StoredAt: %v", got.StoredAt)
	}
}

func TestDeleteCacheEntry_Idempotent(t *testing.T) {
	db := newCacheRepoDB(t)
	ctx := context.Background()

	seedCache(t, db, domain.CategoryPriceData, "a", time.Now().UTC())
	if err := DeleteCacheEntry(ctx, db, domain.CategoryPriceData, "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	// Deleting a missing row is not an error.
	if err := DeleteCacheEntry(ctx, db, domain.CategoryPriceData, "a"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}

func TestDeleteCacheCategory_ScopedToCategory(t *testing.T) {
	db := newCacheRepoDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	seedCache(t, db, domain.CategoryPriceData, "a", now)
	seedCache(t, db, domain.CategoryPriceData, "b", now)
	seedCache(t, db, domain.CategoryAudioAsset, "a", now)

	n, err := DeleteCacheCategory(ctx, db, domain.CategoryPriceData)
	if err != nil {
		t.Fatalf("delete category: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 deleted, got %d", n)
	}
	left, err := CountCacheCategory(ctx, db, domain.CategoryAudioAsset)
	if err != nil || left != 1 {
		t.Fatalf("other category affected: left=%d err=%v", left, err)
	}
}

func TestOldestAccessed_ReturnsLRUVictim(t *testing.T) {
	db := newCacheRepoDB(t)
	ctx := context.Background()

	base := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	seedCache(t, db, domain.CategoryPriceData, "a", base.Add(2*time.Minute))
	seedCache(t, db, domain.CategoryPriceData, "b", base.Add(1*time.Minute))
	seedCache(t, db, domain.CategoryPriceData, "c", base.Add(3*time.Minute))
	// Another category must not influence the victim choice.
	seedCache(t, db, domain.CategoryAudioAsset, "z", base)

	victim, err := OldestAccessed(ctx, db, domain.CategoryPriceData)
	if err != nil {
		t.Fatalf("OldestAccessed: %v", err)
	}
	if victim.Key != "b" {
		t.Fatalf("expected LRU victim b, got %s", victim.Key)
	}
}

func TestListCacheKeysAndEntries(t *testing.T) {
	db := newCacheRepoDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	seedCache(t, db, domain.CategoryPriceData, "b", now)
	seedCache(t, db, domain.CategoryPriceData, "a", now)
	seedCache(t, db, domain.CategoryAudioAsset, "x", now)

	keys, err := ListCacheKeys(ctx, db, domain.CategoryPriceData)
	if err != nil {
		t.Fatalf("list keys: %v", err)
	}
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Fatalf("unexpected keys: %v", keys)
	}

	all, err := ListCacheEntries(ctx, db)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(all))
	}

	scoped, err := ListCacheEntries(ctx, db, domain.CategoryAudioAsset)
	if err != nil {
		t.Fatalf("list scoped: %v", err)
	}
	if len(scoped) != 1 || scoped[0].Key != "x" {
		t.Fatalf("unexpected scoped listing: %+v", scoped)
	}
}
