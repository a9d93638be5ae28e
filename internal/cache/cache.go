// Package cache provides typed access to locally persisted server payloads
// with per-category TTL and capacity enforcement. Reads never fail just
// because the device is offline: a miss is a regular outcome, and an expired
// entry still yields its stale bytes so callers can show old data with a
// warning instead of nothing.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/cases"
	"gorm.io/gorm"

	"github.com/mandimitra/go-sync-core/internal/config"
	"github.com/mandimitra/go-sync-core/internal/domain"
	"github.com/mandimitra/go-sync-core/internal/metrics"
	"github.com/mandimitra/go-sync-core/internal/remote"
	"github.com/mandimitra/go-sync-core/internal/repo"
)

// Result is the outcome of a cache read. A miss is not an error: Reason says
// why, and on an expiry miss Value still carries the stale bytes together
// with their StoredAt so the caller can present them with a staleness note.
type Result struct {
	Value    []byte
	Hit      bool
	Fetched  bool              // value came from the remote, not the local store
	Reason   domain.MissReason // set only when Hit is false
	StoredAt time.Time         // zero when no bytes are available
}

// Manager coordinates the cache_store collection. All TTL decisions happen
// here in Go, never in SQL, so the closed-interval and clock-rollback rules
// live in exactly one place (domain.CacheEntry.Expired).
type Manager struct {
	db           *gorm.DB
	policies     config.PolicySet
	remote       remote.Client // nil disables fetch-through
	fetchTimeout time.Duration // bound on one fetch-through call; <=0 leaves the caller's deadline
	met          *metrics.Metrics
	log          zerolog.Logger
	now          func() time.Time
}

func New(db *gorm.DB, policies config.PolicySet, rc remote.Client, fetchTimeout time.Duration, met *metrics.Metrics, log zerolog.Logger) *Manager {
	return &Manager{
		db:           db,
		policies:     policies,
		remote:       rc,
		fetchTimeout: fetchTimeout,
		met:          met,
		log:          log.With().Str("component", "cache").Logger(),
		now:          time.Now,
	}
}

// canonKey normalizes a lookup key. Keys arrive from user-facing surfaces in
// mixed case and scripts ("Wheat", "wheat", "गेहूं"), so they are case-folded
// to make "Wheat:Pune" and "wheat:pune" the same entry.
func canonKey(key string) string {
	return cases.Fold().String(strings.TrimSpace(key))
}

// Get reads an entry from the local store only. A fresh entry is a hit and
// refreshes the recency marker. An expired entry or an absent key is a miss
// with the reason exposed; neither is an error. A row that can no longer be
// decoded is removed and reported as not present.
func (m *Manager) Get(ctx context.Context, category domain.Category, key string) (Result, error) {
	if !category.Valid() {
		return Result{}, fmt.Errorf("cache: unknown category %q", category)
	}
	key = canonKey(key)
	if key == "" {
		return Result{}, errors.New("cache: empty key")
	}

	e, err := repo.GetCacheEntry(ctx, m.db, category, key)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		m.met.CacheMisses.WithLabelValues(string(category), string(domain.MissNotPresent)).Inc()
		return Result{Reason: domain.MissNotPresent}, nil
	case errors.Is(err, repo.ErrCorruptRecord):
		m.log.Error().Err(err).Str("category", string(category)).Str("key", key).Msg("dropping unreadable cache entry")
		if derr := repo.DeleteCacheEntry(ctx, m.db, category, key); derr != nil {
			return Result{}, derr
		}
		m.met.CacheMisses.WithLabelValues(string(category), string(domain.MissNotPresent)).Inc()
		return Result{Reason: domain.MissNotPresent}, nil
	case err != nil:
		return Result{}, err
	}

	if e.Expired(m.now()) {
		m.met.CacheMisses.WithLabelValues(string(category), string(domain.MissExpired)).Inc()
		return Result{Value: e.Value, Reason: domain.MissExpired, StoredAt: e.StoredAt}, nil
	}

	if err := repo.TouchCacheEntry(ctx, m.db, category, key, m.now()); err != nil {
		// The read already succeeded; a failed recency update only skews LRU.
		m.log.Warn().Err(err).Str("key", key).Msg("cache touch failed")
	}
	m.met.CacheHits.WithLabelValues(string(category)).Inc()
	return Result{Value: e.Value, Hit: true, StoredAt: e.StoredAt}, nil
}

// Put stores a value under (category, key), snapshotting the category TTL
// into the row. When the category is full and the key is new, the least
// recently accessed entries are evicted until the new entry fits.
func (m *Manager) Put(ctx context.Context, category domain.Category, key string, value []byte) error {
	pol, ok := m.policies[category]
	if !ok {
		return fmt.Errorf("cache: unknown category %q", category)
	}
	key = canonKey(key)
	if key == "" {
		return errors.New("cache: empty key")
	}

	_, err := repo.GetCacheEntry(ctx, m.db, category, key)
	isNew := errors.Is(err, repo.ErrNotFound)
	if err != nil && !isNew && !errors.Is(err, repo.ErrCorruptRecord) {
		return err
	}

	if isNew {
		for {
			n, err := repo.CountCacheCategory(ctx, m.db, category)
			if err != nil {
				return err
			}
			if n < int64(pol.MaxEntries) {
				break
			}
			victim, err := repo.OldestAccessed(ctx, m.db, category)
			if err != nil {
				return err
			}
			if err := repo.DeleteCacheEntry(ctx, m.db, category, victim.Key); err != nil {
				return err
			}
			m.met.CacheEvictions.WithLabelValues(string(category)).Inc()
			m.log.Debug().Str("category", string(category)).Str("key", victim.Key).Msg("evicted least recently used entry")
		}
	}

	now := m.now()
	e := &domain.CacheEntry{
		Category:      category,
		Key:           key,
		Value:         value,
		StoredAt:      now,
		MaxAgeSeconds: int64(pol.MaxAge / time.Second),
		LastAccessAt:  now,
	}
	return repo.UpsertCacheEntry(ctx, m.db, e)
}

// Invalidate removes one entry. Removing an absent entry is a no-op.
func (m *Manager) Invalidate(ctx context.Context, category domain.Category, key string) error {
	if !category.Valid() {
		return fmt.Errorf("cache: unknown category %q", category)
	}
	return repo.DeleteCacheEntry(ctx, m.db, category, canonKey(key))
}

// InvalidateCategory removes every entry of a category and returns the count.
func (m *Manager) InvalidateCategory(ctx context.Context, category domain.Category) (int64, error) {
	if !category.Valid() {
		return 0, fmt.Errorf("cache: unknown category %q", category)
	}
	n, err := repo.DeleteCacheCategory(ctx, m.db, category)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		m.log.Info().Str("category", string(category)).Int64("removed", n).Msg("category invalidated")
	}
	return n, nil
}

// PurgeExpired sweeps every category and removes entries past their TTL,
// returning the number removed. Expiry is evaluated per entry in Go so the
// sweep shares the exact freshness rule used by Get, and an unreadable row
// is removed instead of aborting the sweep.
func (m *Manager) PurgeExpired(ctx context.Context) (int64, error) {
	var removed int64
	now := m.now()
	for _, category := range domain.Categories() {
		keys, err := repo.ListCacheKeys(ctx, m.db, category)
		if err != nil {
			return removed, err
		}
		for _, key := range keys {
			e, err := repo.GetCacheEntry(ctx, m.db, category, key)
			switch {
			case errors.Is(err, repo.ErrNotFound):
				continue // deleted concurrently
			case errors.Is(err, repo.ErrCorruptRecord):
				m.log.Error().Err(err).Str("category", string(category)).Str("key", key).Msg("dropping unreadable cache entry")
			case err != nil:
				return removed, err
			default:
				if !e.Expired(now) {
					continue
				}
			}
			if err := repo.DeleteCacheEntry(ctx, m.db, category, key); err != nil {
				return removed, err
			}
			removed++
			m.met.CachePurged.Inc()
		}
	}
	if removed > 0 {
		m.log.Info().Int64("removed", removed).Msg("expired entries purged")
	}
	return removed, nil
}

// GetOrFetch reads locally first and falls back to the remote API on a miss.
// A fetched value is stored before being returned. When the fetch fails the
// local outcome stands: stale bytes for an expired entry, or a plain miss.
// Fetch failures are expected offline and are logged, not returned. The
// remote call runs under the configured fetch timeout so a stalled server
// cannot hold the read path open.
func (m *Manager) GetOrFetch(ctx context.Context, category domain.Category, key string) (Result, error) {
	r, err := m.Get(ctx, category, key)
	if err != nil || r.Hit {
		return r, err
	}
	if m.remote == nil {
		return r, nil
	}

	fctx := ctx
	if m.fetchTimeout > 0 {
		var cancel context.CancelFunc
		fctx, cancel = context.WithTimeout(ctx, m.fetchTimeout)
		defer cancel()
	}
	value, ferr := m.remote.Fetch(fctx, category, canonKey(key))
	if ferr != nil {
		m.log.Debug().Err(ferr).Str("category", string(category)).Str("key", key).Msg("fetch-through failed, serving local outcome")
		return r, nil
	}
	if perr := m.Put(ctx, category, key, value); perr != nil {
		// Serving the fresh bytes matters more than persisting them.
		m.log.Warn().Err(perr).Str("key", key).Msg("fetched value could not be stored")
	}
	return Result{Value: value, Hit: true, Fetched: true, StoredAt: m.now()}, nil
}

// Stats returns per-category entry counts.
func (m *Manager) Stats(ctx context.Context) (repo.CacheStats, error) {
	return repo.CollectCacheStats(ctx, m.db)
}

// List returns entries ordered by category and key, optionally filtered.
func (m *Manager) List(ctx context.Context, categories ...domain.Category) ([]domain.CacheEntry, error) {
	return repo.ListCacheEntries(ctx, m.db, categories...)
}
