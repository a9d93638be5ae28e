// Package engine assembles the offline sync core: one durable SQLite store
// shared by the queue and the cache, the reconciler that drains the queue,
// the network monitor that triggers it, and the notifier that carries
// failures and staleness warnings to the user. Construction wires every
// component explicitly; nothing here is a process-global.
package engine

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/mandimitra/go-sync-core/internal/cache"
	"github.com/mandimitra/go-sync-core/internal/config"
	"github.com/mandimitra/go-sync-core/internal/domain"
	"github.com/mandimitra/go-sync-core/internal/metrics"
	"github.com/mandimitra/go-sync-core/internal/netmon"
	"github.com/mandimitra/go-sync-core/internal/notify"
	"github.com/mandimitra/go-sync-core/internal/queue"
	"github.com/mandimitra/go-sync-core/internal/remote"
	"github.com/mandimitra/go-sync-core/internal/repo"
	isync "github.com/mandimitra/go-sync-core/internal/sync"
)

// Engine owns the lifecycle of the sync core. Components are exported so
// the embedding application (or the CLI) can reach them directly; the
// engine itself only adds assembly, startup recovery, and shutdown.
type Engine struct {
	cfg config.Config
	db  *gorm.DB
	log zerolog.Logger

	Registry   *prometheus.Registry
	Metrics    *metrics.Metrics
	Queue      *queue.Queue
	Cache      *cache.Manager
	Monitor    *netmon.Monitor
	Notifier   *notify.Notifier
	Reconciler *isync.Reconciler

	cancel context.CancelFunc
	wg     sync.WaitGroup
	unsub  func()
}

// New opens the store, migrates the two collections, and wires every
// component. It does not start any background work; call Start.
func New(cfg config.Config, log zerolog.Logger) (*Engine, error) {
	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := repo.AutoMigrate(db); err != nil {
		return nil, err
	}
	if cfg.OTEL.Enabled {
		if err := repo.EnableTracing(db); err != nil {
			return nil, err
		}
	}

	reg := prometheus.NewRegistry()
	met := metrics.New(reg)
	notifier := notify.New(cfg.NotifyLocale, log)
	rc := remote.NewHTTPClient(cfg.RemoteBaseURL, log)
	q := queue.New(db, cfg.Sync.MaxAttempts, met, log)

	e := &Engine{
		cfg:        cfg,
		db:         db,
		log:        log.With().Str("component", "engine").Logger(),
		Registry:   reg,
		Metrics:    met,
		Queue:      q,
		Cache:      cache.New(db, cfg.Policies, rc, cfg.FetchTimeout, met, log),
		Monitor:    netmon.New(cfg.RemoteBaseURL, cfg.Net, met, log),
		Notifier:   notifier,
		Reconciler: isync.New(q, rc, notifier, cfg.Sync, met, log),
	}
	return e, nil
}

// Start recovers from any previous crash and launches the background loops:
// the network monitor, the reconciler, and the cache purge timer. The loops
// stop when ctx is cancelled or Close is called.
func (e *Engine) Start(ctx context.Context) error {
	// An entry still in flight was interrupted mid-delivery; its idempotency
	// key makes redelivery safe, so it simply rejoins the pending backlog.
	requeued, err := e.Queue.RequeueInFlight(ctx)
	if err != nil {
		return err
	}
	if n, err := e.Queue.Depth(ctx); err == nil {
		e.Metrics.QueueDepth.Set(float64(n))
	}
	if _, err := e.Cache.PurgeExpired(ctx); err != nil {
		e.log.Warn().Err(err).Msg("startup purge failed")
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.unsub = e.Monitor.Subscribe(e.Reconciler.OnConnectivityChange)

	e.wg.Add(2)
	go func() {
		defer e.wg.Done()
		_ = e.Monitor.Run(runCtx)
	}()
	go func() {
		defer e.wg.Done()
		_ = e.Reconciler.Run(runCtx)
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(e.cfg.PurgeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if _, err := e.Cache.PurgeExpired(runCtx); err != nil {
					e.log.Warn().Err(err).Msg("scheduled purge failed")
				}
			}
		}
	}()

	e.log.Info().
		Int64("requeued", requeued).
		Str("db", e.cfg.DBPath).
		Str("remote", e.cfg.RemoteBaseURL).
		Msg("sync core started")
	return nil
}

// Enqueue is the application's write path. The mutation is durably captured
// locally; if even that fails, the user is told immediately that the action
// was not saved. A successful capture nudges the reconciler, which delivers
// now or whenever the link next allows.
func (e *Engine) Enqueue(ctx context.Context, op domain.OperationType, payload []byte) (*domain.QueueEntry, error) {
	entry, err := e.Queue.Enqueue(ctx, op, payload)
	if err != nil {
		e.Notifier.ActionNotSaved(op, err)
		return nil, err
	}
	e.Reconciler.Kick()
	return entry, nil
}

// GetData is the application's read path. It prefers the local cache, falls
// through to the remote when the entry is missing or expired, and when the
// read still ends on an expired entry it notifies the user that what they are
// about to see may be out of date.
func (e *Engine) GetData(ctx context.Context, category domain.Category, key string) (cache.Result, error) {
	res, err := e.Cache.GetOrFetch(ctx, category, key)
	if err != nil {
		return res, err
	}
	if !res.Hit && res.Reason == domain.MissExpired {
		e.Notifier.DataStale(category, key)
	}
	return res, nil
}

// Status aggregates the view the UI's sync indicator needs.
type Status struct {
	Sync    isync.Status             `json:"sync"`
	Network domain.ConnectivityState `json:"network"`
	Queue   repo.QueueStats          `json:"queue"`
	Cache   repo.CacheStats          `json:"cache"`
}

func (e *Engine) Status(ctx context.Context) (Status, error) {
	qs, err := repo.CollectQueueStats(ctx, e.db)
	if err != nil {
		return Status{}, err
	}
	cs, err := repo.CollectCacheStats(ctx, e.db)
	if err != nil {
		return Status{}, err
	}
	return Status{
		Sync:    e.Reconciler.Status(ctx),
		Network: e.Monitor.State(),
		Queue:   qs,
		Cache:   cs,
	}, nil
}

// Export writes both durable collections as one JSON document, keyed
// sync_queue and cache_store, for diagnostics and support bundles.
func (e *Engine) Export(ctx context.Context, w io.Writer) error {
	entries, err := repo.ListQueueEntries(ctx, e.db)
	if err != nil {
		return err
	}
	cached, err := repo.ListCacheEntries(ctx, e.db)
	if err != nil {
		return err
	}
	doc := struct {
		ExportedAt time.Time           `json:"exported_at"`
		SyncQueue  []domain.QueueEntry `json:"sync_queue"`
		CacheStore []domain.CacheEntry `json:"cache_store"`
	}{
		ExportedAt: time.Now().UTC(),
		SyncQueue:  entries,
		CacheStore: cached,
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// Close stops the background loops, detaches the reconciler from the
// monitor, and closes the store. Safe to call after a failed Start.
func (e *Engine) Close() error {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
	if e.unsub != nil {
		e.unsub()
	}
	if sqlDB, err := e.db.DB(); err == nil {
		return sqlDB.Close()
	}
	return nil
}
