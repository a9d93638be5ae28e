// Package queue manages the durable offline queue that absorbs every user
// mutation before any network activity. Writes land locally first and are
// drained to the remote API later, so the capture path keeps working with
// no connectivity at all.
//
// Guarantees maintained here:
//   - FIFO: ids are UUIDv7, so creation order equals lexicographic id order
//     and draining by id yields oldest-first delivery. The ordering leans on
//     the device wall clock: entries enqueued right after a clock rollback
//     sort before older ones until the clock passes its previous reading.
//   - At-least-once: an entry is removed only after the remote acknowledged
//     it. Every entry carries an idempotency key minted at enqueue time so
//     redelivery after a crash is safe for the server to deduplicate.
//   - Single claim: at most one entry is in flight at any moment. Claim and
//     requeue serialize on the manager mutex.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/mandimitra/go-sync-core/internal/domain"
	"github.com/mandimitra/go-sync-core/internal/metrics"
	"github.com/mandimitra/go-sync-core/internal/repo"
)

var (
	// ErrEnqueueFailed wraps storage errors on the capture path. Callers
	// treat it as "action not saved" and must tell the user immediately.
	ErrEnqueueFailed = errors.New("queue: enqueue failed")

	// ErrBusy is returned by Claim when another entry is already in flight.
	ErrBusy = errors.New("queue: an entry is already in flight")
)

// Queue is the managing layer above the sync_queue collection.
type Queue struct {
	db          *gorm.DB
	maxAttempts int
	met         *metrics.Metrics
	log         zerolog.Logger

	mu sync.Mutex // serializes claim and requeue
}

func New(db *gorm.DB, maxAttempts int, met *metrics.Metrics, log zerolog.Logger) *Queue {
	return &Queue{
		db:          db,
		maxAttempts: maxAttempts,
		met:         met,
		log:         log.With().Str("component", "queue").Logger(),
	}
}

// Enqueue appends a mutation to the queue and returns the stored entry.
// The payload is opaque to the queue; op tags the entry with the remote
// operation that will replay it. Storage failures are wrapped in
// ErrEnqueueFailed and must surface to the user as an unsaved action.
func (q *Queue) Enqueue(ctx context.Context, op domain.OperationType, payload []byte) (*domain.QueueEntry, error) {
	if op == "" {
		return nil, fmt.Errorf("%w: empty operation type", ErrEnqueueFailed)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEnqueueFailed, err)
	}
	e := &domain.QueueEntry{
		ID:             id.String(),
		OperationType:  op,
		Payload:        payload,
		IdempotencyKey: uuid.NewString(),
		State:          domain.StatePending,
	}
	if err := repo.InsertQueueEntry(ctx, q.db, e); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEnqueueFailed, err)
	}
	q.met.Enqueued.WithLabelValues(string(op)).Inc()
	q.refreshDepth(ctx)
	q.log.Debug().Str("id", e.ID).Str("operation", string(op)).Int("payload_bytes", len(payload)).Msg("entry enqueued")
	return e, nil
}

// PeekNext returns the oldest pending entry, or (nil, nil) when the queue
// holds none. An entry whose row can no longer be decoded is deleted and
// logged so one damaged record cannot wedge the whole queue.
func (q *Queue) PeekNext(ctx context.Context) (*domain.QueueEntry, error) {
	for {
		id, err := repo.NextPendingID(ctx, q.db)
		if errors.Is(err, repo.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		e, err := repo.GetQueueEntry(ctx, q.db, id)
		if err == nil {
			return e, nil
		}
		if !errors.Is(err, repo.ErrCorruptRecord) {
			return nil, err
		}
		q.log.Error().Err(err).Str("id", id).Msg("dropping unreadable queue entry")
		if derr := repo.DeleteQueueEntry(ctx, q.db, id); derr != nil && !errors.Is(derr, repo.ErrNotFound) {
			return nil, derr
		}
	}
}

// Claim transitions a pending entry to in flight. It fails with ErrBusy if
// any other entry is currently in flight, and with repo.ErrNotFound if the
// entry is gone or no longer pending.
func (q *Queue) Claim(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	n, err := repo.CountQueueEntries(ctx, q.db, domain.StateInFlight)
	if err != nil {
		return err
	}
	if n > 0 {
		return ErrBusy
	}
	return repo.SetQueueEntryState(ctx, q.db, id, domain.StatePending, domain.StateInFlight)
}

// MarkSynced removes an acknowledged entry. The delete applies only while
// the entry is still in flight, so acknowledgement and removal are one
// atomic step with no intermediate state to observe after a crash.
func (q *Queue) MarkSynced(ctx context.Context, id string) error {
	if err := repo.DeleteQueueEntry(ctx, q.db, id, domain.StateInFlight); err != nil {
		return err
	}
	q.met.Synced.Inc()
	q.refreshDepth(ctx)
	q.log.Debug().Str("id", id).Msg("entry synced and removed")
	return nil
}

// MarkFailed records a delivery failure and returns the state the entry
// moved to. A permanent failure (the remote rejected the payload) freezes
// the entry as failed after this single attempt. A transient failure
// returns the entry to pending until attempts reach the configured
// maximum, at which point it freezes as failed too.
func (q *Queue) MarkFailed(ctx context.Context, id, reason string, permanent bool) (domain.QueueState, error) {
	e, err := repo.GetQueueEntry(ctx, q.db, id)
	if err != nil {
		return "", err
	}
	attempts := e.Attempts + 1
	next := domain.StatePending
	kind := metrics.FailureTransient
	switch {
	case permanent:
		next = domain.StateFailed
		kind = metrics.FailureRejected
	case attempts >= q.maxAttempts:
		next = domain.StateFailed
		kind = metrics.FailureExhausted
	}
	if err := repo.RecordQueueFailure(ctx, q.db, id, attempts, next, reason); err != nil {
		return "", err
	}
	q.met.Failures.WithLabelValues(kind).Inc()
	q.log.Warn().
		Str("id", id).
		Int("attempts", attempts).
		Str("state", string(next)).
		Str("reason", reason).
		Msg("delivery failed")
	return next, nil
}

// Release reverts an in-flight entry to pending without recording a
// failure. Used when draining halts with the attempt outcome unknown, for
// example when connectivity drops mid-submit.
func (q *Queue) Release(ctx context.Context, id string) error {
	if err := repo.SetQueueEntryState(ctx, q.db, id, domain.StateInFlight, domain.StatePending); err != nil {
		return err
	}
	q.log.Debug().Str("id", id).Msg("in-flight entry released back to pending")
	return nil
}

// Retry returns a failed entry to pending with a clean attempt counter so
// the reconciler picks it up again. Valid only from the failed state.
func (q *Queue) Retry(ctx context.Context, id string) error {
	if err := repo.ResetQueueEntry(ctx, q.db, id); err != nil {
		return err
	}
	q.log.Info().Str("id", id).Msg("failed entry requeued by user")
	return nil
}

// Discard permanently deletes a failed entry. Pending and in-flight
// entries cannot be discarded; they still represent work to deliver.
func (q *Queue) Discard(ctx context.Context, id string) error {
	if err := repo.DeleteQueueEntry(ctx, q.db, id, domain.StateFailed); err != nil {
		return err
	}
	q.refreshDepth(ctx)
	q.log.Info().Str("id", id).Msg("failed entry discarded by user")
	return nil
}

// RequeueInFlight returns any in-flight entry to pending. Called once at
// startup: an entry still marked in flight was interrupted mid-delivery by
// a crash, and its idempotency key makes redelivery safe.
func (q *Queue) RequeueInFlight(ctx context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	n, err := repo.RequeueInFlight(ctx, q.db)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		q.log.Info().Int64("count", n).Msg("requeued interrupted entries after restart")
	}
	return n, nil
}

// Get returns one entry by id.
func (q *Queue) Get(ctx context.Context, id string) (*domain.QueueEntry, error) {
	return repo.GetQueueEntry(ctx, q.db, id)
}

// List returns entries oldest-first, optionally filtered to the given states.
func (q *Queue) List(ctx context.Context, states ...domain.QueueState) ([]domain.QueueEntry, error) {
	return repo.ListQueueEntries(ctx, q.db, states...)
}

// Depth returns the number of entries currently held, in any state.
func (q *Queue) Depth(ctx context.Context) (int64, error) {
	return repo.CountQueueEntries(ctx, q.db)
}

// Stats returns per-state counts and the age marker of the oldest pending entry.
func (q *Queue) Stats(ctx context.Context) (repo.QueueStats, error) {
	return repo.CollectQueueStats(ctx, q.db)
}

func (q *Queue) refreshDepth(ctx context.Context) {
	n, err := repo.CountQueueEntries(ctx, q.db)
	if err != nil {
		return
	}
	q.met.QueueDepth.Set(float64(n))
}
