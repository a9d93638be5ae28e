// Repository functions for the sync_queue collection.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition. Retry policy, state-machine rules, and
// attempt accounting live in the queue and sync packages.
//
// Error semantics:
//   - When an entry is not found, functions return ErrNotFound.
//   - Unique violations (duplicate idempotency key) return ErrDuplicate.
//   - Storage-level failures are mapped to ErrStorageFull /
//     ErrStorageUnavailable / ErrCorruptRecord; no raw driver error escapes.
//
// Ordering: queue entries carry time-ordered UUID (v7) primary keys, so
// "ORDER BY id" is creation order. Every listing function uses it.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/mandimitra/go-sync-core/internal/domain"
)

// InsertQueueEntry persists a new queue entry. The caller supplies the fully
// populated entry (id, idempotency key, timestamps).
func InsertQueueEntry(ctx context.Context, db *gorm.DB, e *domain.QueueEntry) error {
	if err := db.WithContext(ctx).Create(e).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return wrapStorage(err)
	}
	return nil
}

// GetQueueEntry fetches a single entry by id, or ErrNotFound if missing.
func GetQueueEntry(ctx context.Context, db *gorm.DB, id string) (*domain.QueueEntry, error) {
	var e domain.QueueEntry
	err := db.WithContext(ctx).Where("id = ?", id).First(&e).Error
	if err != nil {
		return nil, wrapStorage(err)
	}
	return &e, nil
}

// NextPendingID returns the id of the oldest pending entry without decoding
// the full row. Splitting id lookup from row decode lets the caller isolate a
// corrupt row (drop it, continue with the next) instead of aborting the drain.
func NextPendingID(ctx context.Context, db *gorm.DB) (string, error) {
	var row struct{ ID string }
	err := db.WithContext(ctx).
		Model(&domain.QueueEntry{}).
		Select("id").
		Where("state = ?", domain.StatePending).
		Order("id asc").
		First(&row).Error
	if err != nil {
		return "", wrapStorage(err)
	}
	return row.ID, nil
}

// ListQueueEntries returns entries in creation order. With no states given it
// returns the whole collection; otherwise only entries in the given states.
func ListQueueEntries(ctx context.Context, db *gorm.DB, states ...domain.QueueState) ([]domain.QueueEntry, error) {
	q := db.WithContext(ctx).Order("id asc")
	if len(states) > 0 {
		q = q.Where("state IN ?", states)
	}
	var out []domain.QueueEntry
	if err := q.Find(&out).Error; err != nil {
		return nil, wrapStorage(err)
	}
	return out, nil
}

// CountQueueEntries returns the number of entries, optionally filtered by state.
func CountQueueEntries(ctx context.Context, db *gorm.DB, states ...domain.QueueState) (int64, error) {
	q := db.WithContext(ctx).Model(&domain.QueueEntry{})
	if len(states) > 0 {
		q = q.Where("state IN ?", states)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return 0, wrapStorage(err)
	}
	return total, nil
}

// SetQueueEntryState performs the conditional transition from -> to on one
// entry. It returns ErrNotFound when the entry is missing or not in the
// expected from state, which keeps transitions race-safe without locks.
func SetQueueEntryState(ctx context.Context, db *gorm.DB, id string, from, to domain.QueueState) error {
	res := db.WithContext(ctx).
		Model(&domain.QueueEntry{}).
		Where("id = ? AND state = ?", id, from).
		Update("state", to)
	if res.Error != nil {
		return wrapStorage(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordQueueFailure writes the outcome of a failed delivery attempt in one
// update: the new attempt count, the resulting state (pending for another try
// or failed when frozen), and the failure reason.
func RecordQueueFailure(ctx context.Context, db *gorm.DB, id string, attempts int, state domain.QueueState, reason string) error {
	res := db.WithContext(ctx).
		Model(&domain.QueueEntry{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"attempts":   attempts,
			"state":      state,
			"last_error": reason,
		})
	if res.Error != nil {
		return wrapStorage(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ResetQueueEntry rearms a frozen failed entry for manual retry: attempts and
// last_error are cleared and the entry returns to pending at its original
// queue position (the id does not change).
func ResetQueueEntry(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).
		Model(&domain.QueueEntry{}).
		Where("id = ? AND state = ?", id, domain.StateFailed).
		Updates(map[string]any{
			"attempts":   0,
			"state":      domain.StatePending,
			"last_error": "",
		})
	if res.Error != nil {
		return wrapStorage(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteQueueEntry removes an entry permanently. Used when an entry is synced
// (no tombstones are retained) and for explicit user-triggered discard.
// When states are given, the delete only applies if the entry is currently in
// one of them, making "remove iff still in_flight" a single atomic statement.
func DeleteQueueEntry(ctx context.Context, db *gorm.DB, id string, states ...domain.QueueState) error {
	q := db.WithContext(ctx).Where("id = ?", id)
	if len(states) > 0 {
		q = q.Where("state IN ?", states)
	}
	res := q.Delete(&domain.QueueEntry{})
	if res.Error != nil {
		return wrapStorage(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// RequeueInFlight reverts every in_flight entry to pending. Called once on
// startup: an entry left in_flight by a crash must be retried from the start,
// relying on its idempotency key to make the redelivery safe.
func RequeueInFlight(ctx context.Context, db *gorm.DB) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.QueueEntry{}).
		Where("state = ?", domain.StateInFlight).
		Update("state", domain.StatePending)
	if res.Error != nil {
		return 0, wrapStorage(res.Error)
	}
	return res.RowsAffected, nil
}
