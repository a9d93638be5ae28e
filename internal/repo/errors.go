// Package repo implements the local durable store for the sync core, backed
// by GORM over pure-Go SQLite. It persists the two collections the rest of
// the system relies on: sync_queue (pending mutations) and cache_store
// (category cache). Raw driver errors never leave this package; they are
// mapped to the storage taxonomy below at every boundary.
package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and CLI.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate indicates a unique-constraint violation, e.g. inserting a
// queue entry whose idempotency key is already present.
var ErrDuplicate = errors.New("duplicate")

// ErrStorageFull indicates the device quota is exhausted and the write could
// not be committed. Callers must treat the triggering action as not saved.
var ErrStorageFull = errors.New("storage full")

// ErrStorageUnavailable indicates the persistence backend cannot be opened
// or written at all (missing directory, permissions, read-only volume).
var ErrStorageUnavailable = errors.New("storage unavailable")

// ErrCorruptRecord indicates a single stored record could not be decoded.
// The caller drops that record and continues; corruption of one row must
// never abort a whole drain or sweep.
var ErrCorruptRecord = errors.New("corrupt record")

// isUniqueViolation detects unique-constraint failures across the error
// shapes the pure-Go SQLite driver produces.
// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique")
}

// looksCorrupt reports whether err is a row-decode failure rather than an
// engine-level error. SQLite stores timestamps as text; a mangled row
// surfaces as a scan/parse error on read.
func looksCorrupt(err error) bool {
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "scan error") ||
		strings.Contains(low, "parsing time") ||
		strings.Contains(low, "unsupported scan") ||
		strings.Contains(low, "invalid character")
}

// wrapStorage maps a raw driver error onto the storage taxonomy. An engine
// error that matches no known class still classifies as ErrStorageUnavailable,
// wrapped so the underlying cause keeps logging; only context cancellation
// passes through, since that is the caller's deadline, not the store's fault.
func wrapStorage(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	low := strings.ToLower(err.Error())
	switch {
	case strings.Contains(low, "database or disk is full"):
		return fmt.Errorf("%w: %v", ErrStorageFull, err)
	case looksCorrupt(err):
		return fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
}
