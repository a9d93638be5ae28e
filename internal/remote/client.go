// Package remote defines the boundary to the trading platform's server API.
// The reconciler submits queued mutations through it and the cache manager
// fetches fresh category data on a miss. Implementations must collapse all
// transport failures into the two outcomes the callers branch on: a
// transient ErrUnreachable (retry later) or a permanent ErrRejected
// (the operation itself is invalid and retrying cannot succeed).
package remote

import (
	"context"
	"errors"
	"fmt"

	"github.com/mandimitra/go-sync-core/internal/domain"
)

// ErrUnreachable indicates a transient delivery failure: connection refused,
// DNS failure, timeout, or a server-side 5xx. The operation may succeed on a
// later attempt.
var ErrUnreachable = errors.New("remote unreachable")

// ErrRejected indicates the server explicitly refused the operation (HTTP
// 4xx). Retrying an identical request cannot succeed.
var ErrRejected = errors.New("remote rejected operation")

// RejectionError carries the server's refusal detail. It matches ErrRejected
// under errors.Is.
type RejectionError struct {
	Status int    // HTTP status code
	Reason string // response body or status text
}

// Error implements the error interface.
func (e *RejectionError) Error() string {
	return fmt.Sprintf("remote rejected operation: status %d: %s", e.Status, e.Reason)
}

// Unwrap lets errors.Is(err, ErrRejected) succeed on a RejectionError.
func (e *RejectionError) Unwrap() error { return ErrRejected }

// Client is the narrow surface the sync core consumes. Both calls honor the
// deadline carried by ctx; neither blocks past it.
type Client interface {
	// Submit delivers one queued mutation. The idempotency key accompanies
	// every delivery of the same entry so the server can discard duplicate
	// at-least-once deliveries.
	Submit(ctx context.Context, op domain.OperationType, idempotencyKey string, payload []byte) error

	// Fetch retrieves the current server value for a cache key.
	Fetch(ctx context.Context, category domain.Category, key string) ([]byte, error)
}
