// Package notify delivers the user-visible outcomes of the sync core:
// "action not saved" when an enqueue fails, "sync failed" when an entry
// exhausts its attempts or is rejected, and "data may be stale" when the
// cache serves an expired value. Messages are rendered in the farmer's
// language; the UI layer subscribes to receive them, and every notification
// is also logged so headless runs keep a record.
package notify

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/language"

	"github.com/mandimitra/go-sync-core/internal/domain"
)

// Kind classifies a notification.
type Kind string

const (
	KindActionNotSaved Kind = "action_not_saved"
	KindSyncFailed     Kind = "sync_failed"
	KindDataStale      Kind = "data_stale"
)

// Notification is one user-facing event. Message is already localized;
// the structured fields let the UI group or deep-link.
type Notification struct {
	Kind      Kind                 `json:"kind"`
	Message   string               `json:"message"`
	EntryID   string               `json:"entry_id,omitempty"`
	Operation domain.OperationType `json:"operation,omitempty"`
	Category  domain.Category      `json:"category,omitempty"`
	Key       string               `json:"key,omitempty"`
	Reason    string               `json:"reason,omitempty"`
	At        time.Time            `json:"at"`
}

// Handler receives notifications. Handlers are invoked synchronously in
// subscription order and must return quickly.
type Handler func(Notification)

// Notifier renders and fans out notifications. The zero value is not usable;
// construct with New.
type Notifier struct {
	mu       sync.Mutex
	handlers map[int]Handler
	nextID   int

	tag language.Tag
	log zerolog.Logger
	now func() time.Time
}

// New returns a Notifier rendering messages in the best supported match for
// locale (BCP-47). Unknown or unsupported locales fall back to English.
func New(locale string, log zerolog.Logger) *Notifier {
	return &Notifier{
		handlers: make(map[int]Handler),
		tag:      matchLocale(locale),
		log:      log.With().Str("component", "notify").Logger(),
		now:      time.Now,
	}
}

// Locale returns the resolved message language.
func (n *Notifier) Locale() language.Tag { return n.tag }

// Subscribe registers a handler and returns its unsubscribe function.
// Unsubscribing twice is harmless.
func (n *Notifier) Subscribe(h Handler) (unsubscribe func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	id := n.nextID
	n.nextID++
	n.handlers[id] = h
	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.handlers, id)
	}
}

// ActionNotSaved reports a failed enqueue: the user's action is not durable
// and must be retried by the user.
func (n *Notifier) ActionNotSaved(op domain.OperationType, cause error) {
	reason := ""
	if cause != nil {
		reason = cause.Error()
	}
	n.emit(Notification{
		Kind:      KindActionNotSaved,
		Message:   render(n.tag, KindActionNotSaved, opLabel(n.tag, op), ""),
		Operation: op,
		Reason:    reason,
	})
}

// SyncFailed reports an entry frozen as failed, either rejected by the server
// or out of attempts.
func (n *Notifier) SyncFailed(e *domain.QueueEntry) {
	n.emit(Notification{
		Kind:      KindSyncFailed,
		Message:   render(n.tag, KindSyncFailed, opLabel(n.tag, e.OperationType), e.LastError),
		EntryID:   e.ID,
		Operation: e.OperationType,
		Reason:    e.LastError,
	})
}

// DataStale reports that a cache read found only an expired value, so the UI
// should flag whatever it shows as possibly out of date.
func (n *Notifier) DataStale(category domain.Category, key string) {
	n.emit(Notification{
		Kind:     KindDataStale,
		Message:  render(n.tag, KindDataStale, categoryLabel(n.tag, category), ""),
		Category: category,
		Key:      key,
	})
}

func (n *Notifier) emit(ntf Notification) {
	ntf.At = n.now()

	evt := n.log.Info()
	if ntf.Kind != KindDataStale {
		evt = n.log.Warn()
	}
	evt.
		Str("kind", string(ntf.Kind)).
		Str("entry_id", ntf.EntryID).
		Str("reason", ntf.Reason).
		Msg(ntf.Message)

	n.mu.Lock()
	ids := make([]int, 0, len(n.handlers))
	for id := range n.handlers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	hs := make([]Handler, 0, len(ids))
	for _, id := range ids {
		hs = append(hs, n.handlers[id])
	}
	n.mu.Unlock()

	for _, h := range hs {
		h(ntf)
	}
}
