package notify

import (
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"golang.org/x/text/language"

	"github.com/mandimitra/go-sync-core/internal/domain"
)

func TestMatchLocale(t *testing.T) {
	cases := []struct {
		in   string
		want language.Tag
	}{
		{"en", language.English},
		{"en-US", language.English},
		{"hi", language.Hindi},
		{"hi-IN", language.Hindi},
		{"mr", language.Marathi},
		{"ta", language.English}, // unsupported -> English
		{"not a tag", language.English},
		{"", language.English},
	}
	for _, c := range cases {
		if got := matchLocale(c.in); got != c.want {
			t.Fatalf("matchLocale(%q) = %v; want %v", c.in, got, c.want)
		}
	}
}

func TestSubscribe_FanOutAndUnsubscribeIdempotent(t *testing.T) {
	n := New("en", zerolog.Nop())

	var first, second []Notification
	unsub1 := n.Subscribe(func(ntf Notification) { first = append(first, ntf) })
	unsub2 := n.Subscribe(func(ntf Notification) { second = append(second, ntf) })

	n.ActionNotSaved(domain.OpRecordMessage, errors.New("disk full"))
	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("expected both handlers invoked, got %d/%d", len(first), len(second))
	}

	unsub1()
	unsub1() // second call is a no-op
	n.DataStale(domain.CategoryPriceData, "tomato:maharashtra")
	if len(first) != 1 {
		t.Fatalf("unsubscribed handler still invoked")
	}
	if len(second) != 2 {
		t.Fatalf("remaining handler missed notification")
	}

	unsub2()
	n.DataStale(domain.CategoryPriceData, "k") // no handlers left, must not panic
}

func TestActionNotSaved_FieldsAndMessage(t *testing.T) {
	n := New("en", zerolog.Nop())
	var got Notification
	n.Subscribe(func(ntf Notification) { got = ntf })

	n.ActionNotSaved(domain.OpRecordTransaction, errors.New("storage full"))

	if got.Kind != KindActionNotSaved || got.Operation != domain.OpRecordTransaction {
		t.Fatalf("unexpected notification: %+v", got)
	}
	if got.Reason != "storage full" {
		t.Fatalf("reason = %q", got.Reason)
	}
	if !strings.Contains(got.Message, "transaction") || !strings.Contains(got.Message, "not saved") {
		t.Fatalf("message = %q", got.Message)
	}
	if got.At.IsZero() {
		t.Fatalf("At not stamped")
	}
}

func TestSyncFailed_CarriesEntryDetail(t *testing.T) {
	n := New("en", zerolog.Nop())
	var got Notification
	n.Subscribe(func(ntf Notification) { got = ntf })

	n.SyncFailed(&domain.QueueEntry{
		ID:            "q1",
		OperationType: domain.OpRecordMessage,
		State:         domain.StateFailed,
		LastError:     "rejected: bad payload",
	})

	if got.Kind != KindSyncFailed || got.EntryID != "q1" {
		t.Fatalf("unexpected notification: %+v", got)
	}
	if !strings.Contains(got.Message, "rejected: bad payload") {
		t.Fatalf("message must carry the failure reason: %q", got.Message)
	}
}

func TestLocalizedRendering_Hindi(t *testing.T) {
	n := New("hi-IN", zerolog.Nop())
	if n.Locale() != language.Hindi {
		t.Fatalf("locale = %v", n.Locale())
	}

	var got Notification
	n.Subscribe(func(ntf Notification) { got = ntf })

	n.DataStale(domain.CategoryPriceData, "tomato:maharashtra")
	if got.Category != domain.CategoryPriceData || got.Key != "tomato:maharashtra" {
		t.Fatalf("unexpected notification: %+v", got)
	}
	if !strings.Contains(got.Message, "भाव") {
		t.Fatalf("expected Hindi message, got %q", got.Message)
	}
}

func TestRender_FallsBackForUnknownOperation(t *testing.T) {
	n := New("en", zerolog.Nop())
	var got Notification
	n.Subscribe(func(ntf Notification) { got = ntf })

	n.ActionNotSaved(domain.OperationType("rate_buyer"), nil)
	if !strings.Contains(got.Message, "rate buyer") {
		t.Fatalf("unknown op should render its raw tag: %q", got.Message)
	}
}
