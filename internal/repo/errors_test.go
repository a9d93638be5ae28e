package repo

import (
	"context"
	"errors"
	"testing"

	"gorm.io/gorm"
)

func TestWrapStorage_ClassifiesEveryEngineError(t *testing.T) {
	cases := []struct {
		name string
		in   error
		want error
	}{
		{"not found", gorm.ErrRecordNotFound, ErrNotFound},
		{"disk full", errors.New("database or disk is full (13)"), ErrStorageFull},
		{"unopenable", errors.New("unable to open database file"), ErrStorageUnavailable},
		{"io error", errors.New("disk I/O error"), ErrStorageUnavailable},
		{"mangled row", errors.New(`sql: Scan error on column index 4: parsing time "garbage"`), ErrCorruptRecord},
		{"unknown engine fault", errors.New("sqlite: freelist corruption on page 7"), ErrStorageUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := wrapStorage(tc.in)
			if !errors.Is(got, tc.want) {
				t.Fatalf("wrapStorage(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}

	if got := wrapStorage(nil); got != nil {
		t.Fatalf("wrapStorage(nil) = %v", got)
	}
	// A cancelled context is the caller's doing, not a storage fault.
	if got := wrapStorage(context.Canceled); !errors.Is(got, context.Canceled) || errors.Is(got, ErrStorageUnavailable) {
		t.Fatalf("wrapStorage(context.Canceled) = %v, want pass-through", got)
	}
}
