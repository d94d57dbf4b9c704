package shared

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
)

func TestError(t *testing.T) {
	t.Run("message hides the cause", func(t *testing.T) {
		cause := errors.New("disk I/O error: SQLITE_IOERR")
		err := NewError(KindPersistenceWrite, "accounts.save", "", cause)

		if err.Error() != "Failed to save data" {
			t.Errorf("expected default message, got %q", err.Error())
		}
		if !errors.Is(err, cause) {
			t.Error("expected cause to be reachable through Unwrap")
		}
		if err.Cause() != cause {
			t.Error("expected Cause() to return the original error")
		}
	})

	t.Run("matches kind sentinels", func(t *testing.T) {
		tc := []struct {
			kind     Kind
			sentinel error
		}{
			{KindUnknown, ErrUnknown},
			{KindUnauthenticated, ErrUnauthenticated},
			{KindUnauthorized, ErrUnauthorized},
			{KindNotFound, ErrNotFound},
			{KindNetwork, ErrNetwork},
			{KindPersistenceWrite, ErrPersistenceWriteFailed},
			{KindPersistenceRead, ErrPersistenceReadFailed},
		}

		for _, tt := range tc {
			t.Run(tt.kind.String(), func(t *testing.T) {
				err := fmt.Errorf("wrapped: %w", NewError(tt.kind, "op", "msg", nil))
				if !errors.Is(err, tt.sentinel) {
					t.Errorf("expected %v to match %v", err, tt.sentinel)
				}
				if KindOf(err) != tt.kind {
					t.Errorf("KindOf() = %v, want %v", KindOf(err), tt.kind)
				}
			})
		}
	})

	t.Run("Detail includes op and cause", func(t *testing.T) {
		err := NewError(KindNotFound, "accounts.get", "Account not found", errors.New("no rows"))
		want := "accounts.get: Account not found (no rows)"
		if err.Detail() != want {
			t.Errorf("Detail() = %q, want %q", err.Detail(), want)
		}
	})
}

func TestNormalize(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		if Normalize("op", nil) != nil {
			t.Error("expected nil")
		}
	})

	t.Run("already normalized keeps kind and message", func(t *testing.T) {
		orig := NewError(KindUnauthorized, "", "Permission denied", nil)
		got := Normalize("store.addAccount", fmt.Errorf("ctx: %w", orig))

		if got.Kind != KindUnauthorized || got.Message != "Permission denied" {
			t.Errorf("unexpected normalized error: %+v", got)
		}
		if got.Op != "store.addAccount" {
			t.Errorf("expected op to be filled in, got %q", got.Op)
		}
		if orig.Op != "" {
			t.Error("original error must not be mutated")
		}
	})

	t.Run("existing op is kept", func(t *testing.T) {
		orig := NewError(KindNotFound, "accounts.get", "", nil)
		if got := Normalize("store", orig); got.Op != "accounts.get" {
			t.Errorf("expected inner op, got %q", got.Op)
		}
	})

	tc := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: KindNetwork},
		{name: "cancelled", err: fmt.Errorf("fetch: %w", context.Canceled), want: KindNetwork},
		{name: "net error", err: &net.OpError{Op: "dial", Err: errors.New("connection refused")}, want: KindNetwork},
		{name: "anything else", err: errors.New("boom"), want: KindUnknown},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize("op", tt.err)
			if got.Kind != tt.want {
				t.Errorf("Normalize().Kind = %v, want %v", got.Kind, tt.want)
			}
			if !errors.Is(got, tt.err) {
				t.Error("expected cause to be preserved")
			}
		})
	}

	t.Run("Message", func(t *testing.T) {
		if Message(nil) != "" {
			t.Error("expected empty message for nil")
		}
		if got := Message(errors.New("raw driver failure")); got != "An unexpected error occurred" {
			t.Errorf("expected generic message, got %q", got)
		}
	})
}
