package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHasCode(t *testing.T) {
	t.Run("matches direct error", func(t *testing.T) {
		err := New(CodeNotFound, "connection not found")
		if !HasCode(err, CodeNotFound) {
			t.Fatal("expected HasCode to match the error's own code")
		}
		if HasCode(err, CodeForbidden) {
			t.Fatal("expected HasCode to reject a different code")
		}
	})

	t.Run("matches through wrapping", func(t *testing.T) {
		cause := errors.New("pq: connection refused")
		err := Wrap(cause, CodeStorageUnavailable, "connection store unavailable")
		wrapped := fmt.Errorf("create connection: %w", err)

		if !HasCode(wrapped, CodeStorageUnavailable) {
			t.Fatal("expected HasCode to walk the error chain")
		}
		if !errors.Is(wrapped, cause) {
			t.Fatal("expected the cause to stay reachable through Wrap")
		}
	})

	t.Run("rejects uncoded errors", func(t *testing.T) {
		if HasCode(errors.New("plain"), CodeInternal) {
			t.Fatal("expected HasCode to reject errors without a code")
		}
	})
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(New(CodeSelfConnection, "cannot connect with yourself")); got != CodeSelfConnection {
		t.Fatalf("expected self_connection, got %q", got)
	}
	if got := CodeOf(errors.New("plain")); got != CodeInternal {
		t.Fatalf("expected uncoded errors to default to internal_error, got %q", got)
	}
}

func TestToHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeBadRequest:         http.StatusBadRequest,
		CodeValidation:         http.StatusBadRequest,
		CodeSelfConnection:     http.StatusBadRequest,
		CodeUnauthorized:       http.StatusUnauthorized,
		CodeForbidden:          http.StatusForbidden,
		CodeNotFound:           http.StatusNotFound,
		CodeDuplicatePending:   http.StatusConflict,
		CodeAlreadyConnected:   http.StatusConflict,
		CodeInvalidTransition:  http.StatusConflict,
		CodeStorageUnavailable: http.StatusServiceUnavailable,
		CodeInternal:           http.StatusInternalServerError,
		Code("made_up"):        http.StatusInternalServerError,
	}
	for code, want := range cases {
		if got := ToHTTPStatus(code); got != want {
			t.Fatalf("ToHTTPStatus(%q) = %d, want %d", code, got, want)
		}
	}
}
