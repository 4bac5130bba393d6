package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorMatchesKindAndIdentity(t *testing.T) {
	sentinel := New(ErrNotFound, "claim: not found")
	wrapped := fmt.Errorf("workflow: load claim: %w", sentinel)

	if !errors.Is(wrapped, sentinel) {
		t.Fatalf("expected wrapped error to match its sentinel")
	}
	if !errors.Is(wrapped, ErrNotFound) {
		t.Fatalf("expected wrapped error to match its kind")
	}
	if errors.Is(wrapped, ErrConflict) {
		t.Fatalf("did not expect a conflict match")
	}
	if got := KindOf(wrapped); got != ErrNotFound {
		t.Fatalf("expected kind ErrNotFound, got %v", got)
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(ErrUpstreamNotification, "outbox: deliver", cause)

	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be reachable")
	}
	if err.Error() != "outbox: deliver: connection refused" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if KindOf(errors.New("plain")) != nil {
		t.Fatalf("expected no kind for a plain error")
	}
}
