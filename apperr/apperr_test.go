package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOfWrapped(t *testing.T) {
	base := Unavailable("customers", "u1", errors.New("timeout"))
	wrapped := fmt.Errorf("resolve: %w", base)

	if got := KindOf(wrapped); got != SourceUnavailable {
		t.Fatalf("expected %s, got %s", SourceUnavailable, got)
	}
	if !Is(wrapped, SourceUnavailable) {
		t.Fatalf("expected Is to match wrapped kind")
	}
	if Is(nil, SourceUnavailable) {
		t.Fatalf("expected nil error to match no kind")
	}
	if got := KindOf(errors.New("plain")); got != "" {
		t.Fatalf("expected empty kind for plain error, got %s", got)
	}
}

func TestErrorMessage(t *testing.T) {
	err := Unavailable("distributions", "c9", errors.New("conn reset"))
	want := "source_unavailable: distributions (owner c9): conn reset"
	if err.Error() != want {
		t.Fatalf("expected %q, got %q", want, err.Error())
	}
	if !errors.Is(err, err.Err) {
		t.Fatalf("expected Unwrap to expose cause")
	}
}
