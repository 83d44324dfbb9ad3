package queue

import (
	"errors"
	"fmt"
	"testing"
)

func TestFatalMarking(t *testing.T) {
	base := errors.New("source gone")

	if !IsFatal(Fatal(base)) {
		t.Fatalf("Fatal(err) must be fatal")
	}
	if IsFatal(base) {
		t.Fatalf("plain error must not be fatal")
	}
	if IsFatal(nil) {
		t.Fatalf("nil must not be fatal")
	}
	if Fatal(nil) != nil {
		t.Fatalf("Fatal(nil) must stay nil")
	}

	wrapped := fmt.Errorf("job failed: %w", Fatal(base))
	if !IsFatal(wrapped) {
		t.Fatalf("fatal marker must survive wrapping")
	}
	if !errors.Is(wrapped, base) {
		t.Fatalf("underlying error must stay reachable")
	}
}
