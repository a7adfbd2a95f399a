package invariant

import (
	"errors"
	"testing"
)

func TestCheck_PassesSilently(t *testing.T) {
	Check(true, "never shown")
}

func TestCheck_PanicsWithViolation(t *testing.T) {
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic")
		}
		err, ok := r.(error)
		if !ok {
			t.Fatalf("expected error panic value, got %T", r)
		}
		var v Violation
		if !errors.As(err, &v) {
			t.Fatalf("expected Violation, got %v", err)
		}
		if v.Message != "balance -5 < 0" {
			t.Errorf("unexpected message %q", v.Message)
		}
	}()
	Check(false, "balance %d < 0", -5)
}
