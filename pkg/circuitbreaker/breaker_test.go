package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestOpensAfterConsecutiveFailures(t *testing.T) {
	cb := New("test", Config{FailureThreshold: 3, Timeout: time.Minute})
	boom := errors.New("boom")

	for i := 0; i < 3; i++ {
		if err := cb.Execute(context.Background(), func() error { return boom }); !errors.Is(err, boom) {
			t.Fatalf("attempt %d: got %v, want boom", i, err)
		}
	}

	if got := cb.State(); got != StateOpen {
		t.Fatalf("state = %v, want open", got)
	}

	err := cb.Execute(context.Background(), func() error { return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("got %v, want ErrCircuitOpen", err)
	}
}

func TestHalfOpenRecovers(t *testing.T) {
	cb := New("test", Config{FailureThreshold: 1, SuccessThreshold: 1, Timeout: 10 * time.Millisecond})

	cb.Execute(context.Background(), func() error { return errors.New("boom") })
	if got := cb.State(); got != StateOpen {
		t.Fatalf("state = %v, want open", got)
	}

	time.Sleep(20 * time.Millisecond)

	if err := cb.Execute(context.Background(), func() error { return nil }); err != nil {
		t.Fatalf("half-open probe failed: %v", err)
	}
	if got := cb.State(); got != StateClosed {
		t.Fatalf("state = %v, want closed", got)
	}
}

func TestSuccessKeepsCircuitClosed(t *testing.T) {
	cb := New("test", Config{FailureThreshold: 2})

	for i := 0; i < 10; i++ {
		if err := cb.Execute(context.Background(), func() error { return nil }); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if got := cb.State(); got != StateClosed {
		t.Fatalf("state = %v, want closed", got)
	}
}
