package resilience

import (
	"errors"
	"testing"
	"time"
)

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	clock := newManualClock()
	b := NewCircuitBreaker("s5", CircuitBreakerConfig{
		FailureThreshold: 3,
		ResetTimeout:     100 * time.Millisecond,
		MonitorWindow:    time.Second,
	}, clock)

	boom := errors.New("boom")
	for i := 0; i < 3; i++ {
		if err := b.Call(func() error { return boom }); err != boom {
			t.Fatalf("attempt %d: got %v, want boom", i, err)
		}
	}
	if got := b.State(); got != Open {
		t.Fatalf("state after 3 failures = %v, want Open", got)
	}

	invoked := false
	err := b.Call(func() error { invoked = true; return nil })
	if invoked {
		t.Fatal("body must not run while breaker is open")
	}
	if err == nil {
		t.Fatal("expected state error while open")
	}

	clock.Advance(100 * time.Millisecond)
	invoked = false
	if err := b.Call(func() error { invoked = true; return nil }); err != nil {
		t.Fatalf("half-open probe failed: %v", err)
	}
	if !invoked {
		t.Fatal("half-open probe should invoke body exactly once")
	}
	if got := b.State(); got != Closed {
		t.Fatalf("state after successful probe = %v, want Closed", got)
	}
}

func TestCircuitBreakerRejectsConcurrentHalfOpenProbe(t *testing.T) {
	clock := newManualClock()
	b := NewCircuitBreaker("x", CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     time.Second,
		MonitorWindow:    time.Minute,
	}, clock)
	_ = b.Call(func() error { return errors.New("fail") })
	clock.Advance(time.Second)

	if !b.admit() {
		t.Fatal("first half-open admit should succeed")
	}
	if b.admit() {
		t.Fatal("second concurrent half-open admit must be rejected")
	}
}

func TestCircuitBreakerEvictsStaleFailures(t *testing.T) {
	clock := newManualClock()
	b := NewCircuitBreaker("y", CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     time.Second,
		MonitorWindow:    50 * time.Millisecond,
	}, clock)

	boom := errors.New("boom")
	_ = b.Call(func() error { return boom })
	clock.Advance(100 * time.Millisecond) // older failure falls outside window
	_ = b.Call(func() error { return boom })

	if got := b.State(); got != Closed {
		t.Fatalf("state = %v, want Closed (stale failure should not count)", got)
	}
}
