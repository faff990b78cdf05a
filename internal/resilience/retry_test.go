package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryManagerBackoffAndPropagation(t *testing.T) {
	clock := newManualClock()
	rm := NewRetryManager(RetryConfig{
		MaxRetries:    3,
		BaseDelay:     10 * time.Millisecond,
		MaxDelay:      100 * time.Millisecond,
		BackoffFactor: 2,
	}, clock)

	attempts := 0
	retryableErr := errors.New("connection reset")

	// manualClock.Sleep advances the clock synchronously and returns
	// immediately, so Do can run on this goroutine directly.
	err := rm.Do(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return retryableErr
		}
		return nil
	})

	if err != nil {
		t.Fatalf("Do() = %v, want nil after eventual success", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestRetryManagerPropagatesLastErrorUnchanged(t *testing.T) {
	rm := NewRetryManager(RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}, newManualClock())
	sentinel := errors.New("network unreachable")
	attempts := 0
	err := rm.Do(context.Background(), func() error {
		attempts++
		return sentinel
	})
	if err != sentinel {
		t.Fatalf("Do() = %v, want sentinel error unchanged", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3 (1 + 2 retries)", attempts)
	}
}

func TestRetryManagerDoesNotRetryNonRetryable(t *testing.T) {
	rm := NewRetryManager(RetryConfig{MaxRetries: 5, BaseDelay: time.Millisecond}, newManualClock())
	attempts := 0
	err := rm.Do(context.Background(), func() error {
		attempts++
		return errors.New("invalid argument")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1 (non-retryable errors stop immediately)", attempts)
	}
}

func TestIsRetryableMatchesNamedCode(t *testing.T) {
	rm := NewRetryManager(RetryConfig{RetryableClasses: []string{"RATE_LIMITED"}}, newManualClock())
	if !rm.IsRetryable(codedErr{"RATE_LIMITED"}) {
		t.Fatal("expected coded error to be retryable")
	}
	if rm.IsRetryable(codedErr{"OTHER"}) {
		t.Fatal("unrelated code must not be retryable")
	}
}

type codedErr struct{ code string }

func (c codedErr) Error() string    { return "coded error" }
func (c codedErr) RetryCode() string { return c.code }
