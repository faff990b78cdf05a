package resilience

import (
	"errors"
	"testing"
	"time"
)

func TestSafeTimerReArmsAfterError(t *testing.T) {
	clock := newManualClock()
	var errs []error
	ticks := 0

	st := NewSafeTimer(10*time.Millisecond, func() error {
		ticks++
		return errors.New("tick failed")
	}, func(err error) {
		errs = append(errs, err)
	}, clock)
	st.Start()

	clock.Advance(10 * time.Millisecond)
	clock.Advance(10 * time.Millisecond)
	clock.Advance(10 * time.Millisecond)

	if ticks != 3 {
		t.Fatalf("ticks = %d, want 3 (timer must re-arm despite errors)", ticks)
	}
	if len(errs) != 3 {
		t.Fatalf("errs = %d, want 3", len(errs))
	}
}

func TestSafeTimerReArmsAfterPanic(t *testing.T) {
	clock := newManualClock()
	var caught error

	st := NewSafeTimer(5*time.Millisecond, func() error {
		panic("boom")
	}, func(err error) {
		caught = err
	}, clock)
	st.Start()
	clock.Advance(5 * time.Millisecond)

	if caught == nil {
		t.Fatal("expected panic to be converted to an error via onError")
	}
}

func TestSafeTimerStopPreventsFurtherTicks(t *testing.T) {
	clock := newManualClock()
	ticks := 0
	st := NewSafeTimer(5*time.Millisecond, func() error {
		ticks++
		return nil
	}, nil, clock)
	st.Start()
	clock.Advance(5 * time.Millisecond)
	st.Stop()
	clock.Advance(5 * time.Millisecond)
	clock.Advance(5 * time.Millisecond)

	if ticks != 1 {
		t.Fatalf("ticks = %d, want 1 (Stop must prevent re-arming)", ticks)
	}
}
