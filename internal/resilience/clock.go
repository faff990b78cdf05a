// Package resilience implements the primitives shared by every scheduled
// or failure-prone operation in the agent: a CircuitBreaker state machine,
// a RetryManager with exponential backoff, and a SafeTimer that re-arms
// itself through panics (§4.2).
package resilience

import "time"

// Clock abstracts time so CircuitBreaker/RetryManager/SafeTimer tests can
// drive timeouts deterministically instead of sleeping — the testability
// seam the circuit-breaker and escalation-timing logic need.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is the minimal handle resilience code needs from a scheduled
// callback: the ability to cancel it.
type Timer interface {
	Stop() bool
}

// realClock is the production Clock, backed by the time package.
type realClock struct{}

// RealClock is the default, wall-clock-backed Clock.
var RealClock Clock = realClock{}

func (realClock) Now() time.Time { return time.Now() }
func (realClock) Sleep(d time.Duration) { time.Sleep(d) }
func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
