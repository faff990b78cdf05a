package resilience

import (
	"sync"
	"time"

	"github.com/dmitriimaksimovdevelop/memguard/internal/agenterr"
)

// State is one of the three circuit-breaker states (§4.2).
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case HalfOpen:
		return "half_open"
	case Open:
		return "open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig holds the three tunables named in §4.2.
type CircuitBreakerConfig struct {
	FailureThreshold int
	ResetTimeout     time.Duration
	MonitorWindow    time.Duration
}

// CircuitBreaker implements the CLOSED/OPEN/HALF_OPEN state machine of
// §4.2 and P9: after FailureThreshold failures inside MonitorWindow, calls
// are rejected fast until ResetTimeout elapses, at which point exactly one
// probe call is admitted in HALF_OPEN.
type CircuitBreaker struct {
	name   string
	cfg    CircuitBreakerConfig
	clock  Clock

	mu          sync.Mutex
	state       State
	failures    []time.Time
	nextAttempt time.Time
	halfOpenBusy bool
}

// NewCircuitBreaker constructs a breaker in the CLOSED state.
func NewCircuitBreaker(name string, cfg CircuitBreakerConfig, clock Clock) *CircuitBreaker {
	if clock == nil {
		clock = RealClock
	}
	return &CircuitBreaker{name: name, cfg: cfg, clock: clock, state: Closed}
}

// State returns the breaker's current state.
func (b *CircuitBreaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Name returns the breaker's identifying name, used as a label in
// telemetry and in the Supervisor's health snapshot.
func (b *CircuitBreaker) Name() string { return b.name }

// errBreakerOpenCode is the code of the state error Call returns when the
// breaker is OPEN, or when a HALF_OPEN probe is already in flight.
var errBreakerOpenCode = "CIRCUIT_OPEN"

// Call runs fn if the breaker admits it; otherwise returns a state error
// without invoking fn.
func (b *CircuitBreaker) Call(fn func() error) error {
	if !b.admit() {
		return agenterr.State(errBreakerOpenCode, "circuit breaker "+b.name+" is open", nil)
	}
	err := fn()
	b.report(err)
	return err
}

// admit decides whether a call may proceed, transitioning OPEN->HALF_OPEN
// when the reset timeout has elapsed and reserving the single HALF_OPEN
// slot so concurrent callers are rejected (§4.2).
func (b *CircuitBreaker) admit() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock.Now()
	switch b.state {
	case Closed:
		return true
	case Open:
		if now.Before(b.nextAttempt) {
			return false
		}
		b.state = HalfOpen
		b.halfOpenBusy = true
		return true
	case HalfOpen:
		if b.halfOpenBusy {
			return false
		}
		b.halfOpenBusy = true
		return true
	default:
		return false
	}
}

// report records the outcome of an admitted call.
func (b *CircuitBreaker) report(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == HalfOpen {
		b.halfOpenBusy = false
		if err == nil {
			b.state = Closed
			b.failures = nil
			return
		}
		b.state = Open
		b.nextAttempt = b.clock.Now().Add(b.cfg.ResetTimeout)
		return
	}

	if err == nil {
		return
	}

	now := b.clock.Now()
	b.evictStale(now)
	b.failures = append(b.failures, now)
	if len(b.failures) >= b.cfg.FailureThreshold {
		b.state = Open
		b.nextAttempt = now.Add(b.cfg.ResetTimeout)
	}
}

// evictStale drops failures older than MonitorWindow from the trailing
// window, per §4.2: "failures older than monitorWindowMs are evicted from
// the trailing window on every failure."
func (b *CircuitBreaker) evictStale(now time.Time) {
	cutoff := now.Add(-b.cfg.MonitorWindow)
	kept := b.failures[:0]
	for _, t := range b.failures {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	b.failures = kept
}
