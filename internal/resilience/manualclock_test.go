package resilience

import (
	"sort"
	"sync"
	"time"
)

// manualClock is a Clock test double driven entirely by Advance, grounded
// on ariadne's Clock testability seam (engine/ratelimit.Clock) — tests
// never sleep for real.
type manualClock struct {
	mu      sync.Mutex
	now     time.Time
	pending []pendingTimer
	seq     int
}

type pendingTimer struct {
	at  time.Time
	seq int
	f   func()
	id  *manualTimer
}

type manualTimer struct {
	cancelled bool
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Unix(0, 0)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Sleep(d time.Duration) {
	c.Advance(d)
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{}
	c.seq++
	c.pending = append(c.pending, pendingTimer{at: c.now.Add(d), seq: c.seq, f: f, id: t})
	return t
}

func (t *manualTimer) Stop() bool {
	t.cancelled = true
	return true
}

// Advance moves the clock forward by d, firing any timers whose deadline
// has elapsed, in deadline order.
func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	due := c.dueLocked()
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool {
		if due[i].at.Equal(due[j].at) {
			return due[i].seq < due[j].seq
		}
		return due[i].at.Before(due[j].at)
	})
	for _, p := range due {
		if !p.id.cancelled {
			p.f()
		}
	}
}

func (c *manualClock) dueLocked() []pendingTimer {
	var due, rest []pendingTimer
	for _, p := range c.pending {
		if !p.at.After(c.now) {
			due = append(due, p)
		} else {
			rest = append(rest, p)
		}
	}
	c.pending = rest
	return due
}
