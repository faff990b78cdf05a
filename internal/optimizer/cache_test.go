package optimizer

import (
	"testing"
	"time"

	"github.com/dmitriimaksimovdevelop/memguard/internal/resilience"
)

func TestCacheExpiresAfterTTL(t *testing.T) {
	clk := newFakeClock(time.Unix(0, 0))
	c := NewCache(CacheConfig{MaxEntries: 4, TTL: time.Minute}, clk)

	c.Set("k", 42, PriorityNormal)
	if v, ok := c.Get("k"); !ok || v.(int) != 42 {
		t.Fatalf("Get() = %v, %v, want 42, true", v, ok)
	}

	clk.advance(61 * time.Second)
	if _, ok := c.Get("k"); ok {
		t.Fatal("expected entry to have expired")
	}
}

func TestCacheEvictsLowestPriorityOnOverflow(t *testing.T) {
	clk := newFakeClock(time.Unix(0, 0))
	c := NewCache(CacheConfig{MaxEntries: 2, TTL: time.Hour}, clk)

	c.Set("low", 1, PriorityLow)
	clk.advance(time.Second)
	c.Set("high", 2, PriorityHigh)
	clk.advance(time.Second)
	c.Set("critical", 3, PriorityCritical)

	if _, ok := c.Get("low"); ok {
		t.Fatal("expected lowest-priority entry to be evicted")
	}
	if _, ok := c.Get("high"); !ok {
		t.Fatal("expected high-priority entry to survive")
	}
	if _, ok := c.Get("critical"); !ok {
		t.Fatal("expected newly inserted entry to survive")
	}
}

func TestCacheInvalidate(t *testing.T) {
	c := NewCache(CacheConfig{MaxEntries: 4, TTL: time.Minute}, nil)
	c.Set("k", "v", PriorityNormal)
	c.Invalidate("k")
	if _, ok := c.Get("k"); ok {
		t.Fatal("expected entry to be gone after Invalidate")
	}
}

// fakeClock is a minimal resilience.Clock double local to this package;
// the richer manualClock in internal/resilience driving AfterFunc timers
// is unexported to its own test file, so Cache's simpler Now()-only needs
// are served by this smaller stand-in instead.
type fakeClock struct {
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock { return &fakeClock{now: start} }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(d time.Duration) { c.now = c.now.Add(d) }

func (c *fakeClock) AfterFunc(d time.Duration, f func()) resilience.Timer {
	return nil
}
