package optimizer

import (
	"sync"
	"time"

	"github.com/dmitriimaksimovdevelop/memguard/internal/resilience"
)

// CacheConfig bounds the Cache of §4.3.4.
type CacheConfig struct {
	MaxEntries int
	TTL        time.Duration
}

type cacheEntry struct {
	value      any
	priority   Priority
	expiresAt  time.Time
	lastAccess time.Time
}

// Cache is a bounded, TTL-expiring, priority-aware cache for expensive
// derived results (baseline stats, last analysis, hotspot snapshots), held
// by the Supervisor so repeated reads within a window don't re-trigger
// computation. Eviction on overflow drops the lowest-priority entry,
// breaking ties by oldest last-access (§4.3.4).
type Cache struct {
	cfg   CacheConfig
	clock resilience.Clock

	mu      sync.Mutex
	entries map[string]*cacheEntry
}

// NewCache constructs a Cache with the given bounds.
func NewCache(cfg CacheConfig, clock resilience.Clock) *Cache {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 128
	}
	if clock == nil {
		clock = resilience.RealClock
	}
	return &Cache{
		cfg:     cfg,
		clock:   clock,
		entries: make(map[string]*cacheEntry),
	}
}

// Get returns the cached value for key if present and unexpired.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	now := c.clock.Now()
	if now.After(e.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	e.lastAccess = now
	return e.value, true
}

// Set stores value under key with the given priority, expiring after the
// configured TTL. If the cache is at MaxEntries, the lowest-priority,
// least-recently-accessed entry is evicted first.
func (c *Cache) Set(key string, value any, priority Priority) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.cfg.MaxEntries {
		c.evictLocked()
	}
	c.entries[key] = &cacheEntry{
		value:      value,
		priority:   priority,
		expiresAt:  now.Add(c.cfg.TTL),
		lastAccess: now,
	}
}

func (c *Cache) evictLocked() {
	var victim string
	var victimEntry *cacheEntry
	for k, e := range c.entries {
		if victimEntry == nil ||
			e.priority < victimEntry.priority ||
			(e.priority == victimEntry.priority && e.lastAccess.Before(victimEntry.lastAccess)) {
			victim, victimEntry = k, e
		}
	}
	if victimEntry != nil {
		delete(c.entries, victim)
	}
}

// Invalidate removes key from the cache, if present.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len reports the number of stored entries, including expired ones that no
// Get has removed yet.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
