// Package hotspot implements the Hotspot Analyzer (§4.5): it is handed each
// new sample, retains it in a short ring, and runs four analyses
// over the retained window, upserting persistent Hotspot records keyed by
// a type-specific subject.
package hotspot

import (
	"fmt"
	"sync"
	"time"

	"github.com/dmitriimaksimovdevelop/memguard/internal/model"
	"github.com/dmitriimaksimovdevelop/memguard/internal/resilience"
	"github.com/dmitriimaksimovdevelop/memguard/internal/ring"
)

const retainedWindow = 10

// Thresholds configures the four analyses.
type Thresholds struct {
	Growth    float64 // fraction, e.g. 0.2 for 20% growth
	Size      uint64  // minimum space/region size to consider for object-growth
	Frequency int     // occurrences within the window to trip allocation-pattern
}

// Config holds the Analyzer's tunables.
type Config struct {
	Thresholds      Thresholds
	RetentionPeriod time.Duration
}

// Event is published on upsert, expiry, and explicit resolution.
type Event struct {
	Type    string // hotspot-detected | hotspot-expired | hotspot-resolved
	Hotspot model.Hotspot
}

// Analyzer owns the hotspots map exclusively; per §5 it is single-owner
// and only ever mutated by the task driving Observe/Sweep.
type Analyzer struct {
	cfg   Config
	clock resilience.Clock

	mu       sync.Mutex
	ring     *ring.Ring[model.Sample]
	hotspots map[string]*model.Hotspot
	events   chan Event
}

// New constructs an Analyzer.
func New(cfg Config, clock resilience.Clock) *Analyzer {
	if clock == nil {
		clock = resilience.RealClock
	}
	return &Analyzer{
		cfg:      cfg,
		clock:    clock,
		ring:     ring.New[model.Sample](retainedWindow),
		hotspots: make(map[string]*model.Hotspot),
		events:   make(chan Event, 32),
	}
}

// Events returns the channel hotspot lifecycle notifications publish on.
func (a *Analyzer) Events() <-chan Event { return a.events }

func (a *Analyzer) emit(ev Event) {
	select {
	case a.events <- ev:
	default:
	}
}

// Observe pushes s into the retained ring and runs all four analyses.
func (a *Analyzer) Observe(s model.Sample) {
	a.mu.Lock()
	a.ring.Push(s)
	window := a.ring.ToArray()
	a.mu.Unlock()

	a.analyzeMemoryGrowth(window)
	a.analyzeObjectGrowth(window)
	a.analyzeHeapSpacePressure(window)
	a.analyzeAllocationPattern(window)
}

func (a *Analyzer) analyzeMemoryGrowth(window []model.Sample) {
	if len(window) < 2 {
		return
	}
	first, latest := window[0], window[len(window)-1]
	if first.Heap.Used == 0 {
		return
	}
	growth := (float64(latest.Heap.Used) - float64(first.Heap.Used)) / float64(first.Heap.Used)
	if growth > a.cfg.Thresholds.Growth {
		a.upsert("memory-growth", model.HotspotMemoryGrowth, model.SeverityHigh,
			map[string]any{"growth": growth, "firstUsed": first.Heap.Used, "latestUsed": latest.Heap.Used},
			[]string{"Overall heap usage has grown significantly across the retained window; capture a snapshot for further analysis."})
	}
}

// analyzeObjectGrowth treats each named heap space as the closest Go
// analogue of a tracked "object type" (Go's runtime does not expose
// per-type allocation breakdowns the way V8 or the JVM do), comparing a
// space's Used size against its value one sample back.
func (a *Analyzer) analyzeObjectGrowth(window []model.Sample) {
	if len(window) < 2 {
		return
	}
	prev, latest := window[len(window)-2], window[len(window)-1]
	prevByName := make(map[string]uint64, len(prev.Heap.Spaces))
	for _, sp := range prev.Heap.Spaces {
		prevByName[sp.Name] = sp.Used
	}
	for _, sp := range latest.Heap.Spaces {
		if sp.Size < a.cfg.Thresholds.Size {
			continue
		}
		prevUsed, ok := prevByName[sp.Name]
		if !ok || prevUsed == 0 {
			continue
		}
		growth := (float64(sp.Used) - float64(prevUsed)) / float64(prevUsed)
		if growth > a.cfg.Thresholds.Growth {
			id := "object-" + sp.Name
			a.upsert(id, model.HotspotObjectGrowth, model.SeverityMedium,
				map[string]any{"space": sp.Name, "growth": growth},
				[]string{fmt.Sprintf("The %q region is growing faster than the configured threshold; review allocations in that region.", sp.Name)})
		}
	}
}

func (a *Analyzer) analyzeHeapSpacePressure(window []model.Sample) {
	if len(window) == 0 {
		return
	}
	latest := window[len(window)-1]
	for _, sp := range latest.Heap.Spaces {
		if sp.Size == 0 {
			continue
		}
		ratio := float64(sp.Used) / float64(sp.Size)
		if ratio > 0.8 {
			id := "heap-space-" + sp.Name
			a.upsert(id, model.HotspotHeapSpacePressure, model.SeverityHigh,
				map[string]any{"space": sp.Name, "ratio": ratio},
				[]string{fmt.Sprintf("Heap space %q is over 80%% utilized; consider increasing its size budget or reducing retained data.", sp.Name)})
		}
	}
}

func (a *Analyzer) analyzeAllocationPattern(window []model.Sample) {
	if len(window) == 0 {
		return
	}
	counts := make(map[string]int)
	var latestKey string
	for _, s := range window {
		key := patternKey(s)
		counts[key]++
		latestKey = key
	}
	if counts[latestKey] >= a.cfg.Thresholds.Frequency && a.cfg.Thresholds.Frequency > 0 {
		id := "pattern-" + latestKey
		a.upsert(id, model.HotspotAllocationPattern, model.SeverityMedium,
			map[string]any{"pattern": latestKey, "occurrences": counts[latestKey]},
			[]string{"A recurring allocation pattern has been observed repeatedly; consider pooling or reuse for the dominant allocation shape."})
	}
}

func patternKey(s model.Sample) string {
	usedBucket := bucket(ratio(s.Heap.Used, s.Heap.Total))
	rssBucket := bucket(ratio(s.Heap.Used, s.OS.TotalMem))
	return fmt.Sprintf("%d-%d", usedBucket, rssBucket)
}

func ratio(a, b uint64) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}

// bucket quantizes a [0,1] ratio into one of four coarse bands.
func bucket(r float64) int {
	switch {
	case r < 0.25:
		return 0
	case r < 0.5:
		return 1
	case r < 0.75:
		return 2
	default:
		return 3
	}
}

// upsert inserts a new hotspot or updates an existing one in place,
// relaxing severity upward only, per §4.5.
func (a *Analyzer) upsert(id string, typ model.HotspotType, sev model.Severity, details map[string]any, recs []string) {
	a.mu.Lock()
	now := a.clock.Now()
	h, exists := a.hotspots[id]
	if !exists {
		h = &model.Hotspot{
			ID:              id,
			Type:            typ,
			Severity:        sev,
			FirstSeen:       now,
			LastSeen:        now,
			Occurrences:     1,
			Subject:         id,
			Details:         details,
			Recommendations: recs,
		}
		a.hotspots[id] = h
	} else {
		h.Occurrences++
		h.LastSeen = now
		h.Details = details
		h.RelaxUpdateSeverity(sev)
	}
	snapshot := *h
	a.mu.Unlock()

	a.emit(Event{Type: "hotspot-detected", Hotspot: snapshot})
}

// Sweep expires any hotspot whose LastSeen predates RetentionPeriod,
// emitting hotspot-expired for each. The Supervisor runs it from its
// monitor loop, on a tick of its own rather than after each Observe.
func (a *Analyzer) Sweep() {
	a.mu.Lock()
	now := a.clock.Now()
	var expired []model.Hotspot
	for id, h := range a.hotspots {
		if now.Sub(h.LastSeen) > a.cfg.RetentionPeriod {
			expired = append(expired, *h)
			delete(a.hotspots, id)
		}
	}
	a.mu.Unlock()

	for _, h := range expired {
		a.emit(Event{Type: "hotspot-expired", Hotspot: h})
	}
}

// ResolveHotspot marks id resolved and removes it from the active map.
func (a *Analyzer) ResolveHotspot(id string) (model.Hotspot, bool) {
	a.mu.Lock()
	h, ok := a.hotspots[id]
	if !ok {
		a.mu.Unlock()
		return model.Hotspot{}, false
	}
	now := a.clock.Now()
	h.Resolved = true
	h.ResolvedAt = now
	snapshot := *h
	delete(a.hotspots, id)
	a.mu.Unlock()

	a.emit(Event{Type: "hotspot-resolved", Hotspot: snapshot})
	return snapshot, true
}

// Active returns a snapshot of all currently tracked hotspots.
func (a *Analyzer) Active() []model.Hotspot {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]model.Hotspot, 0, len(a.hotspots))
	for _, h := range a.hotspots {
		out = append(out, *h)
	}
	return out
}
