// Package model defines the data shapes shared by every memguard subsystem:
// the Sample the Probe produces, the Baseline the Detector derives from it,
// and the verdicts, hotspots, alerts and stream events downstream components
// emit. Types here carry JSON tags because every one of them is also a
// stream-event payload (internal/stream) or an MCP tool result
// (internal/mcp).
package model

// GCType names a garbage-collection event kind. Not every runtime reports
// all of these; a binding that cannot distinguish a kind reports "unknown".
type GCType string

const (
	GCScavenge            GCType = "scavenge"
	GCMarkSweepCompact     GCType = "mark-sweep-compact"
	GCIncrementalMarking   GCType = "incremental-marking"
	GCWeakProcessing       GCType = "weak-processing"
	GCAll                  GCType = "all"
	GCUnknown              GCType = "unknown"
)

// GCEvent is one garbage-collection pass observed since the previous Sample.
type GCEvent struct {
	Type       GCType `json:"type"`
	DurationMs float64 `json:"durationMs"`
	Flags      uint64  `json:"flags"`
}

// HeapSpace is one named region of the allocator's heap (e.g. a Go size
// class arena, or a generational space in other runtimes).
type HeapSpace struct {
	Name      string `json:"name"`
	Size      uint64 `json:"size"`
	Used      uint64 `json:"used"`
	Available uint64 `json:"available"`
	Physical  uint64 `json:"physical"`
}

// HeapStats is the allocator-level view carried by a Sample.
type HeapStats struct {
	Used          uint64      `json:"used"`
	Total         uint64      `json:"total"`
	Limit         uint64      `json:"limit"`
	Available     uint64      `json:"available"`
	Physical      uint64      `json:"physical"`
	Malloced      uint64      `json:"malloced"`
	PeakMalloced  uint64      `json:"peakMalloced"`
	External      uint64      `json:"external"`
	ArrayBuffers  uint64      `json:"arrayBuffers"`
	Spaces        []HeapSpace `json:"spaces"`
}

// CPUStats is process CPU consumption since the previous Sample.
type CPUStats struct {
	UserMs  float64 `json:"userMs"`
	SystemMs float64 `json:"systemMs"`
	Percent  float64 `json:"percent"`
}

// OSStats is host-level memory and load information.
type OSStats struct {
	Platform string  `json:"platform"`
	TotalMem uint64  `json:"totalMem"`
	FreeMem  uint64  `json:"freeMem"`
	CPUs     int     `json:"cpus"`
	LoadAvg  float64 `json:"loadAvg"`
	Uptime   float64 `json:"uptime"`
	// ReclaimEvents is a bonus counter of kernel direct-reclaim events
	// observed since the previous sample, populated only on Linux hosts
	// where the optional eBPF watcher could attach; zero elsewhere.
	ReclaimEvents uint64 `json:"reclaimEvents,omitempty"`
}

// Sample is an immutable point-in-time observation produced by the Probe.
// Consumers must never mutate a Sample after it leaves collect(); the Ring
// and every downstream subsystem treat it as read-only.
type Sample struct {
	Timestamp       int64     `json:"timestamp"`
	Heap            HeapStats `json:"heap"`
	GC              []GCEvent `json:"gc"`
	EventLoopDelayMs float64  `json:"eventLoopDelayMs"`
	CPU             CPUStats  `json:"cpu"`
	OS              OSStats   `json:"os"`
}

// GCCount is the number of GC events this sample carries, used by the
// Detector's gc-pressure and saw-tooth analyses.
func (s Sample) GCCount() int {
	return len(s.GC)
}

// HeapInvariantOK reports whether used <= total <= limit, per §3 invariant 1.
// Violations are reported by callers, never panicked on.
func (s Sample) HeapInvariantOK() bool {
	return s.Heap.Used <= s.Heap.Total && s.Heap.Total <= s.Heap.Limit
}
