package observer

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Overhead captures memguard's own resource consumption since the last
// SnapshotBefore call, surfaced on agent.Health so an operator can see
// what running the agent costs relative to the process it watches.
type Overhead struct {
	SelfPID         int   `json:"selfPid"`
	CPUUserMs       int64 `json:"cpuUserMs"`
	CPUSystemMs     int64 `json:"cpuSystemMs"`
	MemoryRSSBytes  int64 `json:"memoryRssBytes"`
	ContextSwitches int64 `json:"contextSwitches"`
}

// procSnapshot holds raw values read from /proc/[pid]/stat and
// /proc/[pid]/status.
type procSnapshot struct {
	utime          uint64 // clock ticks
	stime          uint64
	rss            int64 // pages
	voluntaryCtxSw int64
	nonvolCtxSw    int64
}

// SnapshotBefore records the tracker's current resource usage. Call this
// once before the heartbeat loop starts computing deltas.
func (t *SelfTracker) SnapshotBefore() {
	snap := readProcSnapshot(t.selfPID)
	t.before = &snap
}

// SnapshotAfter reads current resource usage and returns the delta since
// SnapshotBefore (or since the tracker's creation, if SnapshotBefore was
// never called — in which case CPU/context-switch fields read zero since
// there is no baseline to diff against).
func (t *SelfTracker) SnapshotAfter() Overhead {
	o := Overhead{SelfPID: t.selfPID}
	if t.before == nil {
		return o
	}

	now := readProcSnapshot(t.selfPID)
	o.CPUUserMs = ticksToMs(now.utime - t.before.utime)
	o.CPUSystemMs = ticksToMs(now.stime - t.before.stime)
	o.MemoryRSSBytes = now.rss * 4096
	o.ContextSwitches = (now.voluntaryCtxSw - t.before.voluntaryCtxSw) +
		(now.nonvolCtxSw - t.before.nonvolCtxSw)
	return o
}

// ticksToMs converts clock ticks (typically 100 Hz) to milliseconds.
func ticksToMs(ticks uint64) int64 {
	return int64(ticks) * 10
}

// readProcSnapshot reads /proc/[pid]/stat and /proc/[pid]/status for pid.
// Returns zero values if the process can't be read (e.g. non-Linux, or a
// permission error) — self-overhead accounting is best-effort and must
// never block or fail metric collection.
func readProcSnapshot(pid int) procSnapshot {
	var snap procSnapshot

	statData, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return snap
	}
	snap = parseProcStat(string(statData))

	statusData, err := os.ReadFile(fmt.Sprintf("/proc/%d/status", pid))
	if err != nil {
		return snap
	}
	snap.voluntaryCtxSw, snap.nonvolCtxSw = parseProcStatus(string(statusData))

	return snap
}

// parseProcStat extracts utime, stime, rss from /proc/[pid]/stat content.
func parseProcStat(content string) procSnapshot {
	var snap procSnapshot

	commEnd := strings.LastIndex(content, ")")
	if commEnd < 0 || commEnd+2 >= len(content) {
		return snap
	}

	fields := strings.Fields(content[commEnd+2:])
	// fields[0]=state, fields[11]=utime, fields[12]=stime, fields[21]=rss
	if len(fields) > 12 {
		snap.utime, _ = strconv.ParseUint(fields[11], 10, 64)
		snap.stime, _ = strconv.ParseUint(fields[12], 10, 64)
	}
	if len(fields) > 21 {
		snap.rss, _ = strconv.ParseInt(fields[21], 10, 64)
	}

	return snap
}

// parseProcStatus extracts voluntary/nonvoluntary context switches from
// /proc/[pid]/status.
func parseProcStatus(content string) (voluntary, nonvoluntary int64) {
	for _, line := range strings.Split(content, "\n") {
		fields := strings.SplitN(line, ":\t", 2)
		if len(fields) != 2 {
			continue
		}
		val, _ := strconv.ParseInt(strings.TrimSpace(fields[1]), 10, 64)
		switch fields[0] {
		case "voluntary_ctxt_switches":
			voluntary = val
		case "nonvoluntary_ctxt_switches":
			nonvoluntary = val
		}
	}
	return
}
