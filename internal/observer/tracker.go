// Package observer tracks memguard's own resource consumption so the
// Agent Supervisor's health heartbeat can report what the agent itself
// costs alongside the metrics it collects.
package observer

import "os"

// SelfTracker is a thread-safe handle on memguard's own PID, used to
// read /proc/[pid] snapshots for overhead accounting.
type SelfTracker struct {
	selfPID int
	before  *procSnapshot
}

// NewSelfTracker creates a SelfTracker seeded with the current process PID.
func NewSelfTracker() *SelfTracker {
	return &SelfTracker{selfPID: os.Getpid()}
}

// SelfPID returns memguard's own process ID.
func (t *SelfTracker) SelfPID() int { return t.selfPID }
