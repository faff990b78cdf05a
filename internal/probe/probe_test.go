package probe

import (
	"context"
	"runtime"
	"testing"
	"time"
)

func TestCollectReturnsWellFormedSample(t *testing.T) {
	p := NewDefaultProbe(nil)
	defer p.Close()

	s, err := p.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect() error = %v, want nil (P1: bounded-time, no hard failure)", err)
	}
	if s.Timestamp == 0 {
		t.Fatal("Timestamp must be set")
	}
	if !s.HeapInvariantOK() {
		t.Fatalf("heap invariant violated: used=%d total=%d limit=%d", s.Heap.Used, s.Heap.Total, s.Heap.Limit)
	}
	if s.OS.CPUs <= 0 {
		t.Fatal("OS.CPUs should reflect runtime.NumCPU()")
	}
}

func TestCollectToleratesRepeatedCalls(t *testing.T) {
	p := NewDefaultProbe(nil)
	defer p.Close()

	for i := 0; i < 3; i++ {
		if _, err := p.Collect(context.Background()); err != nil {
			t.Fatalf("Collect() call %d error = %v", i, err)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestDrainGCEventsNoOpWithoutActivity(t *testing.T) {
	p := NewDefaultProbe(nil)
	defer p.Close()

	events := p.drainGCEvents(runtime.MemStats{})
	if events != nil {
		t.Fatalf("expected no GC events on first read with zero NumGC, got %v", events)
	}
}
