package detector

import (
	"testing"
	"time"

	"github.com/dmitriimaksimovdevelop/memguard/internal/model"
	"github.com/dmitriimaksimovdevelop/memguard/internal/resilience"
)

// manualClock is a minimal resilience.Clock double; the Detector never
// arms timers, so it only needs Now() to advance deterministically.
type manualClock struct{ now time.Time }

func (c *manualClock) Now() time.Time        { return c.now }
func (c *manualClock) Sleep(d time.Duration) { c.now = c.now.Add(d) }
func (c *manualClock) AfterFunc(d time.Duration, f func()) resilience.Timer {
	return nil
}

func sampleAt(heapUsed uint64, ts int64) model.Sample {
	return model.Sample{
		Timestamp: ts,
		Heap:      model.HeapStats{Used: heapUsed, Total: heapUsed * 2, Limit: heapUsed * 10},
	}
}

func TestBaselinePromotesOnceAtSampleCount(t *testing.T) {
	clk := &manualClock{now: time.Unix(0, 0)}
	d := New(Config{BaselineDuration: 10 * time.Second, BaselineSamples: 10, Sensitivity: "medium"}, clk)

	const heap = 100 * 1024 * 1024
	var lastEvent Event
	gotBaseline := 0
	for i := 0; i < 10; i++ {
		d.Observe(sampleAt(heap, clk.Now().UnixMilli()))
		clk.now = clk.now.Add(time.Second)
		select {
		case ev := <-d.Events():
			lastEvent = ev
			if ev.Type == "baseline-established" {
				gotBaseline++
			}
		default:
		}
	}

	if gotBaseline != 1 {
		t.Fatalf("baseline-established fired %d times, want exactly 1", gotBaseline)
	}
	if !d.Established() {
		t.Fatal("expected baseline to be established")
	}
	b := d.Baseline()
	if b == nil {
		t.Fatal("Baseline() returned nil after establishment")
	}
	if b.AvgHeapSize != heap {
		t.Fatalf("AvgHeapSize = %v, want %v", b.AvgHeapSize, float64(heap))
	}
	if b.StdDevHeapSize > 1 {
		t.Fatalf("StdDevHeapSize = %v, want ~0 for identical samples", b.StdDevHeapSize)
	}
	_ = lastEvent
}

func TestRapidGrowthEmitsLeakAtHighSensitivity(t *testing.T) {
	clk := &manualClock{now: time.Unix(0, 0)}
	d := New(Config{BaselineDuration: time.Second, BaselineSamples: 5, GrowthThreshold: 0.1, Sensitivity: "high"}, clk)

	const baselineHeap = 100 * 1024 * 1024
	for i := 0; i < 5; i++ {
		d.Observe(sampleAt(baselineHeap, clk.Now().UnixMilli()))
		clk.now = clk.now.Add(time.Second)
	}
	// drain baseline-established
	<-d.Events()

	verdict := d.Observe(sampleAt(115*1024*1024, clk.Now().UnixMilli()))
	if verdict == nil {
		t.Fatal("expected a verdict for a 15% heap jump past baseline")
	}
	found := false
	for _, f := range verdict.Factors {
		if f == model.FactorRapidGrowth {
			found = true
		}
	}
	if !found {
		t.Fatalf("Factors = %v, want rapid-growth present", verdict.Factors)
	}

	select {
	case ev := <-d.Events():
		if ev.Type != "leak" {
			t.Fatalf("event type = %q, want leak at high sensitivity", ev.Type)
		}
	default:
		t.Fatal("expected a leak event")
	}
}

func TestNoVerdictBeforeBaselinePromotion(t *testing.T) {
	clk := &manualClock{now: time.Unix(0, 0)}
	d := New(Config{BaselineDuration: time.Hour, BaselineSamples: 100, Sensitivity: "high"}, clk)

	v := d.Observe(sampleAt(900*1024*1024, clk.Now().UnixMilli()))
	if v != nil {
		t.Fatal("P4: no leak/warning verdict should be possible before baseline promotion")
	}
}

func TestSteadyGrowthEdgeCaseTooFewSamples(t *testing.T) {
	values := []float64{1, 2, 3}
	if _, _, ok := steadyGrowth(values); ok {
		t.Fatal("expected no finding for fewer than 5 samples")
	}
}

func TestSteadyGrowthIdenticalValuesIsStableNoFinding(t *testing.T) {
	values := []float64{100, 100, 100, 100, 100, 100}
	slope, rsq, ok := steadyGrowth(values)
	if ok {
		t.Fatalf("expected no finding for identical values, got slope=%v rsq=%v", slope, rsq)
	}
}
