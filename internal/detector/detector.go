// Package detector implements the Leak Detector (§4.4): a baseline phase
// that characterizes "normal" heap behavior from an initial sample window,
// followed by five independent pattern detectors run against every sample
// thereafter and accumulated into a leak probability.
package detector

import (
	"math"
	"sync"
	"time"

	"github.com/dmitriimaksimovdevelop/memguard/internal/model"
	"github.com/dmitriimaksimovdevelop/memguard/internal/resilience"
)

// Config holds the Detector's thresholds, mirroring the config.Detection
// shape the Supervisor wires in.
type Config struct {
	BaselineDuration time.Duration
	BaselineSamples  int
	GrowthThreshold  float64 // fraction, e.g. 0.1 for 10%
	GCFrequency      float64 // GCs/minute
	HeapThreshold    float64 // fraction of limit
	Sensitivity      string  // low | medium | high
}

func (c Config) sensitivityThreshold() float64 {
	switch c.Sensitivity {
	case "low":
		return 0.7
	case "high":
		return 0.3
	default:
		return 0.5
	}
}

// Event is published on baseline promotion and on every leak/warning
// verdict, mirroring the Supervisor's event fan-out (§6).
type Event struct {
	Type    string // baseline-established | leak | warning
	Verdict *model.LeakVerdict
}

// Detector establishes a Baseline exactly once (§3 invariant 2) and then
// classifies every subsequent sample against the five pattern detectors.
type Detector struct {
	cfg   Config
	clock resilience.Clock

	mu             sync.Mutex
	startTime      time.Time
	baselineBuf    []model.Sample
	baseline       *model.Baseline
	postBaseline   []model.Sample // bounded window used by steady-growth/saw-tooth/gc-pressure
	events         chan Event
}

const postBaselineWindow = 20

// New constructs a Detector. The baseline window begins on the first call
// to Observe, not on construction.
func New(cfg Config, clock resilience.Clock) *Detector {
	if clock == nil {
		clock = resilience.RealClock
	}
	if cfg.BaselineSamples <= 0 {
		cfg.BaselineSamples = 10
	}
	return &Detector{cfg: cfg, clock: clock, events: make(chan Event, 32)}
}

// Events returns the channel baseline/leak/warning notifications publish
// on.
func (d *Detector) Events() <-chan Event { return d.events }

func (d *Detector) emit(ev Event) {
	select {
	case d.events <- ev:
	default:
	}
}

// Established reports whether the baseline has been promoted.
func (d *Detector) Established() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.baseline != nil
}

// Baseline returns the established baseline, or nil if not yet promoted.
func (d *Detector) Baseline() *model.Baseline {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.baseline
}

// Observe feeds one sample through the Detector. Before baseline
// promotion it only accumulates; after promotion it runs the five
// detectors and may return a non-nil verdict (P4: never before baseline).
func (d *Detector) Observe(s model.Sample) *model.LeakVerdict {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.baseline == nil {
		if d.startTime.IsZero() {
			d.startTime = d.clock.Now()
		}
		d.baselineBuf = append(d.baselineBuf, s)

		elapsed := d.clock.Now().Sub(d.startTime)
		if elapsed >= d.cfg.BaselineDuration || len(d.baselineBuf) >= d.cfg.BaselineSamples {
			d.promoteLocked()
		}
		return nil
	}

	d.postBaseline = append(d.postBaseline, s)
	if len(d.postBaseline) > postBaselineWindow {
		d.postBaseline = d.postBaseline[len(d.postBaseline)-postBaselineWindow:]
	}

	verdict := d.classifyLocked(s)
	if verdict == nil {
		return nil
	}

	threshold := d.cfg.sensitivityThreshold()
	switch {
	// >= rather than a strict >: at high sensitivity the verdict threshold
	// (0.3) coincides with the warning floor, and a single detector's fixed
	// contribution can land exactly on it (rapid-growth alone is 0.3).
	case verdict.Probability >= threshold:
		d.emit(Event{Type: "leak", Verdict: verdict})
	case verdict.Probability > 0.3:
		d.emit(Event{Type: "warning", Verdict: verdict})
	default:
		return nil
	}
	return verdict
}

// promoteLocked computes the baseline statistics from the accumulated
// buffer and emits baseline-established exactly once.
func (d *Detector) promoteLocked() {
	n := len(d.baselineBuf)
	if n == 0 {
		return
	}
	var sum, gcSum float64
	for _, s := range d.baselineBuf {
		sum += float64(s.Heap.Used)
		gcSum += float64(s.GCCount())
	}
	avg := sum / float64(n)

	var variance float64
	for _, s := range d.baselineBuf {
		diff := float64(s.Heap.Used) - avg
		variance += diff * diff
	}
	variance /= float64(n)

	d.baseline = &model.Baseline{
		AvgHeapSize:    avg,
		StdDevHeapSize: math.Sqrt(variance),
		AvgGCFrequency: gcSum / float64(n),
		SamplesUsed:    n,
		EstablishedAt:  d.clock.Now(),
	}
	d.emit(Event{Type: "baseline-established"})
}

// classifyLocked runs the five detectors and accumulates probability,
// factors, and recommendations per §4.4. Returns nil only if every
// detector came back silent (no edge-case table entry applies here since a
// zero-probability verdict with no factors is equivalent to "no finding").
func (d *Detector) classifyLocked(latest model.Sample) *model.LeakVerdict {
	b := d.baseline
	var probability float64
	var factors []model.LeakFactor
	var recs []string
	seenRec := map[string]bool{}
	addRec := func(msgs ...string) {
		for _, m := range msgs {
			if !seenRec[m] {
				seenRec[m] = true
				recs = append(recs, m)
			}
		}
	}

	if b.AvgHeapSize > 0 {
		growthPct := (float64(latest.Heap.Used) - b.AvgHeapSize) / b.AvgHeapSize * 100
		if growthPct > d.cfg.GrowthThreshold*100 {
			probability += 0.3
			factors = append(factors, model.FactorRapidGrowth)
			addRec("Heap usage has grown sharply past baseline; check for unbounded data structures accumulating between GC cycles.")
		}
	}

	if slope, rsq, ok := steadyGrowth(lastHeapValues(d.postBaseline, 10)); ok && slope > 0 && rsq > 0.8 {
		probability += 0.25
		factors = append(factors, model.FactorSteadyGrowth)
		addRec("Heap usage is trending upward linearly across samples; review long-lived caches or listener registrations.")
	}

	if reduction, ok := sawToothReduction(lastGCSamples(d.postBaseline, 20)); ok && reduction < 0.10 {
		probability += 0.2
		factors = append(factors, model.FactorSawTooth)
		addRec("GC passes are reclaiming less than 10% of heap on average; retained objects may be surviving collection.")
	}

	if rate, ok := gcPerMinute(lastSamples(d.postBaseline, 10)); ok && rate > d.cfg.GCFrequency {
		probability += 0.15
		factors = append(factors, model.FactorGCPressure)
		addRec("Garbage collection frequency is elevated; allocation rate may be outpacing the working set.")
	}

	if latest.Heap.Limit > 0 {
		ratio := float64(latest.Heap.Used) / float64(latest.Heap.Limit)
		if ratio > d.cfg.HeapThreshold {
			probability += 0.1
			factors = append(factors, model.FactorMemoryThreshold)
			addRec("Heap usage is approaching its configured limit; an out-of-memory condition is imminent without intervention.")
		}
	}

	if probability > 1.0 {
		probability = 1.0
	}
	if len(factors) == 0 {
		return nil
	}

	return &model.LeakVerdict{
		Probability: probability,
		Factors:     factors,
		Timestamp:   d.clock.Now(),
		Metrics: model.LeakMetrics{
			HeapUsed:  latest.Heap.Used,
			HeapTotal: latest.Heap.Total,
			HeapLimit: latest.Heap.Limit,
		},
		Recommendations: recs,
	}
}

func lastSamples(samples []model.Sample, n int) []model.Sample {
	if len(samples) <= n {
		return samples
	}
	return samples[len(samples)-n:]
}

func lastHeapValues(samples []model.Sample, n int) []float64 {
	window := lastSamples(samples, n)
	values := make([]float64, len(window))
	for i, s := range window {
		values[i] = float64(s.Heap.Used)
	}
	return values
}

func lastGCSamples(samples []model.Sample, n int) []model.Sample {
	var withGC []model.Sample
	for _, s := range samples {
		if s.GCCount() > 0 {
			withGC = append(withGC, s)
		}
	}
	return lastSamples(withGC, n)
}
