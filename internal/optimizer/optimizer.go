// Package optimizer implements the Performance Optimizer (§4.3): adaptive
// sampling interval and rate, a bounded priority-queued operation executor,
// and a TTL/priority-evicting cache. It is the component most responsible
// for keeping the agent itself low-overhead, so every failure path here
// emits an event and continues rather than aborting the scheduled tick.
package optimizer

import (
	"sync"
	"time"

	"github.com/dmitriimaksimovdevelop/memguard/internal/resilience"
)

// Strategy selects how SamplingRate computes its result (§4.3).
type Strategy string

const (
	StrategyFixed       Strategy = "fixed"
	StrategyAdaptive    Strategy = "adaptive"
	StrategyIntelligent Strategy = "intelligent"
)

// Config holds the Optimizer's tunables.
type Config struct {
	MinInterval time.Duration
	MaxInterval time.Duration
	MinRate     float64
	MaxRate     float64
	BaseRate    float64
	Strategy    Strategy
}

// LoadSample is the input to RecomputeInterval/RecomputeRate: the raw
// figures §4.3 defines systemLoad and memoryPressure from.
type LoadSample struct {
	UserCPUSec         float64
	SystemCPUSec       float64
	UptimeSec          float64
	CPUCount           int
	RSS                uint64
	TotalMem           uint64
	OverheadEfficiency float64 // [0,1], only read by the "intelligent" strategy
}

func (l LoadSample) systemLoad() float64 {
	if l.UptimeSec <= 0 || l.CPUCount <= 0 {
		return 0
	}
	return (l.UserCPUSec + l.SystemCPUSec) / l.UptimeSec / float64(l.CPUCount)
}

func (l LoadSample) memoryPressure() float64 {
	if l.TotalMem == 0 {
		return 0
	}
	return float64(l.RSS) / float64(l.TotalMem)
}

// Event is emitted whenever the optimizer changes a decision, consumed by
// the Supervisor to forward onto the embedded API's event surface (§6).
type Event struct {
	Type    string // interval-optimized | sampling-optimized | operations-dropped
	Payload map[string]any
}

// Optimizer owns the sampling-interval and sampling-rate decisions of §4.3.
// The cache (cache.go) and the operation queue (queue.go) are separate
// types that the Supervisor holds.
type Optimizer struct {
	cfg   Config
	clock resilience.Clock

	mu            sync.Mutex
	loadThreshold float64
	pressureThreshold float64
	interval      time.Duration
	rate          float64

	events chan Event
}

// New constructs an Optimizer with the given config and starting interval.
func New(cfg Config, startInterval time.Duration, clock resilience.Clock) *Optimizer {
	if clock == nil {
		clock = resilience.RealClock
	}
	if cfg.BaseRate == 0 {
		cfg.BaseRate = cfg.MinRate
	}
	return &Optimizer{
		cfg:               cfg,
		clock:             clock,
		loadThreshold:     0.7,
		pressureThreshold: 0.8,
		interval:          startInterval,
		rate:              cfg.BaseRate,
		events:            make(chan Event, 32),
	}
}

// Events returns the channel Event notifications are published on. Reads
// should be non-blocking from the caller's perspective; the channel is
// buffered and the Optimizer never blocks trying to send (when the buffer
// is full the new event is dropped, since a missed optimization
// notification is not safety-critical).
func (o *Optimizer) Events() <-chan Event { return o.events }

func (o *Optimizer) emit(ev Event) {
	select {
	case o.events <- ev:
	default:
	}
}

// Interval returns the current sampling interval.
func (o *Optimizer) Interval() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.interval
}

// Rate returns the current sampling rate.
func (o *Optimizer) Rate() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.rate
}

// RecomputeInterval implements §4.3(1): every tick, multiply the interval
// by 1.5 (capped at max) when load or pressure is high, by 0.8 (floored at
// min) when both are low. Called on a 10s cadence by the Supervisor.
func (o *Optimizer) RecomputeInterval(l LoadSample) {
	load := l.systemLoad()
	pressure := l.memoryPressure()

	o.mu.Lock()
	prev := o.interval
	switch {
	case load > o.loadThreshold || pressure > o.pressureThreshold:
		next := time.Duration(float64(o.interval) * 1.5)
		if next > o.cfg.MaxInterval {
			next = o.cfg.MaxInterval
		}
		o.interval = next
	case load < 0.3 && pressure < 0.5:
		next := time.Duration(float64(o.interval) * 0.8)
		if next < o.cfg.MinInterval {
			next = o.cfg.MinInterval
		}
		o.interval = next
	}
	changed := o.interval != prev
	cur := o.interval
	o.mu.Unlock()

	if changed {
		o.emit(Event{Type: "interval-optimized", Payload: map[string]any{
			"previous": prev, "current": cur, "load": load, "pressure": pressure,
		}})
	}
}

// RecomputeRate implements §4.3(2): select a rate per strategy and emit
// sampling-optimized when it moves by at least 0.05.
func (o *Optimizer) RecomputeRate(l LoadSample) {
	load := l.systemLoad()
	pressure := l.memoryPressure()

	var next float64
	switch o.cfg.Strategy {
	case StrategyAdaptive:
		next = o.rateLocked()
		switch {
		case load > 0.7 || pressure > 0.8:
			next *= 0.7
		case load < 0.3 && pressure < 0.4:
			next *= 1.2
		}
	case StrategyIntelligent:
		next = 0.4*(1-load) + 0.4*(1-pressure) + 0.2*l.OverheadEfficiency
		// scale the weighted [0,1] score into the configured rate band
		next = o.cfg.MinRate + next*(o.cfg.MaxRate-o.cfg.MinRate)
	default: // fixed
		next = o.cfg.BaseRate
	}

	if next < o.cfg.MinRate {
		next = o.cfg.MinRate
	}
	if next > o.cfg.MaxRate {
		next = o.cfg.MaxRate
	}

	o.mu.Lock()
	prev := o.rate
	moved := next-prev >= 0.05 || prev-next >= 0.05
	o.rate = next
	o.mu.Unlock()

	if moved {
		o.emit(Event{Type: "sampling-optimized", Payload: map[string]any{
			"previous": prev, "current": next,
		}})
	}
}

func (o *Optimizer) rateLocked() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.rate
}
