package optimizer

import (
	"testing"
	"time"
)

func TestRecomputeIntervalGrowsUnderLoad(t *testing.T) {
	cfg := Config{MinInterval: time.Second, MaxInterval: 30 * time.Second}
	o := New(cfg, 5*time.Second, nil)

	o.RecomputeInterval(LoadSample{UserCPUSec: 90, SystemCPUSec: 0, UptimeSec: 100, CPUCount: 1})

	if got := o.Interval(); got != 7500*time.Millisecond {
		t.Fatalf("Interval() = %v, want 7.5s", got)
	}
}

func TestRecomputeIntervalShrinksWhenIdle(t *testing.T) {
	cfg := Config{MinInterval: time.Second, MaxInterval: 30 * time.Second}
	o := New(cfg, 5*time.Second, nil)

	o.RecomputeInterval(LoadSample{UserCPUSec: 1, SystemCPUSec: 0, UptimeSec: 100, CPUCount: 4, RSS: 1, TotalMem: 100})

	if got := o.Interval(); got != 4*time.Second {
		t.Fatalf("Interval() = %v, want 4s", got)
	}
}

func TestRecomputeIntervalClampsAtBounds(t *testing.T) {
	cfg := Config{MinInterval: time.Second, MaxInterval: 6 * time.Second}
	o := New(cfg, 5*time.Second, nil)

	o.RecomputeInterval(LoadSample{UserCPUSec: 90, SystemCPUSec: 0, UptimeSec: 100, CPUCount: 1})

	if got := o.Interval(); got != 6*time.Second {
		t.Fatalf("Interval() = %v, want clamped to MaxInterval 6s", got)
	}
}

func TestRecomputeRateAdaptiveDropsUnderPressure(t *testing.T) {
	cfg := Config{MinRate: 0.1, MaxRate: 1.0, BaseRate: 0.5, Strategy: StrategyAdaptive}
	o := New(cfg, time.Second, nil)

	o.RecomputeRate(LoadSample{RSS: 90, TotalMem: 100, UptimeSec: 1, CPUCount: 1})

	if got := o.Rate(); got >= 0.5 {
		t.Fatalf("Rate() = %v, want reduced below base under memory pressure", got)
	}
}

func TestRecomputeRateFixedStrategyIgnoresLoad(t *testing.T) {
	cfg := Config{MinRate: 0.1, MaxRate: 1.0, BaseRate: 0.42, Strategy: StrategyFixed}
	o := New(cfg, time.Second, nil)

	o.RecomputeRate(LoadSample{RSS: 99, TotalMem: 100, UptimeSec: 1, CPUCount: 1})

	if got := o.Rate(); got != 0.42 {
		t.Fatalf("Rate() = %v, want fixed base rate 0.42 regardless of load", got)
	}
}

func TestRecomputeRateEmitsEventOnSignificantMove(t *testing.T) {
	cfg := Config{MinRate: 0.1, MaxRate: 1.0, BaseRate: 0.5, Strategy: StrategyAdaptive}
	o := New(cfg, time.Second, nil)

	o.RecomputeRate(LoadSample{RSS: 90, TotalMem: 100, UptimeSec: 1, CPUCount: 1})

	select {
	case ev := <-o.Events():
		if ev.Type != "sampling-optimized" {
			t.Fatalf("Type = %q, want sampling-optimized", ev.Type)
		}
	default:
		t.Fatal("expected a sampling-optimized event")
	}
}
