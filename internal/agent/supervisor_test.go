package agent

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/dmitriimaksimovdevelop/memguard/internal/agenterr"
	"github.com/dmitriimaksimovdevelop/memguard/internal/alert"
	"github.com/dmitriimaksimovdevelop/memguard/internal/config"
	"github.com/dmitriimaksimovdevelop/memguard/internal/model"
	"github.com/dmitriimaksimovdevelop/memguard/internal/resilience"
)

// manualClock is a Clock test double driven entirely by Advance, the same
// testability seam every other package's tests use instead of sleeping.
type manualClock struct {
	mu      sync.Mutex
	now     time.Time
	pending []pendingCall
	seq     int
}

type pendingCall struct {
	at  time.Time
	seq int
	f   func()
	t   *noopTimer
}

type noopTimer struct{ cancelled bool }

func (t *noopTimer) Stop() bool { t.cancelled = true; return true }

func newManualClock() *manualClock { return &manualClock{now: time.Unix(0, 0)} }

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Sleep(d time.Duration) { c.Advance(d) }

func (c *manualClock) AfterFunc(d time.Duration, f func()) resilience.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &noopTimer{}
	c.seq++
	c.pending = append(c.pending, pendingCall{at: c.now.Add(d), seq: c.seq, f: f, t: t})
	return t
}

// Advance moves the clock forward and fires due callbacks in deadline order.
func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due, rest []pendingCall
	for _, p := range c.pending {
		if !p.at.After(c.now) {
			due = append(due, p)
		} else {
			rest = append(rest, p)
		}
	}
	c.pending = rest
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool {
		if due[i].at.Equal(due[j].at) {
			return due[i].seq < due[j].seq
		}
		return due[i].at.Before(due[j].at)
	})
	for _, p := range due {
		if !p.t.cancelled {
			p.f()
		}
	}
}

type fakeProbe struct {
	sample model.Sample
	err    error
}

func (p fakeProbe) Collect(ctx context.Context) (model.Sample, error) {
	return p.sample, p.err
}

func newTestSupervisor(t *testing.T, clock *manualClock) *Supervisor {
	cfg := config.DefaultConfig()
	cfg.Detection.Baseline.Samples = 3
	s := New(cfg, nil, clock)
	t.Cleanup(func() {
		if closer, ok := s.probe.(interface{ Close() }); ok {
			closer.Close()
		}
	})
	return s
}

func TestSampleOnceFeedsRingDetectorAndStream(t *testing.T) {
	clock := newManualClock()
	s := newTestSupervisor(t, clock)
	s.probe = fakeProbe{sample: model.Sample{Heap: model.HeapStats{Used: 100, Total: 200, Limit: 400}}}

	s.sampleOnce()

	if got := len(s.MetricHistory(10)); got != 1 {
		t.Fatalf("MetricHistory len = %d, want 1", got)
	}
	if s.GetHealth().SamplesCollected != 1 {
		t.Fatalf("SamplesCollected = %d, want 1", s.GetHealth().SamplesCollected)
	}
}

func TestSampleOnceRecordsErrorOnProbeFailure(t *testing.T) {
	clock := newManualClock()
	s := newTestSupervisor(t, clock)
	s.probe = fakeProbe{err: errors.New("read failed")}

	s.sampleOnce()

	h := s.GetHealth()
	if h.ErrorCount != 1 {
		t.Fatalf("ErrorCount = %d, want 1", h.ErrorCount)
	}
	if h.Status != "degraded" {
		t.Fatalf("Status = %q, want degraded", h.Status)
	}
}

func TestGetHealthReportsCriticalPastErrorThreshold(t *testing.T) {
	clock := newManualClock()
	s := newTestSupervisor(t, clock)
	s.cfg.ErrorHandling.ErrorThreshold = 2

	s.reportError("probe", agenterr.Monitoring("X", "boom", nil))
	s.reportError("probe", agenterr.Monitoring("X", "boom", nil))

	h := s.GetHealth()
	if !h.ErrorThresholdExceeded {
		t.Fatal("expected ErrorThresholdExceeded once errCount reaches the threshold")
	}
	if h.Status != "critical" {
		t.Fatalf("Status = %q, want critical", h.Status)
	}
}

func TestReportErrorSchedulesRecoveryAfterBackoff(t *testing.T) {
	clock := newManualClock()
	s := newTestSupervisor(t, clock)
	original := s.probe

	s.reportError("probe", agenterr.Monitoring("PROBE_COLLECT_FAILED", "boom", nil))

	select {
	case ev := <-s.Events():
		if ev.Type != EventError {
			t.Fatalf("first event type = %v, want EventError", ev.Type)
		}
	default:
		t.Fatal("expected an EventError to have been emitted synchronously")
	}

	clock.Advance(recoveryBackoff)

	if s.probe == original {
		t.Fatal("expected the probe recovery strategy to replace the probe instance")
	}

	select {
	case ev := <-s.Events():
		if ev.Type != EventRecovered {
			t.Fatalf("event type = %v, want EventRecovered", ev.Type)
		}
	default:
		t.Fatal("expected an EventRecovered notification after the recovery backoff elapsed")
	}
}

func TestHandleVerdictCreatesAlert(t *testing.T) {
	clock := newManualClock()
	s := newTestSupervisor(t, clock)

	s.handleVerdict(model.LeakVerdict{
		Probability: 0.9,
		Factors:     []model.LeakFactor{model.FactorRapidGrowth},
		Metrics:     model.LeakMetrics{HeapUsed: 900, HeapTotal: 1000},
	})

	active := s.Alerts().GetActiveAlerts(alert.Filter{})
	if len(active) != 1 {
		t.Fatalf("active alerts = %d, want 1", len(active))
	}
	if active[0].Source != "detector" {
		t.Fatalf("alert source = %q, want detector", active[0].Source)
	}
}

func TestGracefulShutdownReturnsPromptlyWithNoTasksStarted(t *testing.T) {
	clock := newManualClock()
	s := newTestSupervisor(t, clock)

	if err := s.GracefulShutdown(time.Second); err != nil {
		t.Fatalf("GracefulShutdown() = %v, want nil (no tasks were started)", err)
	}
}
