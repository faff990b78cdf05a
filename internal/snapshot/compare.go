package snapshot

import (
	"fmt"
	"math"
	"strings"
)

// MetricChange is one metric's before/after delta, with direction and
// significance banding retargeted from resource-utilization metrics to
// heap/GC metrics.
type MetricChange struct {
	Metric       string  `json:"metric"`
	OldValue     float64 `json:"oldValue"`
	NewValue     float64 `json:"newValue"`
	Delta        float64 `json:"delta"`
	DeltaPct     float64 `json:"deltaPct"`
	Direction    string  `json:"direction"`    // regression | improvement | unchanged
	Significance string  `json:"significance"` // high | medium | low
}

// CompareReport is the result of compare(a, b).
type CompareReport struct {
	BaselineID   string         `json:"baselineId"`
	CurrentID    string         `json:"currentId"`
	Changes      []MetricChange `json:"changes"`
	Regressions  int            `json:"regressions"`
	Improvements int            `json:"improvements"`
}

// Compare computes a CompareReport between two snapshots, banding each
// metric's change into a direction and significance tier.
func Compare(a, b Handle) CompareReport {
	report := CompareReport{BaselineID: a.ID, CurrentID: b.ID}

	addChange(&report, "heapUsed", float64(a.Sample.Heap.Used), float64(b.Sample.Heap.Used), true)
	addChange(&report, "heapTotal", float64(a.Sample.Heap.Total), float64(b.Sample.Heap.Total), true)
	addChange(&report, "gcCount", float64(a.Sample.GCCount()), float64(b.Sample.GCCount()), true)
	addChange(&report, "eventLoopDelayMs", a.Sample.EventLoopDelayMs, b.Sample.EventLoopDelayMs, true)
	addChange(&report, "cpuPercent", a.Sample.CPU.Percent, b.Sample.CPU.Percent, true)

	for _, c := range report.Changes {
		switch c.Direction {
		case "regression":
			report.Regressions++
		case "improvement":
			report.Improvements++
		}
	}
	return report
}

func addChange(report *CompareReport, metric string, oldVal, newVal float64, higherIsWorse bool) {
	delta := newVal - oldVal
	deltaPct := 0.0
	if oldVal != 0 {
		deltaPct = (delta / math.Abs(oldVal)) * 100
	}

	if math.Abs(deltaPct) < 1.0 && math.Abs(delta) < 0.1 {
		return
	}

	direction := "unchanged"
	if higherIsWorse {
		switch {
		case deltaPct > 5:
			direction = "regression"
		case deltaPct < -5:
			direction = "improvement"
		}
	} else {
		switch {
		case deltaPct < -5:
			direction = "regression"
		case deltaPct > 5:
			direction = "improvement"
		}
	}

	significance := "low"
	absPct := math.Abs(deltaPct)
	switch {
	case absPct >= 50:
		significance = "high"
	case absPct >= 20:
		significance = "medium"
	}

	report.Changes = append(report.Changes, MetricChange{
		Metric: metric, OldValue: oldVal, NewValue: newVal,
		Delta: delta, DeltaPct: deltaPct, Direction: direction, Significance: significance,
	})
}

// Format renders a CompareReport as a human-readable summary.
func Format(r CompareReport) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Baseline: %s\nCurrent:  %s\n", r.BaselineID, r.CurrentID)
	fmt.Fprintf(&sb, "Regressions: %d, Improvements: %d\n", r.Regressions, r.Improvements)
	for _, c := range r.Changes {
		if c.Direction == "regression" {
			fmt.Fprintf(&sb, "  [%s] %s: %.2f -> %.2f (%+.1f%%)\n",
				strings.ToUpper(c.Significance), c.Metric, c.OldValue, c.NewValue, c.DeltaPct)
		}
	}
	return sb.String()
}
