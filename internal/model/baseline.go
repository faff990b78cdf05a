package model

import "time"

// Baseline is the statistical reference the Leak Detector establishes once
// from an initial window of samples and never recomputes afterward (unless
// explicitly reset). See §3 invariant 2: baseline is established exactly
// once per Detector lifetime.
type Baseline struct {
	AvgHeapSize    float64   `json:"avgHeapSize"`
	StdDevHeapSize float64   `json:"stdDevHeapSize"`
	AvgGCFrequency float64   `json:"avgGCFrequency"`
	SamplesUsed    int       `json:"samplesUsed"`
	EstablishedAt  time.Time `json:"establishedAt"`
}
