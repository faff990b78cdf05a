package detector

import "github.com/dmitriimaksimovdevelop/memguard/internal/model"

// steadyGrowth fits an ordinary least-squares line to values (indexed by
// position) and returns its slope and R². Per §4.4's edge-case table, a
// window shorter than 5 samples yields no finding, and a window of
// identical values must return a numerically stable "no finding" (slope 0,
// R² undefined) rather than NaN/Inf propagating outward.
func steadyGrowth(values []float64) (slope, rSquared float64, ok bool) {
	n := len(values)
	if n < 5 {
		return 0, 0, false
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, y := range values {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	nf := float64(n)
	denom := nf*sumXX - sumX*sumX
	if denom == 0 {
		return 0, 0, false
	}
	slope = (nf*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / nf

	meanY := sumY / nf
	var ssTot, ssRes float64
	for i, y := range values {
		x := float64(i)
		pred := slope*x + intercept
		ssRes += (y - pred) * (y - pred)
		ssTot += (y - meanY) * (y - meanY)
	}
	if ssTot == 0 {
		// Every value identical: a flat line fits perfectly but R² is
		// undefined by the usual formula (0/0). Treat as no finding.
		return 0, 0, false
	}
	rSquared = 1 - ssRes/ssTot
	return slope, rSquared, true
}

// sawToothReduction computes the mean fractional heap reduction across
// consecutive GC-bearing samples: for each pair (prev, cur), the fraction
// of prev's heap that was reclaimed by the time cur was taken. A low mean
// reduction across many GCs indicates the collector isn't reclaiming much,
// the signature of a saw-tooth leak.
func sawToothReduction(samples []model.Sample) (meanReduction float64, ok bool) {
	if len(samples) < 5 {
		return 0, false
	}
	var sum float64
	count := 0
	for i := 1; i < len(samples); i++ {
		prev := float64(samples[i-1].Heap.Used)
		cur := float64(samples[i].Heap.Used)
		if prev <= 0 {
			continue
		}
		reduction := (prev - cur) / prev
		sum += reduction
		count++
	}
	if count == 0 {
		return 0, false
	}
	return sum / float64(count), true
}

// gcPerMinute estimates the GC rate across samples by summing observed GC
// counts and dividing by the wall-clock span the window covers.
func gcPerMinute(samples []model.Sample) (rate float64, ok bool) {
	if len(samples) < 5 {
		return 0, false
	}
	spanMs := samples[len(samples)-1].Timestamp - samples[0].Timestamp
	if spanMs <= 0 {
		return 0, false
	}
	var total int
	for _, s := range samples {
		total += s.GCCount()
	}
	minutes := float64(spanMs) / 1000.0 / 60.0
	if minutes <= 0 {
		return 0, false
	}
	return float64(total) / minutes, true
}
