package solver

import (
	"math"
	"math/rand"
)

// infReplacement stands in for infinite bounds when sampling starting
// points; the penalty surface still pulls solutions back toward the finite
// region.
const infReplacement = 1e10

func replaceInf(v float64) float64 {
	if math.IsInf(v, 1) {
		return infReplacement
	}
	if math.IsInf(v, -1) {
		return -infReplacement
	}
	return v
}

// samplePoint draws a starting point uniformly within each variable's
// bounds. Zero-width bounds are deterministic.
func samplePoint(rng *rand.Rand, lower, upper []float64) []float64 {
	x := make([]float64, len(lower))
	for i := range x {
		lo, hi := replaceInf(lower[i]), replaceInf(upper[i])
		if lo == hi {
			x[i] = lo
			continue
		}
		x[i] = lo + rng.Float64()*(hi-lo)
	}
	return x
}

// clampToBounds projects x back inside the box constraints in place.
func clampToBounds(x, lower, upper []float64) {
	for i := range x {
		if x[i] < lower[i] {
			x[i] = lower[i]
		}
		if x[i] > upper[i] {
			x[i] = upper[i]
		}
	}
}
