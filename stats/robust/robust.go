// Package robust provides outlier-resistant statistics used for adaptive
// detection thresholds.
package robust

import (
	"math"
	"sort"
)

// DefaultMADFloor is the water level substituted when the median absolute
// deviation of a sequence is exactly zero, preventing an unbounded adaptive
// threshold on constant input.
const DefaultMADFloor = 1e-6

// Median returns the median of signal. The input is not modified.
// Returns 0 for an empty input.
func Median(signal []float64) float64 {
	n := len(signal)
	if n == 0 {
		return 0
	}

	sorted := make([]float64, n)
	copy(sorted, signal)
	sort.Float64s(sorted)

	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// MAD returns the median absolute deviation of signal about its median.
// Returns 0 for an empty input.
func MAD(signal []float64) float64 {
	n := len(signal)
	if n == 0 {
		return 0
	}

	med := Median(signal)

	dev := make([]float64, n)
	for i, v := range signal {
		dev[i] = math.Abs(v - med)
	}
	sort.Float64s(dev)

	if n%2 == 1 {
		return dev[n/2]
	}
	return (dev[n/2-1] + dev[n/2]) / 2
}

// MADFloored returns the median absolute deviation of signal, substituting
// floor when the MAD is exactly zero. A floor <= 0 falls back to
// DefaultMADFloor.
func MADFloored(signal []float64, floor float64) float64 {
	if floor <= 0 {
		floor = DefaultMADFloor
	}

	mad := MAD(signal)
	if mad == 0 {
		return floor
	}
	return mad
}
