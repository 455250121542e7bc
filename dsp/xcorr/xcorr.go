package xcorr

import (
	"errors"
	"math"
)

// Errors returned by correlation functions.
var (
	ErrEmptyInput     = errors.New("xcorr: empty input")
	ErrInvalidFFTLen  = errors.New("xcorr: invalid FFT length for input")
	ErrIndexRange     = errors.New("xcorr: item index out of range")
	ErrShortSegment   = errors.New("xcorr: segment shorter than template")
	ErrLengthMismatch = errors.New("xcorr: buffer length mismatch")
)

// machineEpsilon is the float64 machine epsilon (distance from 1.0 to the
// next representable value).
var machineEpsilon = math.Nextafter(1, 2) - 1

// NextFFTLen returns the transform length for an input of n samples: the
// smallest power of two >= n. All plans in this package are created at
// power-of-two lengths; the transform library is only accuracy-verified at
// radix-2 sizes, and TransformTemplates, TransformSegments, and NewCorrelator
// reject anything else.
func NextFFTLen(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p *= 2
	}
	return p
}

// isPow2 reports whether n is a positive power of two.
func isPow2(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// EnergyFloor returns the minimum local window energy considered numerically
// trustworthy for a window of n samples. Windows at or below this floor are
// masked to zero correlation instead of being divided through.
func EnergyFloor(n int) float64 {
	return math.Sqrt(machineEpsilon) * float64(n)
}

// energy returns the sum of squares of x.
func energy(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return sum
}

// peakAbs returns the maximum absolute value of x.
func peakAbs(x []float64) float64 {
	var peak float64
	for _, v := range x {
		a := math.Abs(v)
		if a > peak {
			peak = a
		}
	}
	return peak
}
