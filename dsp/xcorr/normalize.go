package xcorr

import (
	vecmath "github.com/cwbudde/algo-vecmath"
)

// WindowEnergy computes the sliding sum of squares of data over every window
// of length n, writing the result into dst. The output has length
// len(data)-n+1, aligned with the valid lags of a correlation against a
// template of length n.
//
// The computation uses a single cumulative sum over the squared samples, so
// the cost is O(M) regardless of the window length. dst is reused when its
// capacity suffices; the (possibly reallocated) slice is returned.
//
// Returns nil if n < 1 or data is shorter than n.
func WindowEnergy(dst, data []float64, n int) []float64 {
	m := len(data)
	if n < 1 || m < n {
		return nil
	}

	out := m - n + 1
	if cap(dst) < out {
		dst = make([]float64, out)
	} else {
		dst = dst[:out]
	}

	sq := make([]float64, m)
	vecmath.MulBlock(sq, data, data)

	// Prime the first window, then slide by one sample at a time.
	var sum float64
	for i := 0; i < n; i++ {
		sum += sq[i]
	}
	dst[0] = sum

	for k := 1; k < out; k++ {
		sum += sq[k+n-1] - sq[k-1]
		dst[k] = sum
	}

	return dst
}
