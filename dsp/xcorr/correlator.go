package xcorr

import (
	"fmt"
	"math"

	algofft "github.com/MeKo-Christian/algo-fft"
)

// clipBound is the tolerated excess over the theoretical correlation maximum
// of 1.0. Magnitudes beyond it indicate corrupt or degenerate input and are
// zeroed rather than propagated.
const clipBound = 1.01

// Correlator computes normalized cross-correlation sequences for pairs drawn
// from a template ChunkTransform and a segment ChunkTransform sharing one FFT
// length. The correlator owns its inverse-transform scratch buffers, so a
// single instance must not be used concurrently.
type Correlator struct {
	fftLen int
	plan   *algofft.Plan[complex128]

	prod []complex128
	out  []complex128
}

// NewCorrelator creates a correlator for the given FFT length.
func NewCorrelator(fftLen int) (*Correlator, error) {
	if !isPow2(fftLen) {
		return nil, ErrInvalidFFTLen
	}

	plan, err := algofft.NewPlan64(fftLen)
	if err != nil {
		return nil, fmt.Errorf("xcorr: failed to create FFT plan: %w", err)
	}

	return &Correlator{
		fftLen: fftLen,
		plan:   plan,
		prod:   make([]complex128, fftLen),
		out:    make([]complex128, fftLen),
	}, nil
}

// FFTLen returns the FFT length this correlator was created for.
func (c *Correlator) FFTLen() int { return c.fftLen }

// Pair computes the normalized cross-correlation of template i against
// segment j, writing the M-N+1 valid lags into dst. segEnergy must be the
// sliding window energy of segment j for window length tpl.ItemLen(), as
// produced by WindowEnergy.
//
// Lags whose local energy is at or below the numerical floor are set to zero.
// Lags whose magnitude exceeds the theoretical bound are also zeroed; the
// count of such clipped lags is returned so callers can surface a
// data-quality warning.
func (c *Correlator) Pair(dst []float64, tpl *ChunkTransform, i int, seg *ChunkTransform, j int, segEnergy []float64) (clipped int, err error) {
	if i < 0 || i >= tpl.Len() || j < 0 || j >= seg.Len() {
		return 0, ErrIndexRange
	}
	if tpl.FFTLen() != c.fftLen || seg.FFTLen() != c.fftLen {
		return 0, ErrInvalidFFTLen
	}

	n := tpl.ItemLen()
	m := seg.SampleLen(j)
	if m < n {
		return 0, ErrShortSegment
	}

	valid := m - n + 1
	if len(dst) != valid || len(segEnergy) != valid {
		return 0, ErrLengthMismatch
	}

	ts := tpl.spectra[i]
	ds := seg.spectra[j]
	for k := range c.prod {
		c.prod[k] = ts[k] * ds[k]
	}

	if err := c.plan.Inverse(c.out, c.prod); err != nil {
		return 0, fmt.Errorf("xcorr: inverse FFT failed: %w", err)
	}

	tplEnergy := tpl.Energy(i)
	floor := EnergyFloor(n)

	for k := 0; k < valid; k++ {
		if segEnergy[k] <= floor || tplEnergy <= 0 {
			dst[k] = 0
			continue
		}

		v := real(c.out[k]) / math.Sqrt(segEnergy[k]*tplEnergy)
		if math.Abs(v) > clipBound {
			dst[k] = 0
			clipped++
			continue
		}
		dst[k] = v
	}

	return clipped, nil
}
