// Package testutil provides deterministic signal generators and tolerance
// helpers shared by the correlation and detection tests.
package testutil

import (
	"math"
	"math/rand"
)

// Ricker generates a Ricker wavelet (the classic synthetic seismic pulse)
// with the given center frequency, sampling rate, and length. The peak sits
// at the center of the returned slice.
func Ricker(freqHz, sampleRate float64, length int) []float64 {
	out := make([]float64, length)
	center := float64(length-1) / 2
	for i := range out {
		t := (float64(i) - center) / sampleRate
		a := math.Pi * freqHz * t
		out[i] = (1 - 2*a*a) * math.Exp(-a*a)
	}
	return out
}

// DeterministicSine generates a sine wave with fixed phase for reproducible
// correlation fixtures.
func DeterministicSine(freqHz, sampleRate, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	step := 2 * math.Pi * freqHz / sampleRate
	for i := range out {
		out[i] = amplitude * math.Sin(step*float64(i))
	}
	return out
}

// GaussianNoise generates normally distributed noise with the given standard
// deviation and a fixed seed for reproducibility.
func GaussianNoise(seed int64, sigma float64, length int) []float64 {
	out := make([]float64, length)
	rng := rand.New(rand.NewSource(seed))
	for i := range out {
		out[i] = rng.NormFloat64() * sigma
	}
	return out
}

// InsertScaled adds a scaled copy of src into dst starting at offset,
// clipping at the end of dst. Used to plant template copies in synthetic
// continuous traces.
func InsertScaled(dst, src []float64, offset int, scale float64) {
	for i, v := range src {
		k := offset + i
		if k < 0 || k >= len(dst) {
			continue
		}
		dst[k] += v * scale
	}
}

// Float32 converts a float64 slice to the float32 sample format the waveform
// provider interfaces use.
func Float32(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}

// Constant generates a constant-valued trace.
func Constant(value float64, length int) []float64 {
	out := make([]float64, length)
	for i := range out {
		out[i] = value
	}
	return out
}
