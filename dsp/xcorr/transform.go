package xcorr

import (
	"fmt"

	algofft "github.com/MeKo-Christian/algo-fft"
)

// ChunkTransform holds the frequency-domain representation of one chunk of
// waveforms at a fixed FFT length. Exactly one transform per role (template,
// segment) is meant to be live at a time; the owner discards and rebuilds it
// whenever the underlying chunk or the FFT length changes.
type ChunkTransform struct {
	fftLen  int
	itemLen int // common padded length (templates) or max length (segments)

	spectra  [][]complex128
	lengths  []int     // original per-item lengths
	energies []float64 // per-item sum of squares
	peaks    []float64 // per-item max absolute amplitude
}

// FFTLen returns the transform length shared by all items.
func (t *ChunkTransform) FFTLen() int { return t.fftLen }

// Len returns the number of items in the chunk.
func (t *ChunkTransform) Len() int { return len(t.spectra) }

// ItemLen returns the common item length. For template chunks this is the
// zero-padded template length N shared by the whole chunk; for segment chunks
// it is the longest segment length.
func (t *ChunkTransform) ItemLen() int { return t.itemLen }

// SampleLen returns the original (unpadded) length of item i.
func (t *ChunkTransform) SampleLen(i int) int { return t.lengths[i] }

// Energy returns the sum of squares of item i.
func (t *ChunkTransform) Energy(i int) float64 { return t.energies[i] }

// PeakAmplitude returns the maximum absolute sample of item i.
func (t *ChunkTransform) PeakAmplitude(i int) float64 { return t.peaks[i] }

// TransformTemplates computes conjugated forward spectra for a chunk of
// template waveforms. Templates shorter than the longest in the chunk are
// implicitly zero-padded to it, so every pair computed against the chunk
// shares one valid-lag range.
func TransformTemplates(items [][]float64, fftLen int) (*ChunkTransform, error) {
	t, err := transformChunk(items, fftLen)
	if err != nil {
		return nil, err
	}

	// Conjugate once here so the per-pair inner loop is a plain multiply.
	for _, spec := range t.spectra {
		for i, c := range spec {
			spec[i] = complex(real(c), -imag(c))
		}
	}

	return t, nil
}

// TransformSegments computes forward spectra for a chunk of continuous data
// segments.
func TransformSegments(items [][]float64, fftLen int) (*ChunkTransform, error) {
	return transformChunk(items, fftLen)
}

func transformChunk(items [][]float64, fftLen int) (*ChunkTransform, error) {
	if len(items) == 0 {
		return nil, ErrEmptyInput
	}

	maxLen := 0
	for _, item := range items {
		if len(item) == 0 {
			return nil, ErrEmptyInput
		}
		if len(item) > maxLen {
			maxLen = len(item)
		}
	}
	if fftLen < maxLen || !isPow2(fftLen) {
		return nil, ErrInvalidFFTLen
	}

	plan, err := algofft.NewPlan64(fftLen)
	if err != nil {
		return nil, fmt.Errorf("xcorr: failed to create FFT plan: %w", err)
	}

	t := &ChunkTransform{
		fftLen:   fftLen,
		itemLen:  maxLen,
		spectra:  make([][]complex128, len(items)),
		lengths:  make([]int, len(items)),
		energies: make([]float64, len(items)),
		peaks:    make([]float64, len(items)),
	}

	padded := make([]complex128, fftLen)
	for i, item := range items {
		for k := range padded {
			padded[k] = 0
		}
		for k, v := range item {
			padded[k] = complex(v, 0)
		}

		spec := make([]complex128, fftLen)
		if err := plan.Forward(spec, padded); err != nil {
			return nil, fmt.Errorf("xcorr: forward FFT failed: %w", err)
		}

		t.spectra[i] = spec
		t.lengths[i] = len(item)
		t.energies[i] = energy(item)
		t.peaks[i] = peakAbs(item)
	}

	return t, nil
}
