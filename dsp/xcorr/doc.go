// Package xcorr provides batched FFT-domain normalized cross-correlation
// for matched-filter detection of repeating waveforms.
//
// The package correlates a chunk of short template waveforms against a chunk
// of long continuous segments sharing a single power-of-two FFT length:
//
//   - Template spectra are computed once per chunk, conjugated, and reused
//     across every segment in the opposing chunk.
//   - Per-pair correlation is a spectrum multiply followed by one inverse
//     transform; only the first M-N+1 lags (the linear part) are kept.
//   - Results are normalized by the sliding local energy of the segment and
//     the total energy of the template, so a perfect copy scores 1.0.
//
// Degenerate windows (near-zero local energy) are masked to zero rather than
// divided through, and any lag whose magnitude exceeds the theoretical bound
// by more than 1% is zeroed and reported as a data-quality clip.
//
// # Usage
//
//	tpl, _ := xcorr.TransformTemplates(templates, fftLen)
//	seg, _ := xcorr.TransformSegments(segments, fftLen)
//	c, _ := xcorr.NewCorrelator(fftLen)
//	energy := xcorr.WindowEnergy(nil, segments[j], tpl.ItemLen())
//	cc := make([]float64, len(segments[j])-tpl.ItemLen()+1)
//	clipped, _ := c.Pair(cc, tpl, i, seg, j, energy)
package xcorr
