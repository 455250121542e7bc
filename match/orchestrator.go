package match

import (
	"log/slog"
	"math"
	"time"

	"github.com/cwbudde/algo-seismic/dsp/xcorr"
)

// Option configures a Matcher.
type Option func(*Matcher)

// WithBackend selects the compute-memory backend. The default is HostBackend.
func WithBackend(b Backend) Option {
	return func(m *Matcher) {
		if b != nil {
			m.backend = b
		}
	}
}

// WithLogger sets the logger for progress and data-quality messages.
func WithLogger(log *slog.Logger) Option {
	return func(m *Matcher) {
		if log != nil {
			m.log = log
		}
	}
}

// Matcher correlates template waveforms against continuous segments and
// forwards accepted detections to a sink. A Matcher is single-threaded and
// owns its transform caches exclusively.
type Matcher struct {
	params   Params
	provider WaveformProvider
	sink     DetectionSink
	backend  Backend
	log      *slog.Logger
}

// NewMatcher validates params and builds a matcher. Parameter validation
// failures are fatal before any computation begins.
func NewMatcher(params Params, provider WaveformProvider, sink DetectionSink, opts ...Option) (*Matcher, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if provider == nil {
		return nil, fatalf("%w: nil waveform provider", ErrInvalidConfig)
	}
	if sink == nil {
		return nil, fatalf("%w: nil detection sink", ErrInvalidConfig)
	}

	m := &Matcher{
		params:   params,
		provider: provider,
		sink:     sink,
		backend:  HostBackend{},
		log:      slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m, nil
}

// loadedChunk is the resident waveform chunk for one role, together with its
// device transform. Identity is the item ID list; the chunk is rebuilt
// whenever the requested slice or the FFT length changes.
type loadedChunk struct {
	ids     []string // requested slice; the chunk's identity
	kept    []string // IDs that actually loaded, aligned with samples
	samples [][]float64
	starts  []time.Time
	xform   *xcorr.ChunkTransform
	fftLen  int
}

// matches reports whether the chunk already covers the requested ID slice at
// the given FFT length (0 means any length).
func (c *loadedChunk) matches(ids []string, fftLen int) bool {
	if c == nil || len(c.ids) != len(ids) {
		return false
	}
	for i := range ids {
		if c.ids[i] != ids[i] {
			return false
		}
	}
	return fftLen == 0 || c.fftLen == fftLen
}

// Run correlates every template against every segment, appending detections
// to the sink. Items that cannot be loaded are dropped from their chunk;
// allocation failures shrink the batch size and retry at the same position.
// Run returns the aggregate stats along with the first fatal error, if any.
func (m *Matcher) Run(templateIDs, segmentIDs []string) (Stats, error) {
	var stats Stats
	start := time.Now()
	defer func() { stats.Elapsed = time.Since(start) }()

	if len(templateIDs) == 0 || len(segmentIDs) == 0 {
		return stats, nil
	}

	// Probe capacity against a nominal day-long transform, then balance the
	// chunk size over the data axis so no tiny trailing batch remains.
	nominal := xcorr.NextFFTLen(int(m.params.SamplingRate * 86400))
	capacity := m.backend.ProbeCapacity(nominal)
	if capacity < 1 {
		return stats, fatalf("%w: no capacity for a single pair (fft length %d)", ErrCapacityExhausted, nominal)
	}
	if len(templateIDs) < capacity {
		// Fewer templates than capacity frees tensor room for more data
		// per iteration.
		capacity = capacity * capacity / len(templateIDs) / 2
		if capacity < 1 {
			capacity = 1
		}
	}
	chunk := Balance(capacity, len(segmentIDs))
	m.log.Debug("capacity probed", "fftLen", nominal, "capacity", capacity, "chunk", chunk)

	var (
		data *loadedChunk
		tpls *loadedChunk
		corr *xcorr.Correlator
		di   int
		ti   int
	)

	for {
		dEnd := min(di+chunk, len(segmentIDs))
		tEnd := min(ti+chunk, len(templateIDs))

		// LOAD_DATA: reload when the requested slice changed.
		if !data.matches(segmentIDs[di:dEnd], 0) {
			loaded, err := m.loadSegments(segmentIDs[di:dEnd], &stats)
			if err != nil {
				return stats, err
			}
			// An FFT-length change invalidates the template cache and the
			// correlator even when the template slice is unchanged.
			if loaded != nil && (data == nil || loaded.fftLen != data.fftLen) {
				tpls = nil
				corr = nil
			}
			data = loaded
		}

		if data != nil {
			// LOAD_TEMPLATES: same caching rule, keyed on slice + FFT length.
			if !tpls.matches(templateIDs[ti:tEnd], data.fftLen) {
				loaded, err := m.loadTemplates(templateIDs[ti:tEnd], data.fftLen, &stats)
				if err != nil {
					return stats, err
				}
				tpls = loaded
			}

			// COMPUTE
			if tpls != nil {
				release, err := m.backend.Reserve(tensorBytes(data.fftLen, tpls.xform.Len(), data.xform.Len()))
				if IsOutOfMemory(err) {
					// RECOVER: shrink capacity, rebalance over the remaining
					// data, discard both caches, retry the same pointers.
					capacity--
					chunk = Balance(capacity, len(segmentIDs)-di)
					if chunk < 1 {
						return stats, fatalf("%w: batch size cannot shrink further", ErrCapacityExhausted)
					}
					m.log.Debug("device memory full, reducing chunk size", "chunk", chunk)
					data, tpls, corr = nil, nil, nil
					continue
				}
				if err != nil {
					return stats, fatalf("reserving compute memory: %w", err)
				}

				if corr == nil || corr.FFTLen() != data.fftLen {
					corr, err = xcorr.NewCorrelator(data.fftLen)
					if err != nil {
						release()
						return stats, err
					}
				}

				computeStart := time.Now()
				pairs := tpls.xform.Len() * data.xform.Len()
				err = m.computeBlock(corr, tpls, data, &stats)
				release()
				if err != nil {
					return stats, err
				}
				m.log.Debug("processed cross-correlations",
					"pairs", pairs,
					"rate", float64(pairs)/time.Since(computeStart).Seconds())
			}
		}

		// ADVANCE
		ti += chunk
		if ti >= len(templateIDs) {
			di += chunk
			if di >= len(segmentIDs) {
				break
			}
			ti = 0
		}
	}

	m.log.Debug("run complete",
		"pairs", stats.Pairs,
		"detections", stats.Detections,
		"elapsed", time.Since(start))
	return stats, nil
}

// loadSegments fetches a segment chunk, dropping unreadable items, and
// computes its transform at the chunk's power-of-two FFT length. Returns nil
// when nothing in the slice could be loaded.
func (m *Matcher) loadSegments(ids []string, stats *Stats) (*loadedChunk, error) {
	chunk := &loadedChunk{ids: append([]string(nil), ids...)}

	for _, id := range ids {
		seg, err := m.provider.LoadSegment(id)
		if err != nil {
			if droppable(err) {
				m.log.Warn("dropping segment", "id", id, "err", err)
				stats.Dropped++
				continue
			}
			return nil, fatalf("loading segment %s: %w", id, err)
		}
		if seg.SamplingRate != m.params.SamplingRate {
			m.log.Warn("dropping segment with mismatched sampling rate",
				"id", id, "rate", seg.SamplingRate, "want", m.params.SamplingRate)
			stats.Dropped++
			continue
		}
		chunk.kept = append(chunk.kept, id)
		chunk.samples = append(chunk.samples, floatSamples(seg.Samples))
		chunk.starts = append(chunk.starts, seg.Start)
	}

	if len(chunk.samples) == 0 {
		return nil, nil
	}

	maxLen := 0
	for _, s := range chunk.samples {
		if len(s) > maxLen {
			maxLen = len(s)
		}
	}
	chunk.fftLen = xcorr.NextFFTLen(maxLen)

	xform, err := xcorr.TransformSegments(chunk.samples, chunk.fftLen)
	if err != nil {
		return nil, fatalf("transforming segment chunk: %w", err)
	}
	chunk.xform = xform
	return chunk, nil
}

// loadTemplates fetches a template chunk at the given FFT length. Returns nil
// when nothing in the slice could be loaded.
func (m *Matcher) loadTemplates(ids []string, fftLen int, stats *Stats) (*loadedChunk, error) {
	chunk := &loadedChunk{fftLen: fftLen}
	chunk.ids = append(chunk.ids, ids...)

	for _, id := range ids {
		tpl, err := m.provider.LoadTemplate(id)
		if err != nil {
			if droppable(err) {
				m.log.Warn("dropping template", "id", id, "err", err)
				stats.Dropped++
				continue
			}
			return nil, fatalf("loading template %s: %w", id, err)
		}
		if tpl.SamplingRate != m.params.SamplingRate {
			m.log.Warn("dropping template with mismatched sampling rate",
				"id", id, "rate", tpl.SamplingRate, "want", m.params.SamplingRate)
			stats.Dropped++
			continue
		}
		chunk.kept = append(chunk.kept, id)
		chunk.samples = append(chunk.samples, floatSamples(tpl.Samples))
		chunk.starts = append(chunk.starts, tpl.Origin)
	}

	if len(chunk.samples) == 0 {
		return nil, nil
	}

	xform, err := xcorr.TransformTemplates(chunk.samples, fftLen)
	if err != nil {
		return nil, fatalf("transforming template chunk: %w", err)
	}
	chunk.xform = xform
	return chunk, nil
}

// computeBlock correlates every loaded template against every loaded segment
// and appends the resulting detections.
func (m *Matcher) computeBlock(corr *xcorr.Correlator, tpls, data *loadedChunk, stats *Stats) error {
	detector := m.params.detector()
	n := tpls.xform.ItemLen()

	var energy, cc []float64
	for j := range data.samples {
		seg := data.samples[j]
		if len(seg) < n {
			stats.Skipped += tpls.xform.Len()
			continue
		}

		valid := len(seg) - n + 1
		energy = xcorr.WindowEnergy(energy, seg, n)
		if cap(cc) < valid {
			cc = make([]float64, valid)
		}
		cc = cc[:valid]

		for i := range tpls.samples {
			clipped, err := corr.Pair(cc, tpls.xform, i, data.xform, j, energy)
			if err != nil {
				return fatalf("correlating %s vs %s: %w", tpls.kept[i], data.kept[j], err)
			}
			if clipped > 0 {
				stats.Clipped += clipped
				m.log.Warn("correlation exceeded bound, lags zeroed",
					"template", tpls.kept[i], "segment", data.kept[j], "lags", clipped)
			}
			stats.Pairs++

			peaks := detector.Detect(cc, n)
			for _, p := range peaks {
				det := Detection{
					TemplateID:     tpls.kept[i],
					Time:           data.starts[j].Add(lagDuration(p.Lag, m.params.SamplingRate)),
					CC:             p.CC,
					MADRatio:       p.MADRatio,
					AmplitudeRatio: amplitudeRatio(seg, p.Lag, n, tpls.xform.PeakAmplitude(i)),
				}
				if err := m.sink.Append(det); err != nil {
					return fatalf("appending detection for %s: %w", tpls.kept[i], err)
				}
				stats.Detections++
			}
		}
	}
	return nil
}

// lagDuration converts a sample lag to a duration at the given rate.
func lagDuration(lag int, rate float64) time.Duration {
	return time.Duration(float64(lag) / rate * float64(time.Second))
}

// amplitudeRatio compares the peak amplitude of the matched data window to
// the template's peak amplitude. Exported per detection but never part of the
// acceptance decision.
func amplitudeRatio(seg []float64, lag, n int, tplPeak float64) float64 {
	if tplPeak <= 0 {
		return 0
	}
	end := min(lag+n, len(seg))
	var peak float64
	for _, v := range seg[lag:end] {
		a := math.Abs(v)
		if a > peak {
			peak = a
		}
	}
	return peak / tplPeak
}
