// Package match drives matched-filter detection runs: it batches template and
// segment waveforms under a memory budget, correlates every pair through
// dsp/xcorr, extracts detections through detect, and appends them to a
// detection sink.
//
// One Matcher owns its transform caches and compute buffers exclusively and
// runs single-threaded; parallelism is achieved by running independent
// Matcher instances over disjoint work partitions.
package match

import (
	"errors"
	"fmt"
	"time"
)

// Errors returned by the matching engine.
var (
	// ErrNotFound reports a waveform item that does not exist. Providers
	// return it (possibly wrapped) so the engine can drop the item from the
	// active chunk and continue.
	ErrNotFound = errors.New("match: waveform not found")

	// ErrCorrupt reports a waveform item that exists but cannot be read.
	// Treated like ErrNotFound: the item is dropped, the run continues.
	ErrCorrupt = errors.New("match: waveform unreadable")

	// ErrInvalidConfig reports parameters rejected before any computation.
	ErrInvalidConfig = errors.New("match: invalid configuration")

	// ErrCapacityExhausted reports that the batch size could not be shrunk
	// any further after repeated allocation failures. Non-retryable.
	ErrCapacityExhausted = errors.New("match: device capacity exhausted")
)

// Template is a fixed reference waveform to search for. Immutable once
// created; the engine only reads it.
type Template struct {
	ID           string // station/channel + origin timestamp + length
	Origin       time.Time
	SamplingRate float64
	Samples      []float32
}

// Segment is a continuous waveform, typically one day-file.
type Segment struct {
	ID           string
	Start        time.Time
	SamplingRate float64
	Samples      []float32
}

// Detection is one accepted match of a template within a segment.
// Detections are append-only and never retracted.
type Detection struct {
	TemplateID     string
	Time           time.Time
	CC             float64
	MADRatio       float64
	AmplitudeRatio float64
}

// Stats summarizes a completed run.
type Stats struct {
	Pairs      int // template/segment pairs correlated
	Detections int
	Skipped    int // pairs skipped because the segment was shorter than the template
	Dropped    int // items dropped because they could not be loaded
	Clipped    int // correlation lags zeroed for exceeding the theoretical bound
	Elapsed    time.Duration
}

// WaveformProvider supplies template and segment waveforms by ID. Load
// failures are reported as errors wrapping ErrNotFound or ErrCorrupt; the
// engine excludes such items from the active chunk instead of aborting.
type WaveformProvider interface {
	LoadTemplate(id string) (*Template, error)
	LoadSegment(id string) (*Segment, error)
}

// DetectionSink receives accepted detections. For a given template/segment
// pair, Append is called in ascending chronological order.
type DetectionSink interface {
	Append(d Detection) error
}

// floatSamples converts provider float32 samples to the float64 slices the
// correlation kernels operate on.
func floatSamples(in []float32) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}

// droppable reports whether a provider error is recoverable by excluding the
// item from the chunk.
func droppable(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrCorrupt)
}

// fatalf wraps a fatal engine error.
func fatalf(format string, args ...any) error {
	return fmt.Errorf("match: "+format, args...)
}
