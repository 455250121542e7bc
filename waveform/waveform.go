// Package waveform implements a directory-backed waveform provider for the
// matching engine: one raw little-endian float32 file per template or per
// channel-day of continuous data, with a small self-describing header.
//
// Continuous day files are named NET.STA.LOC.CHA_YYYY.JJJ.f32 (JJJ is the
// julian day). Template files are named NET.STA.LOC.CHA_<origin>_<npts>.f32
// with the origin timestamp in compact UTC form (20060102T150405).
package waveform

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cwbudde/algo-seismic/match"
)

// FileExt is the extension of waveform files.
const FileExt = ".f32"

// originLayout is the compact UTC timestamp embedded in template filenames.
const originLayout = "20060102T150405"

var fileMagic = [4]byte{'S', 'E', 'I', 'S'}

const fileVersion = 1

// header is the fixed-size on-disk prefix of every waveform file.
type header struct {
	Magic        [4]byte
	Version      uint16
	_            uint16 // padding
	SamplingRate float64
	StartNanos   int64
	Samples      uint32
}

// WriteFile writes samples with the given start time and sampling rate.
func WriteFile(path string, samples []float32, start time.Time, samplingRate float64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("waveform: creating %s: %w", path, err)
	}
	defer f.Close()

	h := header{
		Magic:        fileMagic,
		Version:      fileVersion,
		SamplingRate: samplingRate,
		StartNanos:   start.UnixNano(),
		Samples:      uint32(len(samples)),
	}
	if err := binary.Write(f, binary.LittleEndian, h); err != nil {
		return fmt.Errorf("waveform: writing header to %s: %w", path, err)
	}
	if err := binary.Write(f, binary.LittleEndian, samples); err != nil {
		return fmt.Errorf("waveform: writing samples to %s: %w", path, err)
	}
	return nil
}

// ReadFile loads a waveform file. Missing files map to match.ErrNotFound and
// malformed ones to match.ErrCorrupt so the engine can drop the item.
func ReadFile(path string) (samples []float32, start time.Time, samplingRate float64, err error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, time.Time{}, 0, fmt.Errorf("%w: %s", match.ErrNotFound, path)
		}
		return nil, time.Time{}, 0, fmt.Errorf("%w: %s: %v", match.ErrCorrupt, path, err)
	}
	defer f.Close()

	var h header
	if err := binary.Read(f, binary.LittleEndian, &h); err != nil {
		return nil, time.Time{}, 0, fmt.Errorf("%w: %s: short header", match.ErrCorrupt, path)
	}
	if h.Magic != fileMagic || h.Version != fileVersion {
		return nil, time.Time{}, 0, fmt.Errorf("%w: %s: bad magic or version", match.ErrCorrupt, path)
	}
	if h.SamplingRate <= 0 || math.IsNaN(h.SamplingRate) || math.IsInf(h.SamplingRate, 0) {
		return nil, time.Time{}, 0, fmt.Errorf("%w: %s: invalid sampling rate", match.ErrCorrupt, path)
	}

	// The sample count comes from an untrusted header; verify it against the
	// actual file size before allocating.
	info, err := f.Stat()
	if err != nil {
		return nil, time.Time{}, 0, fmt.Errorf("%w: %s: %v", match.ErrCorrupt, path, err)
	}
	headerSize := int64(binary.Size(h))
	if int64(h.Samples)*4 > info.Size()-headerSize {
		return nil, time.Time{}, 0, fmt.Errorf("%w: %s: sample count exceeds file size", match.ErrCorrupt, path)
	}

	samples = make([]float32, h.Samples)
	if err := binary.Read(f, binary.LittleEndian, samples); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, time.Time{}, 0, fmt.Errorf("%w: %s: truncated samples", match.ErrCorrupt, path)
		}
		return nil, time.Time{}, 0, fmt.Errorf("%w: %s: %v", match.ErrCorrupt, path, err)
	}

	return samples, time.Unix(0, h.StartNanos).UTC(), h.SamplingRate, nil
}

// SegmentName returns the day-file name for a channel on the given date.
func SegmentName(channel string, day time.Time) string {
	return fmt.Sprintf("%s_%d.%03d%s", channel, day.Year(), day.YearDay(), FileExt)
}

// TemplateName returns the template file name for a channel, origin time, and
// sample count, mirroring the template's identifying key.
func TemplateName(channel string, origin time.Time, npts int) string {
	return fmt.Sprintf("%s_%s_%d%s", channel, origin.UTC().Format(originLayout), npts, FileExt)
}

// ParseTemplateName splits a template file name into its channel and sample
// count. Used to group templates that share a channel and length.
func ParseTemplateName(name string) (channel string, npts int, err error) {
	base := strings.TrimSuffix(name, FileExt)
	parts := strings.Split(base, "_")
	if len(parts) != 3 {
		return "", 0, fmt.Errorf("waveform: malformed template name %q", name)
	}
	npts, err = strconv.Atoi(parts[2])
	if err != nil || npts < 1 {
		return "", 0, fmt.Errorf("waveform: malformed template length in %q", name)
	}
	return parts[0], npts, nil
}
