package match

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// detectionTimeLayout is the ISO 8601 timestamp written to match files,
// with 1/10 ms precision.
const detectionTimeLayout = "2006-01-02T15:04:05.0000Z"

// FileSink appends detections to one plain-text log per template, named
// after the template ID. Each line is
//
//	<iso8601-time> <cc:.3f> <mad:.3f> <amplitude-ratio:.3E>
//
// Files are opened lazily in append mode and kept open until Close, so a
// crashed run loses at most buffered output, never previously flushed lines.
// A FileSink is single-writer; independent sinks may serve different
// template sets concurrently.
type FileSink struct {
	dir   string
	files map[string]*os.File
}

// NewFileSink creates the match directory if needed and returns a sink
// writing into it.
func NewFileSink(dir string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("match: creating match directory: %w", err)
	}
	return &FileSink{dir: dir, files: make(map[string]*os.File)}, nil
}

// Append writes one detection line to the template's log.
func (s *FileSink) Append(d Detection) error {
	f, ok := s.files[d.TemplateID]
	if !ok {
		var err error
		f, err = os.OpenFile(filepath.Join(s.dir, d.TemplateID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("match: opening match file: %w", err)
		}
		s.files[d.TemplateID] = f
	}

	_, err := fmt.Fprintf(f, "%s %.3f %.3f %.3E\n",
		FormatDetectionTime(d.Time), d.CC, d.MADRatio, d.AmplitudeRatio)
	if err != nil {
		return fmt.Errorf("match: writing match line: %w", err)
	}
	return nil
}

// Close closes all open match files, returning the first error encountered.
func (s *FileSink) Close() error {
	var first error
	for id, f := range s.files {
		if err := f.Close(); err != nil && first == nil {
			first = fmt.Errorf("match: closing match file for %s: %w", id, err)
		}
		delete(s.files, id)
	}
	return first
}

// FormatDetectionTime renders a detection timestamp in the match-file layout.
func FormatDetectionTime(t time.Time) string {
	return t.UTC().Format(detectionTimeLayout)
}
