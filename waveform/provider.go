package waveform

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cwbudde/algo-seismic/match"
)

// DirProvider serves waveforms from a continuous-data directory and a
// template directory. Item IDs are file names relative to those directories.
// DirProvider implements match.WaveformProvider.
type DirProvider struct {
	DataDir     string
	TemplateDir string
}

// NewDirProvider returns a provider over the given directories.
func NewDirProvider(dataDir, templateDir string) *DirProvider {
	return &DirProvider{DataDir: dataDir, TemplateDir: templateDir}
}

// LoadSegment reads one continuous day file.
func (p *DirProvider) LoadSegment(id string) (*match.Segment, error) {
	samples, start, rate, err := ReadFile(filepath.Join(p.DataDir, id))
	if err != nil {
		return nil, err
	}
	return &match.Segment{
		ID:           id,
		Start:        start,
		SamplingRate: rate,
		Samples:      samples,
	}, nil
}

// LoadTemplate reads one template file. The file's start time is the
// template's origin.
func (p *DirProvider) LoadTemplate(id string) (*match.Template, error) {
	samples, origin, rate, err := ReadFile(filepath.Join(p.TemplateDir, id))
	if err != nil {
		return nil, err
	}
	return &match.Template{
		ID:           id,
		Origin:       origin,
		SamplingRate: rate,
		Samples:      samples,
	}, nil
}

// Segments returns the IDs of the day files available for a channel in the
// inclusive date range [start, end]. Days without a file are skipped, so the
// result may cover fewer days than requested.
func (p *DirProvider) Segments(channel string, start, end time.Time) []string {
	var ids []string
	for day := start.UTC().Truncate(24 * time.Hour); !day.After(end.UTC()); day = day.AddDate(0, 0, 1) {
		name := SegmentName(channel, day)
		if _, err := os.Stat(filepath.Join(p.DataDir, name)); err == nil {
			ids = append(ids, name)
		}
	}
	return ids
}

// Templates returns the IDs of all template files in the template directory.
func (p *DirProvider) Templates() ([]string, error) {
	entries, err := os.ReadDir(p.TemplateDir)
	if err != nil {
		return nil, fmt.Errorf("waveform: scanning template directory: %w", err)
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != FileExt {
			continue
		}
		ids = append(ids, e.Name())
	}
	return ids, nil
}
