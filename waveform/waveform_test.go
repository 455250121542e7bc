package waveform

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cwbudde/algo-seismic/match"
)

func TestReadWriteFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "NE.STA..HHZ_2023.097"+FileExt)
	samples := []float32{0.5, -1.25, 3, 0, 42}
	start := time.Date(2023, 4, 7, 0, 0, 0, 500_000_000, time.UTC)

	if err := WriteFile(path, samples, start, 50); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, gotStart, gotRate, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if gotRate != 50 {
		t.Errorf("sampling rate: got %g, want 50", gotRate)
	}
	if !gotStart.Equal(start) {
		t.Errorf("start: got %v, want %v", gotStart, start)
	}
	if len(got) != len(samples) {
		t.Fatalf("sample count: got %d, want %d", len(got), len(samples))
	}
	for i := range samples {
		if got[i] != samples[i] {
			t.Errorf("sample %d: got %g, want %g", i, got[i], samples[i])
		}
	}
}

func TestReadFile_Missing(t *testing.T) {
	_, _, _, err := ReadFile(filepath.Join(t.TempDir(), "nope"+FileExt))
	if !errors.Is(err, match.ErrNotFound) {
		t.Errorf("got %v, want match.ErrNotFound", err)
	}
}

func TestReadFile_Corrupt(t *testing.T) {
	dir := t.TempDir()

	write := func(name string, content []byte) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, content, 0o644); err != nil {
			t.Fatalf("writing fixture: %v", err)
		}
		return path
	}

	badMagic := write("magic"+FileExt, append([]byte("JUNK"), make([]byte, 28)...))
	shortHeader := write("short"+FileExt, []byte("SEIS"))

	// Valid header claiming more samples than the file holds.
	good := filepath.Join(dir, "truncated"+FileExt)
	if err := WriteFile(good, make([]float32, 100), time.Now(), 50); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	full, err := os.ReadFile(good)
	if err != nil {
		t.Fatalf("reading fixture: %v", err)
	}
	truncated := write("cut"+FileExt, full[:len(full)-10])

	// Valid structure, nonsensical sampling rate.
	badRate := write("rate"+FileExt, func() []byte {
		buf := append([]byte(nil), full...)
		binary.LittleEndian.PutUint64(buf[8:], 0) // rate field
		return buf
	}())

	// Valid structure, sample count far beyond the file's actual size. This
	// must be rejected before any allocation happens.
	hugeCount := write("huge"+FileExt, func() []byte {
		buf := append([]byte(nil), full...)
		binary.LittleEndian.PutUint32(buf[24:], 0xFFFFFFFF) // sample count field
		return buf
	}())

	for _, path := range []string{badMagic, shortHeader, truncated, badRate, hugeCount} {
		_, _, _, err := ReadFile(path)
		if !errors.Is(err, match.ErrCorrupt) {
			t.Errorf("%s: got %v, want match.ErrCorrupt", filepath.Base(path), err)
		}
	}
}

func TestSegmentName(t *testing.T) {
	day := time.Date(2023, 4, 7, 0, 0, 0, 0, time.UTC) // julian day 97
	if got := SegmentName("NE.STA..HHZ", day); got != "NE.STA..HHZ_2023.097.f32" {
		t.Errorf("got %q", got)
	}
}

func TestTemplateName_RoundTrip(t *testing.T) {
	origin := time.Date(2023, 1, 15, 8, 45, 30, 0, time.UTC)
	name := TemplateName("NE.STA..HHZ", origin, 250)
	if name != "NE.STA..HHZ_20230115T084530_250.f32" {
		t.Fatalf("TemplateName: got %q", name)
	}

	channel, npts, err := ParseTemplateName(name)
	if err != nil {
		t.Fatalf("ParseTemplateName: %v", err)
	}
	if channel != "NE.STA..HHZ" || npts != 250 {
		t.Errorf("got %q/%d, want NE.STA..HHZ/250", channel, npts)
	}
}

func TestParseTemplateName_Malformed(t *testing.T) {
	for _, name := range []string{
		"noseparators.f32",
		"a_b.f32",
		"a_b_c_d.f32",
		"a_20230115T084530_zero.f32",
		"a_20230115T084530_0.f32",
	} {
		if _, _, err := ParseTemplateName(name); err == nil {
			t.Errorf("%q: expected error", name)
		}
	}
}

func TestDirProvider(t *testing.T) {
	dataDir := t.TempDir()
	tplDir := t.TempDir()
	p := NewDirProvider(dataDir, tplDir)

	day1 := time.Date(2023, 4, 7, 0, 0, 0, 0, time.UTC)
	day3 := day1.AddDate(0, 0, 2)
	for _, day := range []time.Time{day1, day3} {
		name := SegmentName("NE.STA..HHZ", day)
		if err := WriteFile(filepath.Join(dataDir, name), make([]float32, 10), day, 50); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}

	origin := time.Date(2023, 1, 15, 8, 45, 30, 0, time.UTC)
	tplName := TemplateName("NE.STA..HHZ", origin, 4)
	err := WriteFile(filepath.Join(tplDir, tplName), []float32{1, 2, 3, 4}, origin, 50)
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(filepath.Join(tplDir, "README.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	// The middle day has no file and is skipped.
	ids := p.Segments("NE.STA..HHZ", day1, day1.AddDate(0, 0, 3))
	if len(ids) != 2 {
		t.Fatalf("Segments: got %v, want 2 day files", ids)
	}
	if ids[0] != SegmentName("NE.STA..HHZ", day1) || ids[1] != SegmentName("NE.STA..HHZ", day3) {
		t.Errorf("Segments: got %v", ids)
	}

	seg, err := p.LoadSegment(ids[0])
	if err != nil {
		t.Fatalf("LoadSegment: %v", err)
	}
	if seg.ID != ids[0] || !seg.Start.Equal(day1) || seg.SamplingRate != 50 {
		t.Errorf("segment metadata: %+v", seg)
	}

	tpls, err := p.Templates()
	if err != nil {
		t.Fatalf("Templates: %v", err)
	}
	if len(tpls) != 1 || tpls[0] != tplName {
		t.Errorf("Templates: got %v, want [%s]", tpls, tplName)
	}

	tpl, err := p.LoadTemplate(tplName)
	if err != nil {
		t.Fatalf("LoadTemplate: %v", err)
	}
	if tpl.ID != tplName || !tpl.Origin.Equal(origin) || len(tpl.Samples) != 4 {
		t.Errorf("template metadata: %+v", tpl)
	}

	if _, err := p.LoadSegment("missing.f32"); !errors.Is(err, match.ErrNotFound) {
		t.Errorf("missing segment: got %v, want match.ErrNotFound", err)
	}
}
