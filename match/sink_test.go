package match

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFileSink_AppendsPerTemplate(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "matches")
	sink, err := NewFileSink(dir)
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}

	at := time.Date(2023, 4, 7, 12, 30, 15, 120_000_000, time.UTC)
	detections := []Detection{
		{TemplateID: "NE.STA..HHZ_20230101T000000_250", Time: at, CC: 0.876, MADRatio: 12.345, AmplitudeRatio: 1.5},
		{TemplateID: "NE.STA..HHZ_20230101T000000_250", Time: at.Add(time.Hour), CC: -0.75, MADRatio: -10.2, AmplitudeRatio: 0.25},
		{TemplateID: "NE.STB..HHZ_20230102T000000_250", Time: at, CC: 0.9, MADRatio: 20, AmplitudeRatio: 2},
	}
	for _, d := range detections {
		if err := sink.Append(d); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(dir, "NE.STA..HHZ_20230101T000000_250"))
	if err != nil {
		t.Fatalf("reading match file: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(content), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %q", len(lines), lines)
	}
	if lines[0] != "2023-04-07T12:30:15.1200Z 0.876 12.345 1.500E+00" {
		t.Errorf("line format: got %q", lines[0])
	}
	if lines[1] != "2023-04-07T13:30:15.1200Z -0.750 -10.200 2.500E-01" {
		t.Errorf("negative values: got %q", lines[1])
	}

	other, err := os.ReadFile(filepath.Join(dir, "NE.STB..HHZ_20230102T000000_250"))
	if err != nil {
		t.Fatalf("reading second match file: %v", err)
	}
	if strings.Count(string(other), "\n") != 1 {
		t.Errorf("second template file: got %q, want one line", other)
	}
}

func TestFileSink_AppendsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2023, 4, 7, 0, 0, 0, 0, time.UTC)
	d := Detection{TemplateID: "tpl", Time: at, CC: 0.8, MADRatio: 10, AmplitudeRatio: 1}

	for i := 0; i < 2; i++ {
		sink, err := NewFileSink(dir)
		if err != nil {
			t.Fatalf("NewFileSink: %v", err)
		}
		if err := sink.Append(d); err != nil {
			t.Fatalf("Append: %v", err)
		}
		if err := sink.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}

	content, err := os.ReadFile(filepath.Join(dir, "tpl"))
	if err != nil {
		t.Fatalf("reading match file: %v", err)
	}
	if got := strings.Count(string(content), "\n"); got != 2 {
		t.Errorf("lines after reopen: got %d, want 2", got)
	}
}

func TestFormatDetectionTime(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	at := time.Date(2023, 4, 7, 14, 30, 15, 123_456_789, loc)
	if got := FormatDetectionTime(at); got != "2023-04-07T12:30:15.1234Z" {
		t.Errorf("got %q, want 2023-04-07T12:30:15.1234Z", got)
	}
}
