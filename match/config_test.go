package match

import (
	"errors"
	"testing"

	"github.com/cwbudde/algo-seismic/detect"
)

func validParams() Params {
	return Params{
		SamplingRate: 50,
		CCThreshold:  0.7,
		MADThreshold: 8,
		Combine:      detect.CombineAnd,
	}
}

func TestParams_Validate(t *testing.T) {
	if err := validParams().Validate(); err != nil {
		t.Fatalf("valid params rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{"zero sampling rate", func(p *Params) { p.SamplingRate = 0 }},
		{"negative sampling rate", func(p *Params) { p.SamplingRate = -50 }},
		{"cc threshold below zero", func(p *Params) { p.CCThreshold = -0.1 }},
		{"cc threshold above one", func(p *Params) { p.CCThreshold = 1.1 }},
		{"negative mad threshold", func(p *Params) { p.MADThreshold = -1 }},
		{"negative mad floor", func(p *Params) { p.MADFloor = -1e-6 }},
		{"unknown combine mode", func(p *Params) { p.Combine = detect.CombineMode(9) }},
	}
	for _, tt := range tests {
		p := validParams()
		tt.mutate(&p)
		if err := p.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("%s: got %v, want ErrInvalidConfig", tt.name, err)
		}
	}
}

func TestParams_Detector(t *testing.T) {
	p := validParams()
	p.Combine = detect.CombineOr
	p.MADFloor = 1e-3

	d := p.detector()
	if d.CCThreshold != p.CCThreshold || d.MADThreshold != p.MADThreshold {
		t.Errorf("thresholds not carried: %+v", d)
	}
	if d.Mode != detect.CombineOr {
		t.Errorf("mode not carried: got %v", d.Mode)
	}
	if d.MADFloor != 1e-3 {
		t.Errorf("mad floor not carried: got %g", d.MADFloor)
	}
}
