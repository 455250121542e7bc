package match

import (
	"fmt"

	"github.com/cwbudde/algo-seismic/detect"
)

// Params holds the immutable detection parameters for a run. The engine
// never mutates them.
type Params struct {
	// SamplingRate of the template family and its continuous data, in Hz.
	// Also sizes the initial capacity probe (one nominal day of samples).
	SamplingRate float64

	// CCThreshold is the fixed correlation threshold, in [0, 1].
	CCThreshold float64

	// MADThreshold is the multiplier on the per-sequence median absolute
	// deviation, >= 0.
	MADThreshold float64

	// Combine selects whether both thresholds must hold (CombineAnd) or
	// either suffices (CombineOr).
	Combine detect.CombineMode

	// MADFloor replaces a zero MAD to keep the adaptive threshold bounded.
	// Zero selects the default water level.
	MADFloor float64
}

// Validate checks the parameters before any computation begins.
// A validation failure is fatal and not retried.
func (p Params) Validate() error {
	if p.SamplingRate <= 0 {
		return fmt.Errorf("%w: sampling rate %v must be positive", ErrInvalidConfig, p.SamplingRate)
	}
	if p.CCThreshold < 0 || p.CCThreshold > 1 {
		return fmt.Errorf("%w: cc threshold %v outside [0, 1]", ErrInvalidConfig, p.CCThreshold)
	}
	if p.MADThreshold < 0 {
		return fmt.Errorf("%w: mad threshold %v must be >= 0", ErrInvalidConfig, p.MADThreshold)
	}
	if p.MADFloor < 0 {
		return fmt.Errorf("%w: mad floor %v must be >= 0", ErrInvalidConfig, p.MADFloor)
	}
	if p.Combine != detect.CombineAnd && p.Combine != detect.CombineOr {
		return fmt.Errorf("%w: unknown combine mode %d", ErrInvalidConfig, p.Combine)
	}
	return nil
}

// detector builds the peak detector for these parameters.
func (p Params) detector() detect.Detector {
	return detect.Detector{
		CCThreshold:  p.CCThreshold,
		MADThreshold: p.MADThreshold,
		Mode:         p.Combine,
		MADFloor:     p.MADFloor,
	}
}
