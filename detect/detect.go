// Package detect extracts timestamped peaks from normalized cross-correlation
// sequences using adaptive, robust-statistics-based thresholding and greedy
// non-maximum suppression.
package detect

import (
	"math"
	"sort"

	"github.com/cwbudde/algo-seismic/stats/robust"
)

// CombineMode selects how the fixed correlation threshold and the adaptive
// MAD-based threshold are combined into one effective local threshold.
type CombineMode int

const (
	// CombineAnd requires both criteria to hold: the local threshold is the
	// maximum of the two.
	CombineAnd CombineMode = iota

	// CombineOr accepts a lag when either criterion holds: the local
	// threshold is the minimum of the two.
	CombineOr
)

// String returns the mode name.
func (m CombineMode) String() string {
	switch m {
	case CombineAnd:
		return "and"
	case CombineOr:
		return "or"
	default:
		return "unknown"
	}
}

// Peak is one accepted detection within a correlation sequence.
type Peak struct {
	Lag      int     // sample index into the correlation sequence
	CC       float64 // correlation value at the peak (signed)
	MADRatio float64 // correlation value divided by the sequence MAD
}

// Detector holds the thresholding parameters for peak extraction.
// The zero value detects nothing useful; populate all fields.
type Detector struct {
	CCThreshold  float64 // fixed correlation threshold, 0..1
	MADThreshold float64 // multiplier on the sequence MAD, >= 0
	Mode         CombineMode
	MADFloor     float64 // water level for zero MAD; 0 selects the default
}

// Threshold returns the effective local threshold for a sequence whose
// median absolute deviation is mad.
func (d Detector) Threshold(mad float64) float64 {
	adaptive := d.MADThreshold * mad
	if d.Mode == CombineAnd {
		return math.Max(d.CCThreshold, adaptive)
	}
	return math.Min(d.CCThreshold, adaptive)
}

// Detect extracts peaks from a correlation sequence. templateLen sets the
// exclusion radius of the suppression pass: of any two surviving candidates
// closer than templateLen samples, only the stronger is kept.
//
// Peaks are returned in ascending lag order, each carrying its correlation
// value and its ratio to the sequence MAD. An empty sequence, or one with no
// sample above threshold, yields an empty result.
func (d Detector) Detect(cc []float64, templateLen int) []Peak {
	if len(cc) == 0 || templateLen < 1 {
		return nil
	}

	mad := robust.MADFloored(cc, d.MADFloor)
	threshold := d.Threshold(mad)

	// Contiguous-run reduction: collapse each maximal run of consecutive
	// above-threshold samples into its first-seen local maximum.
	var candidates []int
	runBest, runBestAbs := -1, 0.0
	inRun := false

	flush := func() {
		if inRun {
			candidates = append(candidates, runBest)
			inRun = false
		}
	}

	for i, v := range cc {
		a := math.Abs(v)
		if a < threshold {
			flush()
			continue
		}
		if !inRun {
			inRun = true
			runBest, runBestAbs = i, a
		} else if a > runBestAbs {
			runBest, runBestAbs = i, a
		}
	}
	flush()

	if len(candidates) == 0 {
		return nil
	}

	// Greedy non-maximum suppression, strongest first. Stable sort keeps
	// equal-magnitude candidates in chronological order.
	order := make([]int, len(candidates))
	copy(order, candidates)
	sort.SliceStable(order, func(a, b int) bool {
		return math.Abs(cc[order[a]]) > math.Abs(cc[order[b]])
	})

	suppressed := make(map[int]bool, len(candidates))
	var accepted []int
	for _, idx := range order {
		if suppressed[idx] {
			continue
		}
		accepted = append(accepted, idx)
		for _, other := range candidates {
			if other != idx && absInt(other-idx) < templateLen {
				suppressed[other] = true
			}
		}
	}

	sort.Ints(accepted)

	peaks := make([]Peak, len(accepted))
	for i, idx := range accepted {
		peaks[i] = Peak{
			Lag:      idx,
			CC:       cc[idx],
			MADRatio: cc[idx] / mad,
		}
	}

	return peaks
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
