package xcorr

import (
	"math"
	"math/rand"
	"testing"
)

func naiveWindowEnergy(data []float64, n int) []float64 {
	out := make([]float64, len(data)-n+1)
	for k := range out {
		var sum float64
		for _, v := range data[k : k+n] {
			sum += v * v
		}
		out[k] = sum
	}
	return out
}

func TestWindowEnergy_MatchesNaive(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	data := make([]float64, 1000)
	for i := range data {
		data[i] = rng.NormFloat64()
	}

	for _, n := range []int{1, 2, 50, 999, 1000} {
		got := WindowEnergy(nil, data, n)
		want := naiveWindowEnergy(data, n)
		if len(got) != len(want) {
			t.Fatalf("n=%d: length %d, want %d", n, len(got), len(want))
		}
		for k := range got {
			if math.Abs(got[k]-want[k]) > 1e-9 {
				t.Fatalf("n=%d lag %d: got %g, want %g", n, k, got[k], want[k])
			}
		}
	}
}

func TestWindowEnergy_DegenerateInputs(t *testing.T) {
	if got := WindowEnergy(nil, []float64{1, 2, 3}, 0); got != nil {
		t.Errorf("n=0: got %v, want nil", got)
	}
	if got := WindowEnergy(nil, []float64{1, 2}, 3); got != nil {
		t.Errorf("short data: got %v, want nil", got)
	}
	if got := WindowEnergy(nil, nil, 1); got != nil {
		t.Errorf("empty data: got %v, want nil", got)
	}
}

func TestWindowEnergy_ReusesDst(t *testing.T) {
	data := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	dst := make([]float64, 0, 16)

	out := WindowEnergy(dst, data, 3)
	if len(out) != 6 {
		t.Fatalf("output length: got %d, want 6", len(out))
	}
	if &out[0] != &dst[:1][0] {
		t.Error("dst with sufficient capacity was reallocated")
	}
	if out[0] != 1+4+9 {
		t.Errorf("first window: got %g, want 14", out[0])
	}
	if out[5] != 36+49+64 {
		t.Errorf("last window: got %g, want 149", out[5])
	}
}
