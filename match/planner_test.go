package match

import (
	"fmt"
	"testing"
)

func TestBalance_KnownValues(t *testing.T) {
	tests := []struct {
		capacity, total, want int
	}{
		{30, 100, 25}, // 4 iterations of 25 instead of 3x30 + 10
		{30, 30, 30},
		{30, 31, 16},
		{30, 10, 10},
		{1, 10, 1},
		{10, 1, 1},
		{7, 100, 7}, // 15 iterations either way
		{0, 10, 0},
		{10, 0, 0},
		{-1, -1, 0},
	}
	for _, tt := range tests {
		if got := Balance(tt.capacity, tt.total); got != tt.want {
			t.Errorf("Balance(%d, %d): got %d, want %d", tt.capacity, tt.total, got, tt.want)
		}
	}
}

func TestBalance_Invariants(t *testing.T) {
	for capacity := 1; capacity <= 40; capacity++ {
		for total := 1; total <= 400; total++ {
			got := Balance(capacity, total)
			if got < 1 || got > capacity {
				t.Fatalf("Balance(%d, %d) = %d outside [1, capacity]", capacity, total, got)
			}
			if ceilDiv(total, got) != ceilDiv(total, capacity) {
				t.Fatalf("Balance(%d, %d) = %d changes the iteration count: %d != %d",
					capacity, total, got, ceilDiv(total, got), ceilDiv(total, capacity))
			}
		}
	}
}

func ExampleBalance() {
	fmt.Println(Balance(30, 100))
	// Output: 25
}
