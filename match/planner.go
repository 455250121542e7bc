package match

// Balance converts a raw capacity estimate into a chunk size that spreads
// total items evenly over the iterations the capacity alone would require.
// This avoids a small trailing batch: ceil(total/result) equals
// ceil(total/capacity) while result stays in [1, capacity].
//
// Returns 0 when capacity or total is below 1; callers treat a zero chunk
// size as a fatal, non-retryable condition.
func Balance(capacity, total int) int {
	if capacity < 1 || total < 1 {
		return 0
	}
	if total <= capacity {
		return total
	}

	iterations := ceilDiv(total, capacity)
	return ceilDiv(total, iterations)
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
