package match

import (
	"errors"
	"fmt"
)

// complex64Size is the size in bytes of one cross-correlation tensor element.
const complex64Size = 8

// hostCapacity is the fixed, conservative batch capacity used when no device
// memory budget applies.
const hostCapacity = 30

// OutOfMemoryError reports a failed compute-memory reservation. The engine
// recovers by shrinking the batch size and retrying at the same position.
type OutOfMemoryError struct {
	Requested int64
	Available int64
}

func (e *OutOfMemoryError) Error() string {
	return fmt.Sprintf("match: out of device memory: requested %d bytes, %d available", e.Requested, e.Available)
}

// IsOutOfMemory reports whether err is (or wraps) an OutOfMemoryError.
func IsOutOfMemory(err error) bool {
	var oom *OutOfMemoryError
	return errors.As(err, &oom)
}

// Backend models the memory capability of the compute device. It is selected
// once at startup and never swapped mid-run.
type Backend interface {
	// ProbeCapacity returns the largest K such that an fftLen x K x K
	// complex64 cross-correlation tensor fits in available memory.
	// A return of 0 means even a single pair does not fit.
	ProbeCapacity(fftLen int) int

	// Reserve claims nbytes of compute memory for the lifetime of the
	// returned release function. Fails with *OutOfMemoryError when the
	// budget cannot cover the request.
	Reserve(nbytes int64) (release func(), err error)
}

// HostBackend is the CPU-only backend: a fixed conservative capacity and
// reservations that always succeed. This mirrors plain host allocation,
// where exhaustion surfaces as process-level failure rather than a
// recoverable condition.
type HostBackend struct{}

// ProbeCapacity returns the fixed host capacity regardless of fftLen.
func (HostBackend) ProbeCapacity(int) int { return hostCapacity }

// Reserve always succeeds on the host backend.
func (HostBackend) Reserve(int64) (func(), error) { return func() {}, nil }

// BudgetBackend enforces an explicit byte budget on compute memory, standing
// in for a device with dedicated memory. Reservations draw the budget down
// and restore it on release. Not safe for concurrent use; each run owns its
// backend exclusively.
type BudgetBackend struct {
	budget int64
	used   int64
}

// NewBudgetBackend creates a backend with the given byte budget.
func NewBudgetBackend(budgetBytes int64) *BudgetBackend {
	return &BudgetBackend{budget: budgetBytes}
}

// ProbeCapacity incrementally attempts the fftLen x K x K tensor reservation
// for K = 1, 2, 3, ... and returns the last K that succeeded. Each attempt is
// released immediately, so probing never leaks budget.
func (b *BudgetBackend) ProbeCapacity(fftLen int) int {
	k := 1
	for {
		need := int64(fftLen) * int64(k) * int64(k) * complex64Size
		release, err := b.Reserve(need)
		if err != nil {
			return k - 1
		}
		release()
		k++
	}
}

// Reserve claims nbytes against the budget.
func (b *BudgetBackend) Reserve(nbytes int64) (func(), error) {
	if nbytes < 0 {
		nbytes = 0
	}
	if b.used+nbytes > b.budget {
		return nil, &OutOfMemoryError{Requested: nbytes, Available: b.budget - b.used}
	}

	b.used += nbytes
	released := false
	return func() {
		if !released {
			b.used -= nbytes
			released = true
		}
	}, nil
}

// tensorBytes returns the reservation size for a k1 x k2 pair block at the
// given FFT length.
func tensorBytes(fftLen, k1, k2 int) int64 {
	return int64(fftLen) * int64(k1) * int64(k2) * complex64Size
}
