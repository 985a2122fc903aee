// Package buf provides overflow-checked address arithmetic and bounds helpers
// used wherever page and heap ranges are computed.
package buf

import (
	"fmt"
	"math"
)

// AddOverflowSafe adds a and b, returning ok = false when the result would overflow uintptr.
func AddOverflowSafe(a, b uintptr) (uintptr, bool) {
	if a > math.MaxUint-b {
		return 0, false
	}
	return a + b, true
}

// MulOverflowSafe multiplies a and b, returning ok = false when the result would overflow uintptr.
// Used for count * pageSize calculations.
func MulOverflowSafe(a, b uintptr) (uintptr, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if a > math.MaxUint/b {
		return 0, false
	}
	return a * b, true
}

// CheckRange validates that [off, off+n) lies within [base, base+size).
// Returns the exclusive end of the checked range, or an error describing
// the specific failure (overflow or out of bounds).
//
//	end, err := buf.CheckRange(r.Start, r.Len, va, n)
//	if err != nil {
//	    return fmt.Errorf("vm: %w", err)
//	}
func CheckRange(base, size, off, n uintptr) (uintptr, error) {
	limit, ok := AddOverflowSafe(base, size)
	if !ok {
		return 0, fmt.Errorf("overflow: base=%#x + size=%#x", base, size)
	}
	end, ok := AddOverflowSafe(off, n)
	if !ok {
		return 0, fmt.Errorf("overflow: off=%#x + n=%#x", off, n)
	}
	if off < base || end > limit {
		return 0, fmt.Errorf("bounds: [%#x, %#x) outside [%#x, %#x)", off, end, base, limit)
	}
	return end, nil
}

// Slice returns the sub-slice [off:off+n] if it fits within len(b).
func Slice(b []byte, off, n uintptr) ([]byte, bool) {
	if off > uintptr(len(b)) {
		return nil, false
	}
	end, ok := AddOverflowSafe(off, n)
	if !ok || end > uintptr(len(b)) {
		return nil, false
	}
	return b[off:end], true
}
