// Package sizing provides safe size arithmetic and conversions to prevent overflow.
package sizing

import "math"

// ToInt converts a uint64 to int, returning overflowErr if it doesn't fit.
func ToInt(size uint64, overflowErr error) (int, error) {
	if size > uint64(math.MaxInt) {
		return 0, overflowErr
	}
	return int(size), nil
}

// AddUint64 adds two uint64 values, returning (result, false) on overflow.
func AddUint64(a, b uint64) (uint64, bool) {
	sum := a + b
	if sum < a {
		return 0, false
	}
	return sum, true
}

// MulUint64 multiplies two uint64 values, returning (result, false) on overflow.
func MulUint64(a, b uint64) (uint64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	product := a * b
	if product/b != a {
		return 0, false
	}
	return product, true
}

// RoundUp rounds n up to the next multiple of block.
// Returns (result, false) if the rounded value overflows.
func RoundUp(n, block uint64) (uint64, bool) {
	if block == 0 {
		return n, true
	}
	rem := n % block
	if rem == 0 {
		return n, true
	}
	return AddUint64(n, block-rem)
}

// Fits reports whether the range [off, off+n) lies within a buffer of size bufLen.
func Fits(off, n uint64, bufLen int) bool {
	end, ok := AddUint64(off, n)
	if !ok {
		return false
	}
	return end <= uint64(bufLen) //nolint:gosec // len is always non-negative
}
