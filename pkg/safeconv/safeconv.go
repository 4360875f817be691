// Package safeconv provides integer conversions for class file widths that
// panic instead of silently truncating.
package safeconv

import "math"

// MaxUint16 is the largest value of a class file u2 item.
const MaxUint16 = math.MaxUint16

// MaxUint32 is the largest value of a class file u4 item.
const MaxUint32 = uint32(math.MaxUint32)

// MustIntToUint16 converts int to uint16, panics on bounds violation.
// Use only when bounds violations are logically impossible.
func MustIntToUint16(v int) uint16 {
	if v < 0 || v > MaxUint16 {
		panic("safeconv: int to uint16 out of bounds")
	}

	return uint16(v)
}

// MustIntToUint32 converts int to uint32, panics on bounds violation.
// Use only when bounds violations are logically impossible.
func MustIntToUint32(v int) uint32 {
	if v < 0 || int64(v) > int64(MaxUint32) {
		panic("safeconv: int to uint32 out of bounds")
	}

	return uint32(v)
}

// Uint16 converts int to uint16, reporting whether it fits.
func Uint16(v int) (uint16, bool) {
	if v < 0 || v > MaxUint16 {
		return 0, false
	}

	return uint16(v), true
}
