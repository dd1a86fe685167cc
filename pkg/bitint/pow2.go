// Package bitint provides the power-of-two helpers used to validate and
// suggest transform sizes. All functions are allocation free and O(1).
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of 2 >= size. Sizes <= 0 give 1.
//
// The subtraction keeps exact powers unchanged: for 8, bits.Len(7) is 3 and
// 1<<3 is 8, where bits.Len(8) would give 16.
//
//	Input  Output
//	4      4
//	5      8
//	0      1
//	-1     1
func NextPowerOfTwo(size int) int {
	if size <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// PrevPowerOfTwo returns the largest power of 2 <= size. Sizes <= 0 give 0.
func PrevPowerOfTwo(size int) int {
	if size <= 0 {
		return 0
	}
	return 1 << (bits.Len(uint(size)) - 1)
}

// IsPowerOfTwo reports whether n is a positive power of 2. A power of 2 has a
// single bit set, so n&(n-1) clears it to zero.
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// Log2 returns log2(n) for a power of 2, or -1 otherwise.
func Log2(n int) int {
	if !IsPowerOfTwo(n) {
		return -1
	}
	return bits.TrailingZeros(uint(n))
}
