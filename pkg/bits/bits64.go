// Copyright 2018 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package bits includes the bit and alignment arithmetic used for block
// orders.
package bits

import "math/bits"

// TrailingZeros64 returns the number of bits before the least significant 1
// bit in x; in other words, it returns the index of the least significant 1
// bit in x. If x is 0, TrailingZeros64 returns 64.
func TrailingZeros64(x uint64) int {
	return bits.TrailingZeros64(x)
}

// MostSignificantOne64 returns the index of the most significant 1 bit in
// x. If x is 0, MostSignificantOne64 returns 64.
func MostSignificantOne64(x uint64) int {
	if x == 0 {
		return 64
	}
	return 63 - bits.LeadingZeros64(x)
}

// AlignDown64 rounds x down to a multiple of align.
//
// Precondition: align is a power of two.
func AlignDown64(x, align uint64) uint64 {
	return x &^ (align - 1)
}

// AlignUp64 rounds x up to a multiple of align. The result wraps if x is
// within align of the top of the address space.
//
// Precondition: align is a power of two.
func AlignUp64(x, align uint64) uint64 {
	return AlignDown64(x+align-1, align)
}

// IsAligned64 returns true if x is a multiple of align.
//
// Precondition: align is a power of two.
func IsAligned64(x, align uint64) bool {
	return x&(align-1) == 0
}
