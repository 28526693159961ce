// Copyright 2018 Google Inc.
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

package bits

import "testing"

func TestTrailingZeros64(t *testing.T) {
	for _, tc := range []struct {
		x    uint64
		want int
	}{
		{0, 64},
		{1, 0},
		{0x1000, 12},
		{0x40030000, 16},
		{1 << 63, 63},
	} {
		if got := TrailingZeros64(tc.x); got != tc.want {
			t.Errorf("TrailingZeros64(%#x) = %d, want %d", tc.x, got, tc.want)
		}
	}
}

func TestMostSignificantOne64(t *testing.T) {
	for _, tc := range []struct {
		x    uint64
		want int
	}{
		{0, 64},
		{1, 0},
		{3, 1},
		// Pages in a 64 MiB extent: max order 14.
		{0x4000, 14},
		// Pages in 64 MiB plus one page still round down.
		{0x4001, 14},
		{^uint64(0), 63},
	} {
		if got := MostSignificantOne64(tc.x); got != tc.want {
			t.Errorf("MostSignificantOne64(%#x) = %d, want %d", tc.x, got, tc.want)
		}
	}
}

func TestAlign64(t *testing.T) {
	for _, tc := range []struct {
		x, align       uint64
		down, up       uint64
		alreadyAligned bool
	}{
		{x: 0, align: 0x1000, down: 0, up: 0, alreadyAligned: true},
		{x: 0x40030000, align: 0x4000000, down: 0x40000000, up: 0x44000000},
		{x: 0x44000000, align: 0x4000000, down: 0x44000000, up: 0x44000000, alreadyAligned: true},
		{x: 0x1001, align: 0x1000, down: 0x1000, up: 0x2000},
		{x: 7, align: 1, down: 7, up: 7, alreadyAligned: true},
		// Rounding up near the top wraps.
		{x: ^uint64(0), align: 0x1000, down: ^uint64(0xfff), up: 0},
	} {
		if got := AlignDown64(tc.x, tc.align); got != tc.down {
			t.Errorf("AlignDown64(%#x, %#x) = %#x, want %#x", tc.x, tc.align, got, tc.down)
		}
		if got := AlignUp64(tc.x, tc.align); got != tc.up {
			t.Errorf("AlignUp64(%#x, %#x) = %#x, want %#x", tc.x, tc.align, got, tc.up)
		}
		if got := IsAligned64(tc.x, tc.align); got != tc.alreadyAligned {
			t.Errorf("IsAligned64(%#x, %#x) = %t, want %t", tc.x, tc.align, got, tc.alreadyAligned)
		}
	}
}
