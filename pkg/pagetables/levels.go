// Copyright 2026 The gVisor Authors.
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

package pagetables

import (
	"pinkyos.dev/pinkyos/pkg/hostarch"
)

// MaxLevels is the number of slots in a Levels table. The 4K granule with a
// 48-bit input address uses four of them; the last slot stays zero.
const MaxLevels = 5

// Level holds the position of one level's index within a virtual address.
type Level struct {
	// Shift is the bit position of the lowest index bit.
	Shift uint

	// Mask selects the index bits, unshifted.
	Mask uint64
}

// Levels is the per-level shift and mask table, top level first.
type Levels struct {
	// Count is the number of real levels.
	Count int

	// Level holds the real levels in [0, Count); the rest are zero.
	Level [MaxLevels]Level
}

// NewLevels computes the table for a granule of 1<<pageShift bytes and count
// levels. Each level resolves pageShift-EntryShift bits.
func NewLevels(pageShift uint, count int) Levels {
	if count < 1 || count > MaxLevels {
		panic("invalid number of translation levels")
	}
	bitsPerLevel := pageShift - hostarch.EntryShift
	l := Levels{Count: count}
	for i := 0; i < count; i++ {
		shift := pageShift + bitsPerLevel*uint(count-1-i)
		l.Level[i] = Level{
			Shift: shift,
			Mask:  (uint64(1)<<bitsPerLevel - 1) << shift,
		}
	}
	return l
}

// Levels4K is the table for the 4K granule with 48-bit addresses.
var Levels4K = NewLevels(hostarch.PageShift, hostarch.TableLevels)

// Index returns the index into the level's table for va.
func (l *Levels) Index(level int, va hostarch.Addr) int {
	lv := &l.Level[level]
	return int((uint64(va) & lv.Mask) >> lv.Shift)
}

// Last returns the index of the leaf level.
func (l *Levels) Last() int {
	return l.Count - 1
}
