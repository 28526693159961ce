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

package pmm

import (
	"fmt"

	"github.com/google/btree"
)

// Extent is a range of physical addresses [Start, End).
type Extent struct {
	Start uint64
	End   uint64
}

// String implements fmt.Stringer.String.
func (e Extent) String() string {
	return fmt.Sprintf("[%#x, %#x)", e.Start, e.End)
}

// Length returns the length of the extent in bytes.
func (e Extent) Length() uint64 {
	if e.End <= e.Start {
		return 0
	}
	return e.End - e.Start
}

// WellFormed returns true if Start < End.
func (e Extent) WellFormed() bool {
	return e.Start < e.End
}

// Contains returns true if addr is within the extent.
func (e Extent) Contains(addr uint64) bool {
	return e.Start <= addr && addr < e.End
}

// Overlaps returns true if the two extents share at least one byte.
func (e Extent) Overlaps(o Extent) bool {
	return e.Start < o.End && o.Start < e.End
}

// Intersect returns the bytes common to both extents. The result is empty
// (not WellFormed) if they do not overlap.
func (e Extent) Intersect(o Extent) Extent {
	return Extent{Start: max(e.Start, o.Start), End: min(e.End, o.End)}
}

// ExtentSet is a set of disjoint, non-adjacent extents ordered by start
// address. Adding an extent merges it with every extent it overlaps or
// touches.
//
// The zero value is not usable; use NewExtentSet.
type ExtentSet struct {
	tree *btree.BTreeG[Extent]
}

// btreeDegree is the degree of the underlying tree. Keep-out lists reported
// by firmware are short, so a small degree keeps nodes compact.
const btreeDegree = 8

// NewExtentSet returns an empty set.
func NewExtentSet() *ExtentSet {
	return &ExtentSet{
		tree: btree.NewG(btreeDegree, func(a, b Extent) bool { return a.Start < b.Start }),
	}
}

// Add inserts e into the set. e must be WellFormed.
func (s *ExtentSet) Add(e Extent) {
	if !e.WellFormed() {
		panic(fmt.Sprintf("adding malformed extent %v", e))
	}
	merged := e
	var absorbed []Extent

	// The nearest extent starting at or below e may reach into it.
	s.tree.DescendLessOrEqual(Extent{Start: e.Start}, func(prev Extent) bool {
		if prev.End >= e.Start {
			merged.Start = prev.Start
			merged.End = max(merged.End, prev.End)
			absorbed = append(absorbed, prev)
		}
		return false
	})
	// Any extent starting inside or right after e is absorbed.
	s.tree.AscendGreaterOrEqual(Extent{Start: e.Start}, func(next Extent) bool {
		if next.Start > merged.End {
			return false
		}
		merged.End = max(merged.End, next.End)
		absorbed = append(absorbed, next)
		return true
	})
	for _, a := range absorbed {
		s.tree.Delete(a)
	}
	s.tree.ReplaceOrInsert(merged)
}

// Overlapping returns the extents in the set that overlap e, in address
// order.
func (s *ExtentSet) Overlapping(e Extent) []Extent {
	var out []Extent
	s.tree.DescendLessOrEqual(Extent{Start: e.Start}, func(prev Extent) bool {
		if prev.Overlaps(e) {
			out = append(out, prev)
		}
		return false
	})
	s.tree.AscendGreaterOrEqual(Extent{Start: e.Start}, func(next Extent) bool {
		if next.Start >= e.End {
			return false
		}
		if len(out) == 0 || out[len(out)-1] != next {
			out = append(out, next)
		}
		return true
	})
	return out
}

// Overlaps returns true if any extent in the set overlaps e.
func (s *ExtentSet) Overlaps(e Extent) bool {
	return len(s.Overlapping(e)) > 0
}

// Contains returns true if addr lies within an extent of the set.
func (s *ExtentSet) Contains(addr uint64) bool {
	return s.Overlaps(Extent{Start: addr, End: addr + 1})
}

// Extents returns every extent in the set in address order.
func (s *ExtentSet) Extents() []Extent {
	out := make([]Extent, 0, s.tree.Len())
	s.tree.Ascend(func(e Extent) bool {
		out = append(out, e)
		return true
	})
	return out
}

// Len returns the number of disjoint extents in the set.
func (s *ExtentSet) Len() int {
	return s.tree.Len()
}

// TotalLength returns the number of bytes covered by the set.
func (s *ExtentSet) TotalLength() uint64 {
	var n uint64
	s.tree.Ascend(func(e Extent) bool {
		n += e.Length()
		return true
	})
	return n
}
