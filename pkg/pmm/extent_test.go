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
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestExtentSetAdd(t *testing.T) {
	for _, tc := range []struct {
		name string
		add  []Extent
		want []Extent
	}{
		{
			name: "disjoint",
			add:  []Extent{{0x5000, 0x6000}, {0x1000, 0x2000}, {0x3000, 0x4000}},
			want: []Extent{{0x1000, 0x2000}, {0x3000, 0x4000}, {0x5000, 0x6000}},
		},
		{
			name: "adjacent",
			add:  []Extent{{0x1000, 0x2000}, {0x2000, 0x3000}},
			want: []Extent{{0x1000, 0x3000}},
		},
		{
			name: "overlapping",
			add:  []Extent{{0x1000, 0x3000}, {0x2000, 0x4000}},
			want: []Extent{{0x1000, 0x4000}},
		},
		{
			name: "contained",
			add:  []Extent{{0x1000, 0x8000}, {0x2000, 0x3000}},
			want: []Extent{{0x1000, 0x8000}},
		},
		{
			name: "bridging",
			add:  []Extent{{0x1000, 0x2000}, {0x3000, 0x4000}, {0x5000, 0x6000}, {0x1800, 0x5800}},
			want: []Extent{{0x1000, 0x6000}},
		},
		{
			name: "same start",
			add:  []Extent{{0x1000, 0x2000}, {0x1000, 0x3000}},
			want: []Extent{{0x1000, 0x3000}},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s := NewExtentSet()
			for _, e := range tc.add {
				s.Add(e)
			}
			if diff := cmp.Diff(tc.want, s.Extents()); diff != "" {
				t.Errorf("Extents() mismatch (-want +got):\n%s", diff)
			}
			if s.Len() != len(tc.want) {
				t.Errorf("Len() = %d, want %d", s.Len(), len(tc.want))
			}
		})
	}
}

func TestExtentSetQueries(t *testing.T) {
	s := NewExtentSet()
	s.Add(Extent{0x1000, 0x2000})
	s.Add(Extent{0x4000, 0x6000})
	s.Add(Extent{0x8000, 0x9000})

	if got, want := s.TotalLength(), uint64(0x4000); got != want {
		t.Errorf("TotalLength() = %#x, want %#x", got, want)
	}
	for _, tc := range []struct {
		query Extent
		want  []Extent
	}{
		{query: Extent{0x0, 0x1000}},
		{query: Extent{0x0, 0x1001}, want: []Extent{{0x1000, 0x2000}}},
		{query: Extent{0x1800, 0x4800}, want: []Extent{{0x1000, 0x2000}, {0x4000, 0x6000}}},
		{query: Extent{0x4000, 0x4001}, want: []Extent{{0x4000, 0x6000}}},
		{query: Extent{0x6000, 0x8000}},
		{query: Extent{0x0, 0x10000}, want: []Extent{{0x1000, 0x2000}, {0x4000, 0x6000}, {0x8000, 0x9000}}},
	} {
		got := s.Overlapping(tc.query)
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Errorf("Overlapping(%v) mismatch (-want +got):\n%s", tc.query, diff)
		}
		if s.Overlaps(tc.query) != (len(tc.want) > 0) {
			t.Errorf("Overlaps(%v) = %t, want %t", tc.query, !(len(tc.want) > 0), len(tc.want) > 0)
		}
	}
	for addr, want := range map[uint64]bool{0xfff: false, 0x1000: true, 0x1fff: true, 0x2000: false, 0x5fff: true} {
		if got := s.Contains(addr); got != want {
			t.Errorf("Contains(%#x) = %t, want %t", addr, got, want)
		}
	}
}

func TestExtent(t *testing.T) {
	e := Extent{Start: 0x1000, End: 0x3000}
	if got := e.String(); got != "[0x1000, 0x3000)" {
		t.Errorf("String() = %q", got)
	}
	if got := e.Intersect(Extent{0x2000, 0x5000}); got != (Extent{0x2000, 0x3000}) {
		t.Errorf("Intersect() = %v", got)
	}
	if (Extent{0x3000, 0x1000}).Length() != 0 {
		t.Errorf("inverted extent has non-zero length")
	}
	if e.Overlaps(Extent{0x3000, 0x4000}) {
		t.Errorf("adjacent extents overlap")
	}
}
