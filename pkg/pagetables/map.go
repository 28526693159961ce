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
	"fmt"

	"github.com/pkg/errors"

	"pinkyos.dev/pinkyos/pkg/errors/memerr"
	"pinkyos.dev/pinkyos/pkg/hostarch"
)

// MapPages maps [start, end) to physical memory starting at physical, one
// page at a time, allocating tables as needed. It returns the number of
// leaves installed.
//
// A leaf that is already valid is never overwritten: MapPages stops with
// ErrAlreadyMapped. On any error the leaves installed for earlier pages stay
// in place; the returned count tells the caller how many to tear down.
//
// Precondition: start, end and physical are page aligned, start <= end,
// physical fits in the output address range and mt is valid.
func (p *PageTables) MapPages(start, end hostarch.Addr, physical uint64, opts MapOpts, mt hostarch.MemoryType) (int, error) {
	if !start.IsPageAligned() || !end.IsPageAligned() || physical%hostarch.PageSize != 0 {
		panic(fmt.Sprintf("unaligned mapping [%v, %v) -> %#x", start, end, physical))
	}
	if end < start {
		panic(fmt.Sprintf("inverted mapping [%v, %v)", start, end))
	}
	if size := uint64(end - start); size > 0 {
		if last := physical + size - 1; last < physical || last >= 1<<hostarch.PhysicalAddressBits {
			panic(fmt.Sprintf("mapping [%v, %v) -> %#x exceeds the output address range", start, end, physical))
		}
	}
	if !mt.Valid() {
		panic(fmt.Sprintf("invalid memory type %d", mt))
	}

	mapped := 0
	for va := start; va < end; va += hostarch.PageSize {
		pte, err := p.Walk(va, true)
		if err != nil {
			return mapped, err
		}
		if pte.Valid() {
			return mapped, errors.Wrapf(memerr.ErrAlreadyMapped, "va %v: leaf %v", va, pte)
		}
		pte.Set(physical+uint64(va-start), opts, mt)
		mapped++
	}
	return mapped, nil
}

// Lookup returns the physical address, options and memory type that va
// translates to. It never allocates.
func (p *PageTables) Lookup(va hostarch.Addr) (uint64, MapOpts, hostarch.MemoryType, error) {
	pte, err := p.Walk(va, false)
	if err != nil {
		return 0, MapOpts{}, 0, err
	}
	if !pte.Valid() {
		return 0, MapOpts{}, 0, errors.Wrapf(memerr.ErrNotMapped, "va %v: invalid leaf", va)
	}
	return pte.Address() + va.PageOffset(), pte.Opts(), pte.MemoryType(), nil
}
