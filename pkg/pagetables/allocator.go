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

package pagetables

import (
	"github.com/pkg/errors"

	"pinkyos.dev/pinkyos/pkg/hostarch"
)

// Allocator is used to allocate and map PTEs.
type Allocator interface {
	// NewPTEs returns a new, zeroed set of PTEs.
	NewPTEs() (*PTEs, error)

	// PhysicalFor gives the physical address for a set of PTEs.
	PhysicalFor(ptes *PTEs) uint64

	// LookupPTEs looks up PTEs by physical address.
	LookupPTEs(physical uint64) *PTEs
}

// PageAllocator hands out physical pages by order. *pmm.PhysMap implements
// it.
type PageAllocator interface {
	Allocate(order int) (uint64, error)
}

// BuddyAllocator allocates tables one page at a time from a PageAllocator.
//
// Tables are never freed: tearing down an address space is left to its
// owner.
type BuddyAllocator struct {
	pages PageAllocator
	mem   PhysicalMemory

	// allocated counts the tables handed out.
	allocated uint64
}

// NewBuddyAllocator returns an allocator drawing pages from pages, backed by
// mem.
func NewBuddyAllocator(pages PageAllocator, mem PhysicalMemory) *BuddyAllocator {
	return &BuddyAllocator{pages: pages, mem: mem}
}

// NewPTEs implements Allocator.NewPTEs.
func (a *BuddyAllocator) NewPTEs() (*PTEs, error) {
	pa, err := a.pages.Allocate(0)
	if err != nil {
		return nil, errors.Wrap(err, "allocating table page")
	}
	a.mem.Zero(pa, hostarch.PageSize)
	a.allocated++
	return a.LookupPTEs(pa), nil
}

// Allocated returns the number of tables allocated so far.
func (a *BuddyAllocator) Allocated() uint64 {
	return a.allocated
}
