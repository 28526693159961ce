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

package mm

import (
	"pinkyos.dev/pinkyos/pkg/hostarch"
	"pinkyos.dev/pinkyos/pkg/pagetables"
)

// AddressSpace is a set of translation tables whose pages come from a
// MemoryManager. All methods take the manager's lock.
//
// Tables are never freed; tearing down an address space is not supported.
type AddressSpace struct {
	mm *MemoryManager

	// pt is protected by mm.mu.
	pt *pagetables.PageTables
}

// NewAddressSpace allocates a root table and returns an empty address
// space.
func (m *MemoryManager) NewAddressSpace() (*AddressSpace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.usableLocked(); err != nil {
		return nil, m.check(err)
	}
	pt, err := pagetables.New(m.tables)
	m.updateMetricsLocked()
	if err != nil {
		return nil, m.check(err)
	}
	return &AddressSpace{mm: m, pt: pt}, nil
}

// RootPhysical returns the physical address of the root table.
func (as *AddressSpace) RootPhysical() uint64 {
	return as.pt.RootPhysical()
}

// TTBR returns the translation table base register value for the given
// ASID.
func (as *AddressSpace) TTBR(asid uint16) uint64 {
	return as.pt.TTBR(asid)
}

// Walk returns a copy of the leaf descriptor for va. With alloc set, missing
// tables are allocated on the way down.
func (as *AddressSpace) Walk(va hostarch.Addr, alloc bool) (pagetables.PTE, error) {
	m := as.mm
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.usableLocked(); err != nil {
		return 0, m.check(err)
	}
	pte, err := as.pt.Walk(va, alloc)
	m.updateMetricsLocked()
	if err != nil {
		return 0, m.check(err)
	}
	return *pte, nil
}

// MapPages maps [start, end) to physical memory starting at physical. It
// returns the number of pages mapped, which is less than requested on error;
// earlier pages stay mapped.
//
// Precondition: start, end and physical are page aligned and mt is valid.
func (as *AddressSpace) MapPages(start, end hostarch.Addr, physical uint64, opts pagetables.MapOpts, mt hostarch.MemoryType) (int, error) {
	m := as.mm
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.usableLocked(); err != nil {
		return 0, m.check(err)
	}
	n, err := as.pt.MapPages(start, end, physical, opts, mt)
	m.metrics.PagesMapped.IncrementBy(uint64(n))
	m.updateMetricsLocked()
	return n, m.check(err)
}

// Lookup returns the physical address, options and memory type va maps to.
func (as *AddressSpace) Lookup(va hostarch.Addr) (uint64, pagetables.MapOpts, hostarch.MemoryType, error) {
	m := as.mm
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.usableLocked(); err != nil {
		return 0, pagetables.MapOpts{}, 0, m.check(err)
	}
	pa, opts, mt, err := as.pt.Lookup(va)
	return pa, opts, mt, m.check(err)
}
