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
	"fmt"
	"unsafe"
)

// PhysicalMemory translates between physical addresses and host memory.
// *physmem.Memory implements it.
type PhysicalMemory interface {
	// Zero clears [pa, pa+length).
	Zero(pa, length uint64)

	// Pointer returns the host pointer backing pa.
	Pointer(pa uint64) unsafe.Pointer

	// PhysicalFor returns the physical address backing p.
	PhysicalFor(p unsafe.Pointer) (uint64, bool)
}

// PhysicalFor implements Allocator.PhysicalFor.
func (a *BuddyAllocator) PhysicalFor(ptes *PTEs) uint64 {
	pa, ok := a.mem.PhysicalFor(unsafe.Pointer(ptes))
	if !ok {
		panic(fmt.Sprintf("table %p is not in physical memory", ptes))
	}
	return pa
}

// LookupPTEs implements Allocator.LookupPTEs.
func (a *BuddyAllocator) LookupPTEs(physical uint64) *PTEs {
	return (*PTEs)(a.mem.Pointer(physical))
}
