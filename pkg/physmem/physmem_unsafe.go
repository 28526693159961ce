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

package physmem

import (
	"fmt"
	"unsafe"
)

// Pointer returns the host pointer backing physical address pa. It panics
// if pa is outside the memory.
func (m *Memory) Pointer(pa uint64) unsafe.Pointer {
	if pa < m.base || pa >= m.End() {
		panic(fmt.Sprintf("physical address %#x outside of [%#x, %#x)", pa, m.base, m.End()))
	}
	return unsafe.Pointer(&m.mapping[pa-m.base])
}

// PhysicalFor returns the physical address backing host pointer p, or false
// if p does not point into the memory.
func (m *Memory) PhysicalFor(p unsafe.Pointer) (uint64, bool) {
	if len(m.mapping) == 0 {
		return 0, false
	}
	start := uintptr(unsafe.Pointer(&m.mapping[0]))
	addr := uintptr(p)
	if addr < start || addr-start >= uintptr(len(m.mapping)) {
		return 0, false
	}
	return m.base + uint64(addr-start), true
}
