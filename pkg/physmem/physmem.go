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

// Package physmem simulates a range of physical memory with an anonymous host
// mapping.
//
// Physical address pa in [Base, End) is backed by byte pa-Base of the
// mapping. Translation in both directions is what a kernel does with its
// linear map (p2v and v2p); here the "virtual" side is a host pointer.
package physmem

import (
	"fmt"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"pinkyos.dev/pinkyos/pkg/hostarch"
)

// Memory is a simulated physical memory range.
type Memory struct {
	base    uint64
	mapping []byte
}

// New maps size bytes of zeroed memory to stand in for physical addresses
// [base, base+size). Both must be page aligned.
func New(base, size uint64) (*Memory, error) {
	if base%hostarch.PageSize != 0 || size%hostarch.PageSize != 0 {
		return nil, fmt.Errorf("physical range [%#x, +%#x) is not page aligned", base, size)
	}
	if size == 0 {
		return nil, fmt.Errorf("physical range at %#x is empty", base)
	}
	if base+size < base {
		return nil, fmt.Errorf("physical range [%#x, +%#x) overflows", base, size)
	}
	mapping, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS|unix.MAP_NORESERVE)
	if err != nil {
		return nil, errors.Wrapf(err, "mmap of %d bytes for [%#x, %#x)", size, base, base+size)
	}
	return &Memory{base: base, mapping: mapping}, nil
}

// Base returns the first physical address.
func (m *Memory) Base() uint64 {
	return m.base
}

// End returns the physical address one past the last byte.
func (m *Memory) End() uint64 {
	return m.base + uint64(len(m.mapping))
}

// Size returns the number of bytes in the range.
func (m *Memory) Size() uint64 {
	return uint64(len(m.mapping))
}

// Contains returns true if [pa, pa+length) lies within the range.
func (m *Memory) Contains(pa, length uint64) bool {
	end := pa + length
	return pa >= m.base && end >= pa && end <= m.End()
}

// Slice returns the bytes backing [pa, pa+length).
func (m *Memory) Slice(pa, length uint64) ([]byte, error) {
	if !m.Contains(pa, length) {
		return nil, fmt.Errorf("physical range [%#x, +%#x) outside of [%#x, %#x)", pa, length, m.base, m.End())
	}
	off := pa - m.base
	return m.mapping[off : off+length : off+length], nil
}

// Zero clears [pa, pa+length). The range must be within the memory.
func (m *Memory) Zero(pa, length uint64) {
	b, err := m.Slice(pa, length)
	if err != nil {
		panic(err)
	}
	clear(b)
}

// Decommit returns the pages backing [pa, pa+length) to the host. They read
// back as zero. Both ends must be page aligned.
func (m *Memory) Decommit(pa, length uint64) error {
	if pa%hostarch.PageSize != 0 || length%hostarch.PageSize != 0 {
		return fmt.Errorf("decommit of [%#x, +%#x) is not page aligned", pa, length)
	}
	b, err := m.Slice(pa, length)
	if err != nil {
		return err
	}
	if len(b) == 0 {
		return nil
	}
	return errors.Wrapf(unix.Madvise(b, unix.MADV_DONTNEED), "madvise(DONTNEED) [%#x, +%#x)", pa, length)
}

// Release unmaps the memory. No pointer obtained from it may be used after.
func (m *Memory) Release() error {
	if m.mapping == nil {
		return nil
	}
	err := unix.Munmap(m.mapping)
	m.mapping = nil
	return errors.Wrap(err, "munmap")
}
