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
	"testing"
	"unsafe"

	"pinkyos.dev/pinkyos/pkg/hostarch"
)

func newMemory(t *testing.T, base, size uint64) *Memory {
	t.Helper()
	m, err := New(base, size)
	if err != nil {
		t.Fatalf("New(%#x, %#x): %v", base, size, err)
	}
	t.Cleanup(func() {
		if err := m.Release(); err != nil {
			t.Errorf("Release: %v", err)
		}
	})
	return m
}

func TestNewInvalid(t *testing.T) {
	for _, tc := range []struct {
		name       string
		base, size uint64
	}{
		{name: "misaligned base", base: 0x40000010, size: hostarch.PageSize},
		{name: "misaligned size", base: 0x40000000, size: 100},
		{name: "empty", base: 0x40000000, size: 0},
		{name: "overflow", base: ^uint64(0) &^ (hostarch.PageSize - 1), size: 2 * hostarch.PageSize},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if m, err := New(tc.base, tc.size); err == nil {
				m.Release()
				t.Errorf("New(%#x, %#x) succeeded, want error", tc.base, tc.size)
			}
		})
	}
}

func TestTranslation(t *testing.T) {
	const base = 0x40000000
	m := newMemory(t, base, 4*hostarch.PageSize)

	if got, want := m.End(), uint64(base+4*hostarch.PageSize); got != want {
		t.Errorf("End() = %#x, want %#x", got, want)
	}
	for _, pa := range []uint64{base, base + 8, base + hostarch.PageSize, m.End() - 1} {
		p := m.Pointer(pa)
		got, ok := m.PhysicalFor(p)
		if !ok || got != pa {
			t.Errorf("PhysicalFor(Pointer(%#x)) = %#x, %t, want %#x, true", pa, got, ok, pa)
		}
	}

	var local uint64
	if _, ok := m.PhysicalFor(unsafe.Pointer(&local)); ok {
		t.Errorf("PhysicalFor(stack pointer) succeeded")
	}
}

func TestPointerOutOfRange(t *testing.T) {
	m := newMemory(t, 0x1000, hostarch.PageSize)
	defer func() {
		if recover() == nil {
			t.Errorf("Pointer(End()) did not panic")
		}
	}()
	m.Pointer(m.End())
}

func TestZeroAndDecommit(t *testing.T) {
	const base = 0x80000000
	m := newMemory(t, base, 2*hostarch.PageSize)

	b, err := m.Slice(base, 2*hostarch.PageSize)
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	for i := range b {
		b[i] = 0xaa
	}

	m.Zero(base+16, 16)
	for i := 16; i < 32; i++ {
		if b[i] != 0 {
			t.Fatalf("byte %d = %#x after Zero, want 0", i, b[i])
		}
	}
	if b[15] != 0xaa || b[32] != 0xaa {
		t.Errorf("Zero touched bytes outside its range")
	}

	if err := m.Decommit(base+hostarch.PageSize, hostarch.PageSize); err != nil {
		t.Fatalf("Decommit: %v", err)
	}
	for i := hostarch.PageSize; i < 2*hostarch.PageSize; i++ {
		if b[i] != 0 {
			t.Fatalf("byte %d = %#x after Decommit, want 0", i, b[i])
		}
	}
	if b[hostarch.PageSize-1] != 0xaa {
		t.Errorf("Decommit touched the first page")
	}

	if err := m.Decommit(base+1, hostarch.PageSize); err == nil {
		t.Errorf("Decommit of misaligned range succeeded")
	}
	if _, err := m.Slice(base, 3*hostarch.PageSize); err == nil {
		t.Errorf("Slice beyond End succeeded")
	}
}
