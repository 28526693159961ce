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

// Package pagetables walks and populates VMSAv8-64 translation tables.
//
// Tables are pages of physical memory obtained from an Allocator, which
// also translates between a table's physical address and a pointer to it.
// Only table and page descriptors are used; block descriptors are rejected
// wherever they are found.
//
// PageTables does no locking. Callers serialize every call; see package mm.
package pagetables

import (
	"github.com/pkg/errors"
)

// Address space layout constants.
const (
	ttbrASIDOffset = 48
	ttbrASIDMask   = 0xffff
)

// PageTables is an address space: a root table and the tables below it.
type PageTables struct {
	// Allocator is used to allocate and translate tables.
	Allocator Allocator

	// levels is the shift and mask table used to index each level.
	levels *Levels

	// root is the top level table.
	root *PTEs

	// rootPhysical is the physical address of root.
	rootPhysical uint64
}

// New returns new PageTables with a freshly allocated root, indexed with
// Levels4K.
func New(a Allocator) (*PageTables, error) {
	return NewWithLevels(a, &Levels4K)
}

// NewWithLevels is like New, with an explicit level table.
func NewWithLevels(a Allocator, levels *Levels) (*PageTables, error) {
	root, err := a.NewPTEs()
	if err != nil {
		return nil, errors.Wrap(err, "allocating root table")
	}
	return &PageTables{
		Allocator:    a,
		levels:       levels,
		root:         root,
		rootPhysical: a.PhysicalFor(root),
	}, nil
}

// RootPhysical returns the physical address of the root table.
func (p *PageTables) RootPhysical() uint64 {
	return p.rootPhysical
}

// TTBR returns the translation table base register value for this address
// space under the given ASID.
func (p *PageTables) TTBR(asid uint16) uint64 {
	return p.rootPhysical | (uint64(asid)&ttbrASIDMask)<<ttbrASIDOffset
}

// Levels returns the level table used by p.
func (p *PageTables) Levels() *Levels {
	return p.levels
}
