// Copyright 2019 The gVisor Authors.
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

	"pinkyos.dev/pinkyos/pkg/hostarch"
)

// Descriptor bits, VMSAv8-64 4K granule.
const (
	typeValid = 1 << 0

	// typeTable marks a table descriptor at levels 0-2 and a page
	// descriptor at the last level. A valid descriptor without it at
	// levels 0-2 is a block.
	typeTable = 1 << 1

	attrIndxShift = 2
	attrIndxMask  = 0x7 << attrIndxShift

	// apUser is AP[1]: EL0 access.
	apUser = 1 << 6

	// apReadOnly is AP[2].
	apReadOnly = 1 << 7

	shInner = 0x3 << 8

	accessFlag = 1 << 10
	notGlobal  = 1 << 11

	// pxn and uxn forbid execution at EL1 and EL0.
	pxn = 1 << 53
	uxn = 1 << 54
)

// MapOpts are the attributes of a leaf mapping.
type MapOpts struct {
	// AccessType defines permissions. Read is implied by a valid leaf.
	AccessType hostarch.AccessType

	// User indicates the page is accessible from EL0.
	User bool

	// Global indicates the translation is shared by every ASID.
	Global bool
}

// PTE is a translation table descriptor.
type PTE uint64

// PTEs is one translation table.
type PTEs [hostarch.EntriesPerTable]PTE

// Valid returns true iff this descriptor is valid.
func (p *PTE) Valid() bool {
	return *p&typeValid != 0
}

// IsTable returns true iff the table bit is set. At the last level this
// means the descriptor is a page.
func (p *PTE) IsTable() bool {
	return *p&typeTable != 0
}

// Address extracts the output address.
func (p *PTE) Address() uint64 {
	return uint64(*p) & hostarch.PhysicalAddressMask
}

// Clear clears this descriptor.
func (p *PTE) Clear() {
	*p = 0
}

// setPageTable makes this descriptor point at the table at physical
// address addr.
func (p *PTE) setPageTable(addr uint64) {
	*p = PTE(addr&hostarch.PhysicalAddressMask) | typeValid | typeTable
}

// Set sets this leaf to map addr with the given options and memory type.
//
// Precondition: addr is page aligned and mt is valid.
func (p *PTE) Set(addr uint64, opts MapOpts, mt hostarch.MemoryType) {
	v := PTE(addr&hostarch.PhysicalAddressMask) | typeValid | typeTable | accessFlag | shInner
	v |= PTE(mt) << attrIndxShift
	if !opts.AccessType.Write {
		v |= apReadOnly
	}
	if opts.User {
		v |= apUser
	}
	if !opts.Global {
		v |= notGlobal
	}
	switch {
	case !opts.AccessType.Execute:
		v |= pxn | uxn
	case opts.User:
		// User code never runs privileged.
		v |= pxn
	default:
		v |= uxn
	}
	*p = v
}

// Opts returns the options of a valid leaf.
func (p *PTE) Opts() MapOpts {
	v := *p
	user := v&apUser != 0
	exec := v&pxn == 0
	if user {
		exec = v&uxn == 0
	}
	return MapOpts{
		AccessType: hostarch.AccessType{
			Read:    v&typeValid != 0,
			Write:   v&apReadOnly == 0,
			Execute: exec,
		},
		User:   user,
		Global: v&notGlobal == 0,
	}
}

// MemoryType returns the MAIR index of a valid leaf.
func (p *PTE) MemoryType() hostarch.MemoryType {
	return hostarch.MemoryType((*p & attrIndxMask) >> attrIndxShift)
}

// String implements fmt.Stringer.String.
func (p *PTE) String() string {
	if !p.Valid() {
		return "invalid"
	}
	if !p.IsTable() {
		return fmt.Sprintf("block %#x", p.Address())
	}
	return fmt.Sprintf("%#x %s %s", p.Address(), p.Opts().AccessType, p.MemoryType().ShortString())
}
