// Copyright 2025 The gVisor Authors.
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

package hostarch

import (
	"fmt"
	"strings"
)

// MemoryType specifies CPU memory access behavior. A MemoryType is also the
// attribute index (AttrIndx) written into leaf descriptors; MAIR returns the
// MAIR_EL1 value that gives each index its meaning.
type MemoryType uint8

const (
	// MemoryTypeWriteBack is normal, inner and outer write-back
	// cacheable memory. This memory type is appropriate for typical kernel
	// and application memory and must be the zero value for MemoryType.
	MemoryTypeWriteBack MemoryType = iota

	// MemoryTypeWriteCombine is normal, inner and outer non-cacheable
	// memory.
	MemoryTypeWriteCombine

	// MemoryTypeUncached is Device-nGnRnE memory, used for MMIO.
	MemoryTypeUncached

	// NumMemoryTypes is the number of memory types.
	NumMemoryTypes
)

// mairAttrs are the MAIR_EL1 attribute encodings, indexed by MemoryType.
var mairAttrs = [NumMemoryTypes]uint64{
	MemoryTypeWriteBack:    0xff,
	MemoryTypeWriteCombine: 0x44,
	MemoryTypeUncached:     0x00,
}

// Valid returns true if mt can be encoded as an attribute index.
func (mt MemoryType) Valid() bool {
	return mt < NumMemoryTypes
}

// MAIRAttr returns the 8-bit MAIR_EL1 attribute field for mt.
//
// Precondition: mt.Valid().
func (mt MemoryType) MAIRAttr() uint64 {
	return mairAttrs[mt]
}

// MAIR returns the MAIR_EL1 register value for all memory types.
func MAIR() uint64 {
	var v uint64
	for i, attr := range mairAttrs {
		v |= attr << (8 * uint(i))
	}
	return v
}

// String implements fmt.Stringer.String.
func (mt MemoryType) String() string {
	switch mt {
	case MemoryTypeWriteBack:
		return "WriteBack"
	case MemoryTypeWriteCombine:
		return "WriteCombine"
	case MemoryTypeUncached:
		return "Uncached"
	default:
		return fmt.Sprintf("%d", mt)
	}
}

// ShortString returns a two-character string compactly representing the
// MemoryType.
func (mt MemoryType) ShortString() string {
	switch mt {
	case MemoryTypeWriteBack:
		return "WB"
	case MemoryTypeWriteCombine:
		return "WC"
	case MemoryTypeUncached:
		return "UC"
	default:
		return fmt.Sprintf("%02d", mt)
	}
}

// ParseMemoryType parses the short or long form of a MemoryType, ignoring
// case.
func ParseMemoryType(s string) (MemoryType, error) {
	for mt := MemoryType(0); mt < NumMemoryTypes; mt++ {
		if strings.EqualFold(s, mt.String()) || strings.EqualFold(s, mt.ShortString()) {
			return mt, nil
		}
	}
	return 0, fmt.Errorf("unknown memory type %q", s)
}
