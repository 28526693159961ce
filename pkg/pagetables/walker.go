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

	"pinkyos.dev/pinkyos/pkg/errors/memerr"
	"pinkyos.dev/pinkyos/pkg/hostarch"
	"pinkyos.dev/pinkyos/pkg/log"
)

// Walk returns the leaf descriptor for va, or an error.
//
// The returned pointer refers to the descriptor inside its table; the caller
// may read or overwrite it. Walk descends one level at a time:
//
//   - a block descriptor fails with ErrUnsupportedBlockMapping.
//   - an invalid descriptor fails with ErrNotMapped, unless alloc is set, in
//     which case a zeroed table is allocated and installed. Allocation fails
//     with ErrOutOfMemory when the allocator is exhausted.
//   - a table descriptor is followed.
//
// Tables installed before a failure are left in place.
func (p *PageTables) Walk(va hostarch.Addr, alloc bool) (*PTE, error) {
	entries := p.root
	last := p.levels.Last()
	for level := 0; level < last; level++ {
		pte := &entries[p.levels.Index(level, va)]
		switch {
		case pte.Valid() && !pte.IsTable():
			return nil, errors.Wrapf(memerr.ErrUnsupportedBlockMapping, "va %v: level %d descriptor %#x", va, level, uint64(*pte))
		case !pte.Valid() && !alloc:
			return nil, errors.Wrapf(memerr.ErrNotMapped, "va %v: no level %d table", va, level+1)
		case !pte.Valid():
			next, err := p.Allocator.NewPTEs()
			if err != nil {
				return nil, errors.Wrapf(err, "va %v: allocating level %d table", va, level+1)
			}
			phys := p.Allocator.PhysicalFor(next)
			pte.setPageTable(phys)
			log.Debugf("Installed level %d table %#x for va %v", level+1, phys, va)
			entries = next
		default:
			entries = p.Allocator.LookupPTEs(pte.Address())
		}
	}
	return &entries[p.levels.Index(last, va)], nil
}
