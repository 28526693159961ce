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

package pmm

import (
	"fmt"

	"github.com/pkg/errors"

	"pinkyos.dev/pinkyos/pkg/errors/memerr"
	"pinkyos.dev/pinkyos/pkg/hostarch"
)

// Stats is a snapshot of the map's bookkeeping.
type Stats struct {
	// MaxOrder is the order of the largest block.
	MaxOrder int

	// HeapStart is the first allocatable address.
	HeapStart uint64

	// HeapEnd is one past the last allocatable address.
	HeapEnd uint64

	// Poff is the number of pages between the max-order-aligned origin
	// and HeapStart.
	Poff uint64

	// FreeBlocks holds the length of each free list, indexed by order.
	FreeBlocks []uint64

	// FreePages is the number of pages on all free lists.
	FreePages uint64

	// HeapPages is the number of pages between HeapStart and HeapEnd.
	HeapPages uint64

	// ReservedPages is the number of pages fenced off the free lists:
	// keep-out pages plus the window pages outside of the heap.
	ReservedPages uint64

	// Splits is the number of blocks split into two buddies.
	Splits uint64

	// Coalesces is the number of buddy pairs merged.
	Coalesces uint64
}

// Stats returns a snapshot of the map's bookkeeping.
func (p *PhysMap) Stats() Stats {
	s := Stats{
		MaxOrder:      p.maxOrder,
		HeapStart:     p.heapStart,
		HeapEnd:       p.extent.End,
		Poff:          p.poff,
		FreeBlocks:    append([]uint64(nil), p.free...),
		ReservedPages: p.reservedPages,
		Splits:        p.splits,
		Coalesces:     p.coalesces,
	}
	if p.Initialized() {
		s.HeapPages = (p.extent.End - p.heapStart) >> hostarch.PageShift
	}
	for o, n := range p.free {
		s.FreePages += n << o
	}
	return s
}

// FreeBytes returns the number of bytes on all free lists.
func (p *PhysMap) FreeBytes() uint64 {
	var n uint64
	for o, count := range p.free {
		n += count << (o + hostarch.PageShift)
	}
	return n
}

// Reserved returns true if the page containing addr can never be allocated:
// it holds allocator bookkeeping, lies in a keep-out extent, or pads the
// window past the end of the extent.
func (p *PhysMap) Reserved(addr uint64) bool {
	if !p.Initialized() {
		return false
	}
	if addr >= p.extent.Start && addr < p.heapStart {
		return true
	}
	if addr < p.origin || addr >= p.windowEnd {
		return false
	}
	return p.pages[p.indexOf(addr)].reserved()
}

// CheckInvariants walks every free list and the descriptor array, and
// returns an error wrapping ErrBookkeepingCorruption describing the first
// inconsistency found.
//
// It checks that every linked descriptor is reached from exactly one list,
// that links are mutually consistent and end in the head and tail tags, that
// every free block is aligned to its order and carries it, and that free
// blocks neither overlap each other nor any reserved page.
func (p *PhysMap) CheckInvariants() error {
	if !p.Initialized() {
		return memerr.ErrNotInitialized
	}
	corrupt := func(format string, args ...any) error {
		return errors.Wrap(memerr.ErrBookkeepingCorruption, fmt.Sprintf(format, args...))
	}

	covered := make([]bool, len(p.pages))
	visited := make([]bool, len(p.pages))
	for order := 0; order <= p.maxOrder; order++ {
		var n uint64
		prev := linkHead
		for l := p.heads[order]; l != linkNone; {
			i, ok := l.index()
			if !ok {
				return corrupt("order %d list reaches tag %d after %d entries", order, l, n)
			}
			if i >= uint64(len(p.pages)) {
				return corrupt("order %d list links to descriptor %d of %d", order, i, len(p.pages))
			}
			if visited[i] {
				return corrupt("descriptor %d reached twice, second time on order %d list", i, order)
			}
			visited[i] = true
			d := &p.pages[i]
			if d.prev != prev {
				return corrupt("descriptor %d has prev %d, want %d", i, d.prev, prev)
			}
			if int(d.order) != order {
				return corrupt("descriptor %d on order %d list has order %d", i, order, d.order)
			}
			if d.flags&flagAvailable == 0 {
				return corrupt("descriptor %d on order %d list is not flagged available", i, order)
			}
			size := uint64(1) << order
			if i%size != 0 {
				return corrupt("free block at descriptor %d is misaligned for order %d", i, order)
			}
			for j := i; j < i+size; j++ {
				if covered[j] {
					return corrupt("page %#x is in two free blocks", p.addrOf(j))
				}
				if p.pages[j].reserved() {
					return corrupt("reserved page %#x is in free block %#x order %d", p.addrOf(j), p.addrOf(i), order)
				}
				covered[j] = true
			}
			n++
			prev = indexLink(i)
			switch d.next {
			case linkTail:
				l = linkNone
			case linkNone, linkHead:
				return corrupt("descriptor %d on order %d list has next tag %d", i, order, d.next)
			default:
				l = d.next
			}
		}
		if n != p.free[order] {
			return corrupt("order %d list has %d entries, count is %d", order, n, p.free[order])
		}
	}
	for i := range p.pages {
		if p.pages[i].linked() && !visited[i] {
			return corrupt("descriptor %d is linked but on no list", i)
		}
	}
	return nil
}
