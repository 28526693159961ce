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

// Package pmm implements the physical memory map: a binary buddy allocator
// over a single physical extent, with keep-out holes fenced off at
// initialization.
//
// The allocator is self-describing. Its page descriptors are laid over the
// first pages of the extent it manages, and the allocatable heap starts on
// the first page after them. Blocks of order o are 2^o pages long and are
// aligned to their size.
//
// Block arithmetic is done relative to an origin: the heap start rounded
// down to the maximum block size. The number of pages between the origin and
// the real heap start is poff. Descriptor i describes the page at
// origin + i*PageSize, so the first heap page has index poff. The window
// covered by descriptors runs from the origin to the extent end rounded up to
// the maximum block size. Pages of the window outside of the heap are fenced
// off the same way keep-out extents are.
//
// PhysMap does no locking. Callers serialize every call; see package mm.
package pmm

import (
	"fmt"
	"unsafe"

	"github.com/pkg/errors"

	"pinkyos.dev/pinkyos/pkg/bits"
	"pinkyos.dev/pinkyos/pkg/errors/memerr"
	"pinkyos.dev/pinkyos/pkg/hostarch"
	"pinkyos.dev/pinkyos/pkg/log"
)

// MaxOrder is the largest order a PhysMap ever uses. A single max order
// block spans 4 GiB.
const MaxOrder = 20

// Memory is the physical memory a PhysMap lays its descriptors over.
// *physmem.Memory implements it.
type Memory interface {
	// Pointer returns the host pointer backing physical address pa.
	Pointer(pa uint64) unsafe.Pointer

	// Contains returns true if [pa, pa+length) is backed.
	Contains(pa, length uint64) bool
}

// PhysMap is the physical memory map.
//
// The zero value is an uninitialized map; call Init before any other
// method.
type PhysMap struct {
	// extent is the managed extent, including bookkeeping.
	extent Extent

	// heapStart is the first allocatable address, page aligned.
	heapStart uint64

	// origin is heapStart rounded down to the max block size.
	origin uint64

	// windowEnd is extent.End rounded up to the max block size.
	windowEnd uint64

	// poff is the number of pages between origin and heapStart.
	poff uint64

	// maxOrder is the order of the largest block.
	maxOrder int

	// pages are the descriptors of the window, overlaid on the start of
	// the extent.
	pages []pageDesc

	// heads are the free list heads, indexed by order.
	heads []link

	// free counts the blocks on each free list.
	free []uint64

	// keepouts holds the keep-out extents accepted by Init, clamped to the
	// heap and rounded out to pages.
	keepouts *ExtentSet

	// reservedPages counts the window pages flagged keep-out.
	reservedPages uint64

	// splits and coalesces count block splits and buddy merges.
	splits    uint64
	coalesces uint64
}

// Initialized returns true once Init has succeeded.
func (p *PhysMap) Initialized() bool {
	return p.pages != nil
}

// MaxOrder returns the order of the largest block in the map.
func (p *PhysMap) MaxOrder() int {
	return p.maxOrder
}

// HeapStart returns the first allocatable address.
func (p *PhysMap) HeapStart() uint64 {
	return p.heapStart
}

// Extent returns the managed extent.
func (p *PhysMap) Extent() Extent {
	return p.extent
}

// maxOrderFor returns the highest order whose block fits in size bytes,
// capped at MaxOrder.
func maxOrderFor(size uint64) int {
	return min(bits.MostSignificantOne64(size>>hostarch.PageShift), MaxOrder)
}

// CheckExtent returns the error Init would return for extent before looking
// at memory or keep-outs.
func CheckExtent(extent Extent) error {
	if !bits.IsAligned64(extent.Start, hostarch.PageSize) || !bits.IsAligned64(extent.End, hostarch.PageSize) {
		return errors.Wrapf(memerr.ErrMisalignedExtent, "extent %v", extent)
	}
	if extent.Length() < hostarch.PageSize {
		return errors.Wrapf(memerr.ErrExtentTooSmall, "extent %v", extent)
	}
	return nil
}

// Init builds the map for extent, then fences off every keep-out extent.
//
// Init lays the descriptor array over the start of extent, so mem must back
// at least the first pages of it. Keep-out extents that lie wholly outside
// of the heap are ignored; one that overlaps the descriptor array is
// rejected with ErrBookkeepingCorruption.
//
// Every error returned by Init is fatal.
func (p *PhysMap) Init(mem Memory, extent Extent, keepouts []Extent) error {
	if p.Initialized() {
		panic("PhysMap initialized twice")
	}
	if err := CheckExtent(extent); err != nil {
		return err
	}

	maxOrder := maxOrderFor(extent.Length())
	maxBlock := uint64(1) << (maxOrder + hostarch.PageShift)

	// Size the descriptor array for the window around the whole extent.
	// The window around the heap alone is never larger.
	descs := (bits.AlignUp64(extent.End, maxBlock) - bits.AlignDown64(extent.Start, maxBlock)) >> hostarch.PageShift
	if descs-1 > maxLinkIndex {
		return errors.Wrapf(memerr.ErrExtentTooSmall, "extent %v needs %d descriptors", extent, descs)
	}
	bookkeeping, ok := hostarch.PageRoundUp(descs * pageDescSize)
	if !ok || bookkeeping >= extent.Length() {
		return errors.Wrapf(memerr.ErrExtentTooSmall, "extent %v cannot hold %d bytes of bookkeeping and a page of heap", extent, bookkeeping)
	}
	if !mem.Contains(extent.Start, bookkeeping) {
		return fmt.Errorf("bookkeeping [%#x, +%#x) is not backed by memory", extent.Start, bookkeeping)
	}

	// Check the keep-out list before touching anything.
	heapStart := extent.Start + bookkeeping
	heap := Extent{Start: heapStart, End: extent.End}
	meta := Extent{Start: extent.Start, End: heapStart}
	set := NewExtentSet()
	for _, k := range keepouts {
		if !k.WellFormed() {
			return errors.Wrapf(memerr.ErrMalformedKeepout, "keep-out %v", k)
		}
		if k.Overlaps(meta) {
			return errors.Wrapf(memerr.ErrBookkeepingCorruption, "keep-out %v overlaps bookkeeping %v", k, meta)
		}
		if !k.Overlaps(heap) {
			log.Debugf("Ignoring keep-out %v outside of heap %v", k, heap)
			continue
		}
		k = k.Intersect(heap)
		k.Start = hostarch.PageRoundDown(k.Start)
		k.End, _ = hostarch.PageRoundUp(k.End)
		set.Add(k)
	}

	p.extent = extent
	p.heapStart = heapStart
	p.maxOrder = maxOrder
	p.origin = bits.AlignDown64(heapStart, maxBlock)
	p.windowEnd = bits.AlignUp64(extent.End, maxBlock)
	p.poff = (heapStart - p.origin) >> hostarch.PageShift
	p.pages = overlayDescs(mem, extent.Start, (p.windowEnd-p.origin)>>hostarch.PageShift)
	clear(p.pages)
	p.heads = make([]link, maxOrder+1)
	p.free = make([]uint64, maxOrder+1)
	p.keepouts = set

	// Seed the top free list with every max order block of the window,
	// then fence the window down to the heap.
	for a := p.origin; a < p.windowEnd; a += maxBlock {
		p.push(p.indexOf(a), maxOrder)
	}
	p.markUnavailable(p.origin, heapStart)
	p.markUnavailable(extent.End, p.windowEnd)
	for _, k := range set.Extents() {
		log.Debugf("Fencing keep-out %v", k)
		p.markUnavailable(k.Start, k.End)
	}

	log.Debugf("Physical map for %v: heap %#x, max order %d, origin %#x, poff %d, %d descriptors, %d free bytes",
		extent, heapStart, maxOrder, p.origin, p.poff, len(p.pages), p.FreeBytes())
	return nil
}

// indexOf returns the descriptor index of the page at addr. addr must be in
// the window.
func (p *PhysMap) indexOf(addr uint64) uint64 {
	return (addr - p.origin) >> hostarch.PageShift
}

// addrOf returns the address of the page described by descriptor i.
func (p *PhysMap) addrOf(i uint64) uint64 {
	return p.origin + i<<hostarch.PageShift
}

// isFree returns true if descriptor i heads a free block of the given order.
func (p *PhysMap) isFree(i uint64, order int) bool {
	d := &p.pages[i]
	return d.linked() && int(d.order) == order
}

// push links descriptor i at the head of the free list for order.
func (p *PhysMap) push(i uint64, order int) {
	d := &p.pages[i]
	d.prev = linkHead
	if head, ok := p.heads[order].index(); ok {
		d.next = indexLink(head)
		p.pages[head].prev = indexLink(i)
	} else {
		d.next = linkTail
	}
	d.order = uint8(order)
	d.flags |= flagAvailable
	p.heads[order] = indexLink(i)
	p.free[order]++
}

// unlink removes descriptor i from the free list for order.
func (p *PhysMap) unlink(i uint64, order int) {
	d := &p.pages[i]
	prev, hasPrev := d.prev.index()
	next, hasNext := d.next.index()
	switch {
	case !hasPrev && !hasNext:
		// Sole entry.
		p.heads[order] = linkNone
	case !hasPrev:
		// Head.
		p.heads[order] = d.next
		p.pages[next].prev = linkHead
	case !hasNext:
		// Tail.
		p.pages[prev].next = linkTail
	default:
		p.pages[prev].next = d.next
		p.pages[next].prev = d.prev
	}
	d.prev = linkNone
	d.next = linkNone
	d.flags &^= flagAvailable
	p.free[order]--
}

// split replaces the free block at descriptor i of the given order with its
// two halves, both free at order-1.
func (p *PhysMap) split(i uint64, order int) {
	p.unlink(i, order)
	p.push(i+uint64(1)<<(order-1), order-1)
	p.push(i, order-1)
	p.splits++
}

// Allocate returns the address of a free block of the given order.
//
// ErrOutOfMemory is the only recoverable error; ErrOrderOutOfRange and
// ErrNotInitialized are fatal.
func (p *PhysMap) Allocate(order int) (uint64, error) {
	if !p.Initialized() {
		return 0, memerr.ErrNotInitialized
	}
	if order < 0 || order > p.maxOrder {
		return 0, errors.Wrapf(memerr.ErrOrderOutOfRange, "allocate order %d, max order %d", order, p.maxOrder)
	}
	i, ok := p.allocate(order)
	if !ok {
		return 0, errors.Wrapf(memerr.ErrOutOfMemory, "allocate order %d", order)
	}
	return p.addrOf(i), nil
}

// allocate pops a block of the given order, splitting a larger one if the
// list is empty.
func (p *PhysMap) allocate(order int) (uint64, bool) {
	if i, ok := p.heads[order].index(); ok {
		p.unlink(i, order)
		return i, true
	}
	if order == p.maxOrder {
		return 0, false
	}
	i, ok := p.allocate(order + 1)
	if !ok {
		return 0, false
	}
	// Releasing the upper half is the split.
	p.splits++
	p.release(i+uint64(1)<<order, order)
	return i, true
}

// Free returns the block at addr, allocated with the given order, to the
// map. Buddies are merged as far up as possible.
//
// Every error returned by Free is fatal: ErrOrderOutOfRange, ErrInvalidBlock
// if addr is not a block of the heap at that order, and ErrDoubleFree if the
// block, or a block containing it, is already free.
func (p *PhysMap) Free(addr uint64, order int) error {
	if !p.Initialized() {
		return memerr.ErrNotInitialized
	}
	if order < 0 || order > p.maxOrder {
		return errors.Wrapf(memerr.ErrOrderOutOfRange, "free %#x order %d, max order %d", addr, order, p.maxOrder)
	}
	block := Extent{Start: addr, End: addr + uint64(1)<<(order+hostarch.PageShift)}
	if addr < p.heapStart || block.End > p.extent.End || block.End < addr || !bits.IsAligned64(addr, block.Length()) {
		return errors.Wrapf(memerr.ErrInvalidBlock, "free %v order %d, heap [%#x, %#x)", block, order, p.heapStart, p.extent.End)
	}
	if p.keepouts.Overlaps(block) {
		return errors.Wrapf(memerr.ErrInvalidBlock, "free %v order %d overlaps keep-out", block, order)
	}
	i := p.indexOf(addr)
	if p.pages[i].linked() {
		return errors.Wrapf(memerr.ErrDoubleFree, "free %v order %d, already free at order %d", block, order, p.pages[i].order)
	}
	for o := order + 1; o <= p.maxOrder; o++ {
		if parent := i &^ (uint64(1)<<o - 1); p.isFree(parent, o) {
			return errors.Wrapf(memerr.ErrDoubleFree, "free %v order %d, inside free block %#x order %d", block, order, p.addrOf(parent), o)
		}
	}
	p.release(i, order)
	return nil
}

// release links the block at descriptor i, merging it with its buddy for as
// long as the buddy is free.
func (p *PhysMap) release(i uint64, order int) {
	for order < p.maxOrder {
		buddy := i ^ uint64(1)<<order
		if !p.isFree(buddy, order) {
			break
		}
		p.unlink(buddy, order)
		p.coalesces++
		i &= buddy
		order++
	}
	p.push(i, order)
}
