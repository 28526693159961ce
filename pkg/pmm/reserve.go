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
	"pinkyos.dev/pinkyos/pkg/bits"
	"pinkyos.dev/pinkyos/pkg/hostarch"
)

// markUnavailable removes every page of [start, end) from the free lists and
// flags it keep-out. Both ends must be page aligned and within the window.
//
// The range is cut into the largest naturally aligned blocks it contains,
// and each one is reserved on its own.
func (p *PhysMap) markUnavailable(start, end uint64) {
	for start < end {
		i := p.indexOf(start)
		order := min(bits.TrailingZeros64(i), p.maxOrder)
		for start+uint64(1)<<(order+hostarch.PageShift) > end {
			order--
		}
		p.reserveBlock(i, order)
		start += uint64(1) << (order + hostarch.PageShift)
	}
}

// reserveBlock takes the block at descriptor i of the given order out of the
// free lists for good.
//
// If a free block at this order or above covers it, that block is split down
// until the target is a free block of its own, which is then unlinked. If no
// free block covers it, some of its pages are already reserved, so each half
// is reserved in turn.
func (p *PhysMap) reserveBlock(i uint64, order int) {
	for o := order; o <= p.maxOrder; o++ {
		parent := i &^ (uint64(1)<<o - 1)
		if !p.isFree(parent, o) {
			continue
		}
		for ; o > order; o-- {
			p.split(parent, o)
			if half := uint64(1) << (o - 1); i >= parent+half {
				parent += half
			}
		}
		p.unlink(i, order)
		p.flagKeepout(i, order)
		return
	}
	if order == 0 {
		p.flagKeepout(i, 0)
		return
	}
	half := uint64(1) << (order - 1)
	p.reserveBlock(i, order-1)
	p.reserveBlock(i+half, order-1)
}

// flagKeepout flags every page of the block at descriptor i keep-out.
func (p *PhysMap) flagKeepout(i uint64, order int) {
	for j := i; j < i+uint64(1)<<order; j++ {
		d := &p.pages[j]
		if !d.reserved() {
			d.flags |= flagKeepout
			p.reservedPages++
		}
		d.flags &^= flagAvailable
	}
}
