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

// link is a free list linkage stored in a page descriptor. It is either a
// tag or the index of another descriptor.
type link uint32

const (
	// linkNone means the descriptor is not on any free list.
	linkNone link = iota

	// linkHead is stored as the predecessor of the first descriptor of a
	// list.
	linkHead

	// linkTail is stored as the successor of the last descriptor of a
	// list.
	linkTail

	// linkIndexBase is the first value that encodes a descriptor index.
	linkIndexBase
)

// maxLinkIndex is the largest descriptor index a link can encode.
const maxLinkIndex = uint64(^link(0) - linkIndexBase)

// indexLink returns the link referring to descriptor i.
func indexLink(i uint64) link {
	return link(i) + linkIndexBase
}

// index returns the descriptor index l refers to, or false if l is a tag.
func (l link) index() (uint64, bool) {
	if l < linkIndexBase {
		return 0, false
	}
	return uint64(l - linkIndexBase), true
}

// Descriptor flags.
const (
	// flagAvailable is set on the first descriptor of a block while the
	// block is on a free list.
	flagAvailable uint8 = 1 << iota

	// flagKeepout is set on every page that can never be allocated: pages
	// of keep-out extents, of the bookkeeping fence and of the tail fence.
	flagKeepout
)

// pageDesc describes one page of the window. The descriptor of the first page
// of a free block carries the block's list linkage and order; descriptors of
// pages inside a block or of allocated blocks are unlinked.
//
// pageDesc holds no Go pointers: an array of them is overlaid on simulated
// physical memory.
type pageDesc struct {
	prev  link
	next  link
	order uint8
	flags uint8
	_     [2]byte
}

// linked returns true if the descriptor is on a free list. A descriptor with
// any link set is considered on a list.
func (d *pageDesc) linked() bool {
	return d.prev != linkNone || d.next != linkNone
}

// reserved returns true if the page can never be allocated.
func (d *pageDesc) reserved() bool {
	return d.flags&flagKeepout != 0
}
