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
	"unsafe"
)

// pageDescSize is the size in bytes of one overlaid descriptor.
const pageDescSize = uint64(unsafe.Sizeof(pageDesc{}))

// overlayDescs returns count descriptors laid over the memory at pa. The
// caller must have checked that the memory covers count*pageDescSize bytes.
func overlayDescs(mem Memory, pa uint64, count uint64) []pageDesc {
	return unsafe.Slice((*pageDesc)(mem.Pointer(pa)), count)
}
