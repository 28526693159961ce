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

package hostarch

const (
	// PageShift is the binary log of the translation granule.
	// 4K pages: 2^12 = 4096
	PageShift = 12

	// PageSize is the translation granule.
	PageSize = 1 << PageShift

	// PhysicalAddressBits is the output address width configured in
	// TCR_EL1.IPS.
	PhysicalAddressBits = 48

	// EntryShift is the binary log of the size of a translation table
	// descriptor.
	EntryShift = 3

	// EntriesPerTable is the number of descriptors in one table page.
	EntriesPerTable = PageSize >> EntryShift

	// TableLevels is the number of translation table levels used with a 4K
	// granule and a 48-bit input address.
	TableLevels = 4
)
