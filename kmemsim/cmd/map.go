// Copyright 2024 The gVisor Authors.
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

package cmd

import (
	"context"
	"flag"
	"fmt"
	"strconv"

	"github.com/google/subcommands"

	"pinkyos.dev/pinkyos/kmemsim/config"
	"pinkyos.dev/pinkyos/pkg/hostarch"
	"pinkyos.dev/pinkyos/pkg/pagetables"
)

// Map implements subcommands.Command for the "map" command.
type Map struct {
	va         string
	pages      uint64
	access     string
	user       bool
	global     bool
	memoryType string
	asid       uint
}

// Name implements subcommands.Command.Name.
func (*Map) Name() string {
	return "map"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Map) Synopsis() string {
	return "map freshly allocated pages into a new address space and dump the translations"
}

// Usage implements subcommands.Command.Usage.
func (*Map) Usage() string {
	return `map [flags] - creates an address space, maps -pages pages at -va and prints every leaf descriptor.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (m *Map) SetFlags(f *flag.FlagSet) {
	f.StringVar(&m.va, "va", "0x10000000", "page aligned virtual address of the first page.")
	f.Uint64Var(&m.pages, "pages", 2, "number of pages to map.")
	f.StringVar(&m.access, "access", "rw", "access permissions, e.g. r, rw or r-x.")
	f.BoolVar(&m.user, "user", true, "make the pages accessible from EL0.")
	f.BoolVar(&m.global, "global", false, "share the translations across ASIDs.")
	f.StringVar(&m.memoryType, "memory-type", "wb", "memory type: wb, wc or uc.")
	f.UintVar(&m.asid, "asid", 1, "ASID placed in the printed TTBR value.")
}

func (m *Map) parse() (hostarch.Addr, pagetables.MapOpts, hostarch.MemoryType, error) {
	v, err := strconv.ParseUint(m.va, 0, 64)
	if err != nil {
		return 0, pagetables.MapOpts{}, 0, fmt.Errorf("invalid -va %q: %v", m.va, err)
	}
	va := hostarch.Addr(v)
	if !va.IsPageAligned() {
		return 0, pagetables.MapOpts{}, 0, fmt.Errorf("-va %v is not page aligned", va)
	}
	if m.pages == 0 {
		return 0, pagetables.MapOpts{}, 0, fmt.Errorf("-pages must be positive")
	}
	at, err := hostarch.ParseAccessType(m.access)
	if err != nil {
		return 0, pagetables.MapOpts{}, 0, err
	}
	mt, err := hostarch.ParseMemoryType(m.memoryType)
	if err != nil {
		return 0, pagetables.MapOpts{}, 0, err
	}
	if m.asid > 0xffff {
		return 0, pagetables.MapOpts{}, 0, fmt.Errorf("-asid %d does not fit in 16 bits", m.asid)
	}
	return va, pagetables.MapOpts{AccessType: at, User: m.user, Global: m.global}, mt, nil
}

// Execute implements subcommands.Command.Execute.
func (m *Map) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	va, opts, mt, err := m.parse()
	if err != nil {
		return Errorf("%v", err)
	}
	end, ok := va.AddLength(m.pages << hostarch.PageShift)
	if !ok {
		return Errorf("[%v, +%d pages) overflows", va, m.pages)
	}
	conf := args[0].(*config.Config)

	mgr, err := newManager(conf, nil)
	if err != nil {
		return Errorf("booting memory manager: %v", err)
	}
	defer mgr.Release()

	as, err := mgr.NewAddressSpace()
	if err != nil {
		return Errorf("creating address space: %v", err)
	}
	order := orderFor(m.pages)
	pa, err := mgr.Allocate(order)
	if err != nil {
		return Errorf("allocating %d pages: %v", m.pages, err)
	}
	n, err := as.MapPages(va, end, pa, opts, mt)
	if err != nil {
		return Errorf("mapping [%v, %v) after %d pages: %v", va, end, n, err)
	}

	Infof("TTBR: %#016x", as.TTBR(uint16(m.asid)))
	for addr := va; addr < end; addr += hostarch.PageSize {
		pte, err := as.Walk(addr, false)
		if err != nil {
			return Errorf("walking %v: %v", addr, err)
		}
		Infof("%v -> %v", addr, &pte)
	}
	s := mgr.Stats()
	Infof("mapped %d pages; %d pages remain free", n, s.FreePages)
	return subcommands.ExitSuccess
}
