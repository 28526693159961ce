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

	"github.com/google/subcommands"

	"pinkyos.dev/pinkyos/kmemsim/config"
	"pinkyos.dev/pinkyos/pkg/hostarch"
)

// Alloc implements subcommands.Command for the "alloc" command.
type Alloc struct {
	free bool
}

// Name implements subcommands.Command.Name.
func (*Alloc) Name() string {
	return "alloc"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Alloc) Synopsis() string {
	return "allocate blocks of the given orders and print their addresses"
}

// Usage implements subcommands.Command.Usage.
func (*Alloc) Usage() string {
	return `alloc [flags] <order>... - allocates one block per order, in order.

Example: alloc 0 0 3 prints two single pages and one 8 page block.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (a *Alloc) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&a.free, "free", false, "free every block again, last first, and check that all memory came back.")
}

// Execute implements subcommands.Command.Execute.
func (a *Alloc) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() == 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	orders := make([]int, 0, f.NArg())
	for _, arg := range f.Args() {
		order, err := parseOrder(arg)
		if err != nil {
			return Errorf("%v", err)
		}
		orders = append(orders, order)
	}
	conf := args[0].(*config.Config)

	m, err := newManager(conf, nil)
	if err != nil {
		return Errorf("booting memory manager: %v", err)
	}
	defer m.Release()

	free := m.FreeBytes()
	addrs := make([]uint64, 0, len(orders))
	for _, order := range orders {
		pa, err := m.Allocate(order)
		if err != nil {
			return Errorf("allocating order %d: %v", order, err)
		}
		addrs = append(addrs, pa)
		Infof("order %d: [%#x, %#x)", order, pa, pa+uint64(hostarch.PageSize)<<order)
	}
	Infof("free: %d KiB", m.FreeBytes()>>10)

	if !a.free {
		return subcommands.ExitSuccess
	}
	for i := len(addrs) - 1; i >= 0; i-- {
		if err := m.Free(addrs[i], orders[i]); err != nil {
			return Errorf("freeing %#x: %v", addrs[i], err)
		}
	}
	if got := m.FreeBytes(); got != free {
		return Errorf("free bytes after freeing everything: %#x, want %#x", got, free)
	}
	if err := m.CheckInvariants(); err != nil {
		return Errorf("checking free lists: %v", err)
	}
	Infof("all blocks freed, free: %d KiB", m.FreeBytes()>>10)
	return subcommands.ExitSuccess
}
