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
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/subcommands"

	"pinkyos.dev/pinkyos/kmemsim/config"
	"pinkyos.dev/pinkyos/pkg/hostarch"
	"pinkyos.dev/pinkyos/pkg/pmm"
)

// Boot implements subcommands.Command for the "boot" command.
type Boot struct {
	check bool
	json  bool
}

// Name implements subcommands.Command.Name.
func (*Boot) Name() string {
	return "boot"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Boot) Synopsis() string {
	return "initialize the physical memory map and print its layout"
}

// Usage implements subcommands.Command.Usage.
func (*Boot) Usage() string {
	return `boot [flags] - builds the buddy allocator over the memory map and prints the resulting layout.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (b *Boot) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&b.check, "check", true, "verify the free lists after initialization.")
	f.BoolVar(&b.json, "json", false, "print the layout as JSON.")
}

// Execute implements subcommands.Command.Execute.
func (b *Boot) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)

	m, err := newManager(conf, nil)
	if err != nil {
		return Errorf("booting memory manager: %v", err)
	}
	defer m.Release()

	if b.check {
		if err := m.CheckInvariants(); err != nil {
			return Errorf("checking free lists: %v", err)
		}
	}
	s := m.Stats()
	if b.json {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(s); err != nil {
			return Errorf("encoding layout: %v", err)
		}
		return subcommands.ExitSuccess
	}
	if err := printStats(s); err != nil {
		return Errorf("printing layout: %v", err)
	}
	return subcommands.ExitSuccess
}

func printStats(s pmm.Stats) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 8, 1, ' ', 0)
	fmt.Fprintf(w, "heap\t[%#x, %#x)\n", s.HeapStart, s.HeapEnd)
	fmt.Fprintf(w, "max order\t%d\n", s.MaxOrder)
	fmt.Fprintf(w, "poff\t%d\n", s.Poff)
	fmt.Fprintf(w, "heap pages\t%d\n", s.HeapPages)
	fmt.Fprintf(w, "free pages\t%d (%d KiB)\n", s.FreePages, s.FreePages*hostarch.PageSize>>10)
	fmt.Fprintf(w, "reserved pages\t%d\n", s.ReservedPages)
	for order, n := range s.FreeBlocks {
		if n != 0 {
			fmt.Fprintf(w, "order %d\t%d free\n", order, n)
		}
	}
	return w.Flush()
}
