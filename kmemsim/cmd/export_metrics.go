// Copyright 2025 The gVisor Authors.
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
	"io"
	"os"

	"github.com/google/subcommands"

	"pinkyos.dev/pinkyos/kmemsim/config"
	"pinkyos.dev/pinkyos/pkg/hostarch"
	"pinkyos.dev/pinkyos/pkg/metric"
	"pinkyos.dev/pinkyos/pkg/mm"
	"pinkyos.dev/pinkyos/pkg/pagetables"
)

// ExportMetrics implements subcommands.Command for the "export-metrics"
// command.
type ExportMetrics struct {
	exporterPrefix string
	stressOps      int
	mapPages       uint64
}

// Name implements subcommands.Command.Name.
func (*ExportMetrics) Name() string {
	return "export-metrics"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*ExportMetrics) Synopsis() string {
	return "export memory manager metrics in Prometheus format"
}

// Usage implements subcommands.Command.Usage.
func (*ExportMetrics) Usage() string {
	return `export-metrics [-exporter-prefix=<kmemsim_>] - boots the memory manager, runs an optional workload and prints its metrics in Prometheus metric format
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (e *ExportMetrics) SetFlags(f *flag.FlagSet) {
	f.StringVar(&e.exporterPrefix, "exporter-prefix", "", "Prefix for all metric names, following Prometheus exporter convention. Defaults to --metrics-prefix.")
	f.IntVar(&e.stressOps, "stress-ops", 0, "if positive, run a single CPU stress workload of this many operations first.")
	f.Uint64Var(&e.mapPages, "map-pages", 0, "if positive, map this many pages into a new address space first.")
}

// workload runs the configured workload on m.
func (e *ExportMetrics) workload(ctx context.Context, m *mm.MemoryManager) error {
	if e.stressOps > 0 {
		if _, err := runStress(ctx, m, stressOpts{cpus: 1, ops: e.stressOps, maxOrder: 3, seed: 1, retries: 1}); err != nil {
			return err
		}
	}
	if e.mapPages > 0 {
		as, err := m.NewAddressSpace()
		if err != nil {
			return err
		}
		pa, err := m.Allocate(orderFor(e.mapPages))
		if err != nil {
			return err
		}
		const va = hostarch.Addr(0x10000000)
		opts := pagetables.MapOpts{AccessType: hostarch.ReadWrite, User: true}
		if _, err := as.MapPages(va, va+hostarch.Addr(e.mapPages<<hostarch.PageShift), pa, opts, hostarch.MemoryTypeWriteBack); err != nil {
			return err
		}
	}
	return nil
}

// export boots a manager, runs the workload and writes the metrics to w.
func (e *ExportMetrics) export(ctx context.Context, conf *config.Config, w io.Writer) error {
	registry := metric.NewRegistry()
	m, err := newManager(conf, registry)
	if err != nil {
		return fmt.Errorf("booting memory manager: %w", err)
	}
	defer m.Release()

	if err := e.workload(ctx, m); err != nil {
		return fmt.Errorf("running workload: %w", err)
	}
	prefix := e.exporterPrefix
	if prefix == "" {
		prefix = conf.MetricsPrefix
	}
	if _, err := fmt.Fprintf(w, "# Command-line export for memory map %q\n", conf.MemoryMap); err != nil {
		return err
	}
	return registry.WriteText(w, prefix)
}

// Execute implements subcommands.Command.Execute.
func (e *ExportMetrics) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)
	if err := e.export(ctx, conf, os.Stdout); err != nil {
		return Errorf("%v", err)
	}
	return subcommands.ExitSuccess
}
