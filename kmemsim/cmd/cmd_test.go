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
	"bytes"
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"pinkyos.dev/pinkyos/kmemsim/config"
	"pinkyos.dev/pinkyos/pkg/hostarch"
	"pinkyos.dev/pinkyos/pkg/metric"
	"pinkyos.dev/pinkyos/pkg/mm"
	"pinkyos.dev/pinkyos/pkg/pagetables"
	"pinkyos.dev/pinkyos/pkg/pmm"
)

func init() {
	halt = func(err error) {
		panic(err)
	}
}

func newTestManager(t *testing.T, size uint64) *mm.MemoryManager {
	t.Helper()
	m, err := mm.New(mm.Options{
		Extent: pmm.Extent{Start: 0x40000000, End: 0x40000000 + size},
		Halt:   func(err error) { t.Errorf("halted: %v", err) },
	})
	if err != nil {
		t.Fatalf("mm.New: %v", err)
	}
	t.Cleanup(func() { m.Release() })
	return m
}

func TestStress(t *testing.T) {
	m := newTestManager(t, 16<<20)
	res, err := runStress(context.Background(), m, stressOpts{cpus: 4, ops: 2000, maxOrder: 4, seed: 7, retries: 4})
	if err != nil {
		t.Fatalf("runStress: %v", err)
	}
	if res.allocations.Load() == 0 {
		t.Errorf("no allocations: %s", res)
	}
	if res.allocations.Load() != res.frees.Load() {
		t.Errorf("allocations and frees differ: %s", res)
	}
}

func TestStressExhaustion(t *testing.T) {
	// 1 MiB leaves a handful of order 4 blocks for 8 CPUs, so allocations
	// have to wait for one another.
	m := newTestManager(t, 1<<20)
	res, err := runStress(context.Background(), m, stressOpts{cpus: 8, ops: 500, maxOrder: 4, seed: 3, retries: 2})
	if err != nil {
		t.Fatalf("runStress: %v", err)
	}
	if res.allocations.Load() != res.frees.Load() {
		t.Errorf("allocations and frees differ: %s", res)
	}
	if got := m.Metrics().AllocationFailures.Value(); got != res.retries.Load() {
		t.Errorf("allocation_failures = %d, want %d", got, res.retries.Load())
	}
}

func TestStressInvalid(t *testing.T) {
	// 256 pages: the largest order is 8.
	m := newTestManager(t, 1<<20)
	for _, tc := range []struct {
		name string
		opts stressOpts
	}{
		{name: "no cpus", opts: stressOpts{cpus: 0, ops: 1}},
		{name: "negative ops", opts: stressOpts{cpus: 1, ops: -1}},
		{name: "order above map", opts: stressOpts{cpus: 1, ops: 10, maxOrder: 9, retries: 1}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			// A fatal error would panic through the test halt hook.
			if _, err := runStress(context.Background(), m, tc.opts); err == nil {
				t.Errorf("runStress(%+v) succeeded", tc.opts)
			}
		})
	}
	if got := m.Metrics().Allocations.Value(); got != 0 {
		t.Errorf("allocations = %d, want 0", got)
	}
}

func TestStressMaxOrderAtLimit(t *testing.T) {
	m := newTestManager(t, 1<<20)
	opts := stressOpts{cpus: 2, ops: 50, maxOrder: 8, seed: 3, retries: 3}
	if err := opts.validate(m.Stats().MaxOrder); err != nil {
		t.Fatalf("validate(%+v): %v", opts, err)
	}
}

func TestExportMetrics(t *testing.T) {
	conf := &config.Config{Extent: "0x40000000-0x41000000", MetricsPrefix: "sim_"}
	e := &ExportMetrics{stressOps: 100, mapPages: 2}
	var buf bytes.Buffer
	if err := e.export(context.Background(), conf, &buf); err != nil {
		t.Fatalf("export: %v", err)
	}
	got, err := metric.ParseText(&buf)
	if err != nil {
		t.Fatalf("ParseText: %v", err)
	}
	if got["sim_pagetables_pages_mapped"] != 2 {
		t.Errorf("sim_pagetables_pages_mapped = %v, want 2", got["sim_pagetables_pages_mapped"])
	}
	if got["sim_pagetables_tables_allocated"] != 4 {
		t.Errorf("sim_pagetables_tables_allocated = %v, want 4", got["sim_pagetables_tables_allocated"])
	}
	// The stress run frees everything, the mapping keeps two pages and
	// four tables.
	if allocs, frees := got["sim_pmm_allocations"], got["sim_pmm_frees"]; allocs != frees+1 {
		t.Errorf("allocations = %v, frees = %v, want one block still held", allocs, frees)
	}
}

func TestMapParse(t *testing.T) {
	for _, tc := range []struct {
		name    string
		m       Map
		va      hostarch.Addr
		opts    pagetables.MapOpts
		mt      hostarch.MemoryType
		wantErr bool
	}{
		{
			name: "defaults",
			m:    Map{va: "0x10000000", pages: 2, access: "rw", user: true, memoryType: "wb", asid: 1},
			va:   0x10000000,
			opts: pagetables.MapOpts{AccessType: hostarch.ReadWrite, User: true},
			mt:   hostarch.MemoryTypeWriteBack,
		},
		{
			name: "kernel text",
			m:    Map{va: "0xffff000000080000", pages: 1, access: "r-x", global: true, memoryType: "wb"},
			va:   0xffff000000080000,
			opts: pagetables.MapOpts{AccessType: hostarch.ReadExec, Global: true},
			mt:   hostarch.MemoryTypeWriteBack,
		},
		{
			name:    "misaligned",
			m:       Map{va: "0x10000010", pages: 1, access: "rw", memoryType: "wb"},
			wantErr: true,
		},
		{
			name:    "no pages",
			m:       Map{va: "0x10000000", access: "rw", memoryType: "wb"},
			wantErr: true,
		},
		{
			name:    "memory type",
			m:       Map{va: "0x10000000", pages: 1, access: "rw", memoryType: "strong"},
			wantErr: true,
		},
		{
			name:    "asid",
			m:       Map{va: "0x10000000", pages: 1, access: "rw", memoryType: "wb", asid: 1 << 16},
			wantErr: true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			va, opts, mt, err := tc.m.parse()
			if (err != nil) != tc.wantErr {
				t.Fatalf("parse() error = %v, want error %t", err, tc.wantErr)
			}
			if tc.wantErr {
				return
			}
			if va != tc.va || mt != tc.mt {
				t.Errorf("parse() = %v, %v, want %v, %v", va, mt, tc.va, tc.mt)
			}
			if diff := cmp.Diff(tc.opts, opts); diff != "" {
				t.Errorf("parse() opts mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseOrder(t *testing.T) {
	for _, tc := range []struct {
		in      string
		want    int
		wantErr bool
	}{
		{in: "0", want: 0},
		{in: "20", want: 20},
		{in: "21", wantErr: true},
		{in: "-1", wantErr: true},
		{in: "two", wantErr: true},
	} {
		got, err := parseOrder(tc.in)
		if (err != nil) != tc.wantErr || got != tc.want {
			t.Errorf("parseOrder(%q) = %d, %v, want %d, error %t", tc.in, got, err, tc.want, tc.wantErr)
		}
	}
}

func TestOrderFor(t *testing.T) {
	for pages, want := range map[uint64]int{1: 0, 2: 1, 3: 2, 4: 2, 5: 3, 1024: 10} {
		if got := orderFor(pages); got != want {
			t.Errorf("orderFor(%d) = %d, want %d", pages, got, want)
		}
	}
}
