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

package mm

import (
	"pinkyos.dev/pinkyos/pkg/metric"
)

// Metrics are the memory manager's counters.
type Metrics struct {
	Allocations        *metric.Uint64Metric
	Frees              *metric.Uint64Metric
	AllocationFailures *metric.Uint64Metric
	Coalesces          *metric.Uint64Metric
	Splits             *metric.Uint64Metric
	TablesAllocated    *metric.Uint64Metric
	PagesMapped        *metric.Uint64Metric
	FreeBytes          *metric.Uint64Metric
}

func newMetrics(r *metric.Registry) (*Metrics, error) {
	var m Metrics
	for _, d := range []struct {
		p           **metric.Uint64Metric
		name        string
		cumulative  bool
		description string
	}{
		{&m.Allocations, "/pmm/allocations", true, "Number of blocks allocated."},
		{&m.Frees, "/pmm/frees", true, "Number of blocks freed."},
		{&m.AllocationFailures, "/pmm/allocation_failures", true, "Number of allocations that failed for lack of memory."},
		{&m.Coalesces, "/pmm/coalesces", true, "Number of buddy pairs merged on free."},
		{&m.Splits, "/pmm/splits", true, "Number of blocks split in two."},
		{&m.TablesAllocated, "/pagetables/tables_allocated", true, "Number of translation table pages allocated."},
		{&m.PagesMapped, "/pagetables/pages_mapped", true, "Number of leaf descriptors installed."},
		{&m.FreeBytes, "/pmm/free_bytes", false, "Bytes on the buddy free lists."},
	} {
		v, err := r.NewUint64Metric(d.name, d.cumulative, d.description)
		if err != nil {
			return nil, err
		}
		*d.p = v
	}
	return &m, nil
}

// updateMetricsLocked folds allocator counters into the metrics.
//
// Preconditions: m.mu is held.
func (m *MemoryManager) updateMetricsLocked() {
	s := m.pages.Stats()
	m.metrics.Splits.IncrementBy(s.Splits - m.last.Splits)
	m.metrics.Coalesces.IncrementBy(s.Coalesces - m.last.Coalesces)
	m.metrics.FreeBytes.Set(m.pages.FreeBytes())
	m.last = s
	if m.tables != nil {
		n := m.tables.Allocated()
		m.metrics.TablesAllocated.IncrementBy(n - m.lastTables)
		m.lastTables = n
	}
}
