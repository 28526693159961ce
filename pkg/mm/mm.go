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

// Package mm provides the memory manager: the physical memory map and the
// address spaces built on it, behind a single lock.
//
// Lock order:
//
//	MemoryManager.mu
//
// Every entry point takes mu for the whole call. pmm and pagetables do no
// locking of their own.
package mm

import (
	"fmt"
	"time"

	"github.com/pkg/errors"

	"pinkyos.dev/pinkyos/pkg/cleanup"
	"pinkyos.dev/pinkyos/pkg/errors/memerr"
	"pinkyos.dev/pinkyos/pkg/log"
	"pinkyos.dev/pinkyos/pkg/metric"
	"pinkyos.dev/pinkyos/pkg/pagetables"
	"pinkyos.dev/pinkyos/pkg/physmem"
	"pinkyos.dev/pinkyos/pkg/pmm"
	"pinkyos.dev/pinkyos/pkg/sync"
)

// DefaultOOMLogInterval is the default minimum interval between two
// out-of-memory warnings.
const DefaultOOMLogInterval = time.Second

// HaltFunc is called with every fatal error. There is nothing to recover
// into: the default panics. If it returns, the entry point returns the
// error and the manager must not be used again.
type HaltFunc func(err error)

// DefaultHalt panics with err.
func DefaultHalt(err error) {
	panic(fmt.Sprintf("memory manager halted: %v", err))
}

// Options configure a MemoryManager.
type Options struct {
	// Extent is the physical memory to manage.
	Extent pmm.Extent

	// Keepouts are holes in Extent that must never be allocated.
	Keepouts []pmm.Extent

	// Registry receives the manager's metrics. If nil, a private registry
	// is used.
	Registry *metric.Registry

	// Halt is called with fatal errors. If nil, DefaultHalt is used.
	Halt HaltFunc

	// OOMLogInterval rate limits out-of-memory warnings. If zero,
	// DefaultOOMLogInterval is used.
	OOMLogInterval time.Duration
}

// MemoryManager owns simulated physical memory, the buddy allocator over it
// and the table allocator shared by every address space.
type MemoryManager struct {
	// halt is immutable.
	halt HaltFunc

	// oomLog is the rate limited logger for allocation failures.
	oomLog log.Logger

	// metrics is immutable; the metrics themselves are atomic.
	metrics *Metrics

	// mu protects the fields below.
	mu sync.Mutex

	// mem is the simulated physical memory. It is nil after Release.
	mem *physmem.Memory

	// pages is the physical memory map.
	pages pmm.PhysMap

	// tables allocates translation tables from pages.
	tables *pagetables.BuddyAllocator

	// last holds the allocator counters when metrics were last updated.
	last pmm.Stats

	// lastTables is tables.Allocated() when metrics were last updated.
	lastTables uint64
}

// New maps physical memory for opts.Extent and initializes the physical
// memory map over it. Errors from the map are fatal and are passed to the
// halt hook before being returned.
func New(opts Options) (*MemoryManager, error) {
	halt := opts.Halt
	if halt == nil {
		halt = DefaultHalt
	}
	interval := opts.OOMLogInterval
	if interval == 0 {
		interval = DefaultOOMLogInterval
	}
	registry := opts.Registry
	if registry == nil {
		registry = metric.NewRegistry()
	}
	metrics, err := newMetrics(registry)
	if err != nil {
		return nil, err
	}

	m := &MemoryManager{
		halt:    halt,
		oomLog:  log.RateLimitedLogger(log.Log(), interval),
		metrics: metrics,
	}
	if err := pmm.CheckExtent(opts.Extent); err != nil {
		m.fatal(err)
		return nil, err
	}

	mem, err := physmem.New(opts.Extent.Start, opts.Extent.Length())
	if err != nil {
		return nil, errors.Wrapf(err, "mapping physical memory %v", opts.Extent)
	}
	cu := cleanup.Make(func() { mem.Release() })
	defer cu.Clean()
	m.mem = mem
	if err := m.pages.Init(mem, opts.Extent, opts.Keepouts); err != nil {
		m.fatal(err)
		return nil, err
	}
	m.tables = pagetables.NewBuddyAllocator(&m.pages, mem)
	m.updateMetricsLocked()

	s := m.pages.Stats()
	log.Infof("Memory manager ready: extent %v, heap [%#x, %#x), max order %d, %d keep-outs, %d free pages",
		opts.Extent, s.HeapStart, s.HeapEnd, s.MaxOrder, len(opts.Keepouts), s.FreePages)
	cu.Release()
	return m, nil
}

// fatal logs err with its context and stack, and halts.
func (m *MemoryManager) fatal(err error) {
	log.Warningf("Fatal memory management error: %+v", err)
	m.halt(err)
}

// check routes err: fatal errors go to the halt hook, out-of-memory is
// counted and logged. err is returned unchanged.
func (m *MemoryManager) check(err error) error {
	switch {
	case err == nil:
	case memerr.IsFatal(err):
		m.fatal(err)
	case memerr.Equals(memerr.ErrOutOfMemory, err):
		m.metrics.AllocationFailures.Increment()
		m.oomLog.Warningf("Out of physical memory: %v", err)
	}
	return err
}

// Allocate allocates a block of 2^order pages and returns its physical
// address.
func (m *MemoryManager) Allocate(order int) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.usableLocked(); err != nil {
		return 0, m.check(err)
	}
	pa, err := m.pages.Allocate(order)
	if err != nil {
		return 0, m.check(err)
	}
	m.metrics.Allocations.Increment()
	m.updateMetricsLocked()
	return pa, nil
}

// Free returns a block allocated at the given order.
func (m *MemoryManager) Free(pa uint64, order int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.usableLocked(); err != nil {
		return m.check(err)
	}
	if err := m.pages.Free(pa, order); err != nil {
		return m.check(err)
	}
	m.metrics.Frees.Increment()
	m.updateMetricsLocked()
	return nil
}

// Stats returns a snapshot of the physical memory map.
func (m *MemoryManager) Stats() pmm.Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pages.Stats()
}

// FreeBytes returns the number of free bytes.
func (m *MemoryManager) FreeBytes() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pages.FreeBytes()
}

// Reserved returns true if the page at pa can never be allocated. It returns
// false once m is released.
func (m *MemoryManager) Reserved(pa uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.usableLocked() != nil {
		return false
	}
	return m.pages.Reserved(pa)
}

// CheckInvariants verifies the free lists. A failure is fatal.
func (m *MemoryManager) CheckInvariants() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.usableLocked(); err != nil {
		return m.check(err)
	}
	return m.check(m.pages.CheckInvariants())
}

// Metrics returns the manager's metrics.
func (m *MemoryManager) Metrics() *Metrics {
	return m.metrics
}

// Release unmaps physical memory. Address spaces and blocks obtained from
// m must not be used after.
func (m *MemoryManager) Release() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mem == nil {
		return nil
	}
	err := m.mem.Release()
	m.mem = nil
	return err
}

// usableLocked returns ErrNotInitialized once memory was released.
//
// Preconditions: m.mu is held.
func (m *MemoryManager) usableLocked() error {
	if m.mem == nil {
		return errors.Wrap(memerr.ErrNotInitialized, "memory manager released")
	}
	return nil
}
