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
	"math/rand"
	"os"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/subcommands"
	"golang.org/x/sync/errgroup"

	"pinkyos.dev/pinkyos/kmemsim/config"
	"pinkyos.dev/pinkyos/pkg/errors/memerr"
	"pinkyos.dev/pinkyos/pkg/log"
	"pinkyos.dev/pinkyos/pkg/metric"
	"pinkyos.dev/pinkyos/pkg/mm"
	"pinkyos.dev/pinkyos/pkg/sync"
)

// stressOpts configures a stress run.
type stressOpts struct {
	// cpus is the number of simulated CPUs, one goroutine each.
	cpus int

	// ops is the number of operations per CPU.
	ops int

	// maxOrder is the largest order allocated.
	maxOrder int

	// seed seeds the per-CPU random sources.
	seed int64

	// retries is the number of times an allocation that found no memory is
	// retried before the CPU gives up a block of its own.
	retries uint64
}

// stressResult counts what a stress run did.
type stressResult struct {
	allocations atomic.Uint64
	frees       atomic.Uint64
	retries     atomic.Uint64
	giveUps     atomic.Uint64
}

func (r *stressResult) String() string {
	return fmt.Sprintf("%d allocations, %d frees, %d retries, %d give-ups",
		r.allocations.Load(), r.frees.Load(), r.retries.Load(), r.giveUps.Load())
}

type block struct {
	pa    uint64
	order int
}

// stressCPU is one simulated CPU.
type stressCPU struct {
	id     int
	m      *mm.MemoryManager
	opts   *stressOpts
	res    *stressResult
	owners *sync.Map
	rand   *rand.Rand
	held   []block
}

// allocate allocates a block, backing off while other CPUs hold memory.
func (c *stressCPU) allocate(ctx context.Context, order int) (uint64, error) {
	var pa uint64
	op := func() error {
		var err error
		pa, err = c.m.Allocate(order)
		switch {
		case err == nil:
			return nil
		case memerr.Equals(memerr.ErrOutOfMemory, err):
			c.res.retries.Add(1)
			return err
		default:
			return backoff.Permanent(err)
		}
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Microsecond
	b.MaxInterval = 5 * time.Millisecond
	b.MaxElapsedTime = 0
	return pa, backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, c.opts.retries), ctx))
}

func (c *stressCPU) free(b block) error {
	c.owners.Delete(b.pa)
	if err := c.m.Free(b.pa, b.order); err != nil {
		return fmt.Errorf("cpu %d: freeing %#x order %d: %w", c.id, b.pa, b.order, err)
	}
	c.res.frees.Add(1)
	return nil
}

// popRandom removes a random held block.
func (c *stressCPU) popRandom() block {
	i := c.rand.Intn(len(c.held))
	b := c.held[i]
	c.held[i] = c.held[len(c.held)-1]
	c.held = c.held[:len(c.held)-1]
	return b
}

func (c *stressCPU) run(ctx context.Context) error {
	for i := 0; i < c.opts.ops; i++ {
		if len(c.held) > 0 && c.rand.Intn(2) == 0 {
			if err := c.free(c.popRandom()); err != nil {
				return err
			}
			continue
		}
		order := c.rand.Intn(c.opts.maxOrder + 1)
		pa, err := c.allocate(ctx, order)
		if err != nil {
			if !memerr.Equals(memerr.ErrOutOfMemory, err) {
				return fmt.Errorf("cpu %d: allocating order %d: %w", c.id, order, err)
			}
			// Everybody is holding on to memory. Let go of a block
			// so that somebody can make progress.
			c.res.giveUps.Add(1)
			if len(c.held) > 0 {
				if err := c.free(c.popRandom()); err != nil {
					return err
				}
			}
			continue
		}
		if other, loaded := c.owners.LoadOrStore(pa, c.id); loaded {
			return fmt.Errorf("cpu %d: block %#x order %d is already held by cpu %d", c.id, pa, order, other)
		}
		c.res.allocations.Add(1)
		c.held = append(c.held, block{pa: pa, order: order})
	}
	for len(c.held) > 0 {
		if err := c.free(c.popRandom()); err != nil {
			return err
		}
	}
	return nil
}

// validate checks opts against a manager whose largest block has order
// maxOrder. Allocating above it is a fatal error, so it is refused up front.
func (opts *stressOpts) validate(maxOrder int) error {
	if opts.cpus <= 0 || opts.ops < 0 || opts.maxOrder < 0 {
		return fmt.Errorf("invalid stress options %+v", *opts)
	}
	if opts.maxOrder > maxOrder {
		return fmt.Errorf("max order %d is above the largest order %d of the memory map", opts.maxOrder, maxOrder)
	}
	return nil
}

// runStress runs opts.cpus CPUs contending on m. Every CPU frees all of its
// blocks before returning, so m ends up with as much free memory as it
// started with.
func runStress(ctx context.Context, m *mm.MemoryManager, opts stressOpts) (*stressResult, error) {
	if err := opts.validate(m.Stats().MaxOrder); err != nil {
		return nil, err
	}
	free := m.FreeBytes()
	res := &stressResult{}
	var owners sync.Map
	g, ctx := errgroup.WithContext(ctx)
	for id := 0; id < opts.cpus; id++ {
		c := &stressCPU{
			id:     id,
			m:      m,
			opts:   &opts,
			res:    res,
			owners: &owners,
			rand:   rand.New(rand.NewSource(opts.seed + int64(id))),
		}
		g.Go(func() error {
			return c.run(ctx)
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}
	if got := m.FreeBytes(); got != free {
		return res, fmt.Errorf("free bytes after stress: %#x, want %#x", got, free)
	}
	if err := m.CheckInvariants(); err != nil {
		return res, err
	}
	return res, nil
}

// Stress implements subcommands.Command for the "stress" command.
type Stress struct {
	opts       stressOpts
	metricsOut bool
}

// Name implements subcommands.Command.Name.
func (*Stress) Name() string {
	return "stress"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Stress) Synopsis() string {
	return "run random allocations and frees from several simulated CPUs"
}

// Usage implements subcommands.Command.Usage.
func (*Stress) Usage() string {
	return `stress [flags] - runs random allocations and frees on -cpus goroutines sharing one memory manager, then checks that every page came back.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (s *Stress) SetFlags(f *flag.FlagSet) {
	f.IntVar(&s.opts.cpus, "cpus", 4, "number of simulated CPUs.")
	f.IntVar(&s.opts.ops, "ops", 10000, "number of operations per CPU.")
	f.IntVar(&s.opts.maxOrder, "max-order", 4, "largest block order to allocate.")
	f.Int64Var(&s.opts.seed, "seed", 1, "random seed.")
	f.Uint64Var(&s.opts.retries, "retries", 8, "number of times an allocation is retried when memory is exhausted.")
	f.BoolVar(&s.metricsOut, "metrics", false, "print metrics in Prometheus text format when done.")
}

// Execute implements subcommands.Command.Execute.
func (s *Stress) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)

	registry := metric.NewRegistry()
	m, err := newManager(conf, registry)
	if err != nil {
		return Errorf("booting memory manager: %v", err)
	}
	defer m.Release()
	if err := s.opts.validate(m.Stats().MaxOrder); err != nil {
		log.Warningf("%v", err)
		f.Usage()
		return subcommands.ExitUsageError
	}

	start := time.Now()
	res, err := runStress(ctx, m, s.opts)
	if err != nil {
		return Errorf("stress failed: %v", err)
	}
	log.Debugf("Stress done in %v", time.Since(start))
	Infof("%d cpus: %s", s.opts.cpus, res)

	if s.metricsOut {
		if err := registry.WriteText(os.Stdout, conf.MetricsPrefix); err != nil {
			return Errorf("writing metrics: %v", err)
		}
	}
	return subcommands.ExitSuccess
}
