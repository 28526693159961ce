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

// Package cmd holds implementations of the kmemsim commands.
package cmd

import (
	"fmt"
	"strconv"

	"pinkyos.dev/pinkyos/kmemsim/config"
	"pinkyos.dev/pinkyos/pkg/log"
	"pinkyos.dev/pinkyos/pkg/metric"
	"pinkyos.dev/pinkyos/pkg/mm"
	"pinkyos.dev/pinkyos/pkg/pmm"
)

// halt is the halt hook installed in every memory manager.
var halt mm.HaltFunc = Halt

// newManager boots a memory manager over the memory map selected by conf.
// registry may be nil.
func newManager(conf *config.Config, registry *metric.Registry) (*mm.MemoryManager, error) {
	memMap, err := conf.LoadMemoryMap()
	if err != nil {
		return nil, err
	}
	extent, keepouts := memMap.Extents()
	log.Infof("Memory map: extent %v, keep-outs %v", extent, keepouts)
	return mm.New(mm.Options{
		Extent:         extent,
		Keepouts:       keepouts,
		Registry:       registry,
		Halt:           halt,
		OOMLogInterval: conf.OOMLogInterval,
	})
}

// parseOrder parses a block order given on the command line.
func parseOrder(s string) (int, error) {
	order, err := strconv.Atoi(s)
	if err != nil || order < 0 || order > pmm.MaxOrder {
		return 0, fmt.Errorf("invalid order %q, must be in [0, %d]", s, pmm.MaxOrder)
	}
	return order, nil
}

// orderFor returns the smallest order holding pages pages.
func orderFor(pages uint64) int {
	order := 0
	for uint64(1)<<order < pages {
		order++
	}
	return order
}
