// Copyright 2018 The gVisor Authors.
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

// Package metric provides primitives for collecting metrics.
//
// Metrics are named with a leading slash and slash-separated components,
// e.g. "/pmm/allocations", and are exported in the Prometheus text format
// with the slashes turned into underscores.
package metric

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync/atomic"

	"pinkyos.dev/pinkyos/pkg/sync"
)

var (
	// ErrNameInUse indicates that another metric is already defined for
	// the given name.
	ErrNameInUse = errors.New("metric name already in use")

	// ErrInvalidMetricName indicates that a metric name is malformed.
	ErrInvalidMetricName = errors.New("metric name is invalid")

	// metricNameRegexp is the regexp a metric name must match.
	metricNameRegexp = regexp.MustCompile(`^(?:/[a-z_][a-z0-9_]*)+$`)
)

// Uint64Metric encapsulates a uint64 that represents some kind of metric to
// be monitored.
//
// Metrics are not saved across save/restore and thus reset to zero on
// restore.
type Uint64Metric struct {
	name        string
	description string

	// cumulative indicates the value only ever grows. Non-cumulative
	// metrics are exported as gauges.
	cumulative bool

	value atomic.Uint64
}

// Name returns the metric name.
func (m *Uint64Metric) Name() string {
	return m.name
}

// Value returns the current value of the metric.
func (m *Uint64Metric) Value() uint64 {
	return m.value.Load()
}

// Increment increments the metric by 1.
func (m *Uint64Metric) Increment() {
	m.value.Add(1)
}

// IncrementBy increments the metric by v.
func (m *Uint64Metric) IncrementBy(v uint64) {
	m.value.Add(v)
}

// Set sets the value of a gauge. It panics on cumulative metrics, whose value
// must never go backwards.
func (m *Uint64Metric) Set(v uint64) {
	if m.cumulative {
		panic(fmt.Sprintf("Set called on cumulative metric %q", m.name))
	}
	m.value.Store(v)
}

// Registry holds a set of metrics.
type Registry struct {
	mu      sync.Mutex
	metrics map[string]*Uint64Metric
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{metrics: make(map[string]*Uint64Metric)}
}

// NewUint64Metric creates and registers a new metric with the given name.
func (r *Registry) NewUint64Metric(name string, cumulative bool, description string) (*Uint64Metric, error) {
	if !metricNameRegexp.MatchString(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMetricName, name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.metrics[name]; ok {
		return nil, fmt.Errorf("%w: %q", ErrNameInUse, name)
	}
	m := &Uint64Metric{
		name:        name,
		description: description,
		cumulative:  cumulative,
	}
	r.metrics[name] = m
	return m, nil
}

// MustCreateNewUint64Metric calls NewUint64Metric and panics if it returns
// an error.
func (r *Registry) MustCreateNewUint64Metric(name string, cumulative bool, description string) *Uint64Metric {
	m, err := r.NewUint64Metric(name, cumulative, description)
	if err != nil {
		panic(fmt.Sprintf("Unable to create metric %q: %s", name, err))
	}
	return m
}

// sorted returns the registered metrics ordered by name.
func (r *Registry) sorted() []*Uint64Metric {
	r.mu.Lock()
	ms := make([]*Uint64Metric, 0, len(r.metrics))
	for _, m := range r.metrics {
		ms = append(ms, m)
	}
	r.mu.Unlock()
	sort.Slice(ms, func(i, j int) bool { return ms[i].name < ms[j].name })
	return ms
}

// Values returns a snapshot of every metric value, keyed by name.
func (r *Registry) Values() map[string]uint64 {
	vals := make(map[string]uint64)
	for _, m := range r.sorted() {
		vals[m.name] = m.Value()
	}
	return vals
}
