// Copyright 2023 The gVisor Authors.
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

package metric

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRegistration(t *testing.T) {
	r := NewRegistry()
	if _, err := r.NewUint64Metric("/pmm/allocations", true, "allocations"); err != nil {
		t.Fatalf("NewUint64Metric: %v", err)
	}
	for _, tc := range []struct {
		name string
		want error
	}{
		{name: "/pmm/allocations", want: ErrNameInUse},
		{name: "pmm/allocations", want: ErrInvalidMetricName},
		{name: "/pmm/Allocations", want: ErrInvalidMetricName},
		{name: "/pmm//frees", want: ErrInvalidMetricName},
		{name: "/pmm/frees"},
	} {
		_, err := r.NewUint64Metric(tc.name, true, "")
		if !errors.Is(err, tc.want) {
			t.Errorf("NewUint64Metric(%q) = %v, want %v", tc.name, err, tc.want)
		}
	}
}

func TestValues(t *testing.T) {
	r := NewRegistry()
	allocs := r.MustCreateNewUint64Metric("/pmm/allocations", true, "")
	free := r.MustCreateNewUint64Metric("/pmm/free_bytes", false, "")
	allocs.Increment()
	allocs.IncrementBy(4)
	free.Set(1 << 20)
	free.Set(4096)

	want := map[string]uint64{
		"/pmm/allocations": 5,
		"/pmm/free_bytes":  4096,
	}
	if diff := cmp.Diff(want, r.Values()); diff != "" {
		t.Errorf("Values() mismatch (-want +got):\n%s", diff)
	}
}

func TestSetCumulativePanics(t *testing.T) {
	r := NewRegistry()
	m := r.MustCreateNewUint64Metric("/pmm/frees", true, "")
	defer func() {
		if recover() == nil {
			t.Errorf("Set on a cumulative metric did not panic")
		}
	}()
	m.Set(1)
}

func TestWriteText(t *testing.T) {
	r := NewRegistry()
	r.MustCreateNewUint64Metric("/pmm/splits", true, "Blocks split.").IncrementBy(7)
	r.MustCreateNewUint64Metric("/pmm/free_bytes", false, "Free bytes.").Set(8192)

	var buf bytes.Buffer
	if err := r.WriteText(&buf, "kmemsim_"); err != nil {
		t.Fatalf("WriteText: %v", err)
	}
	text := buf.String()
	for _, line := range []string{
		"# TYPE kmemsim_pmm_splits counter",
		"# TYPE kmemsim_pmm_free_bytes gauge",
		"# HELP kmemsim_pmm_splits Blocks split.",
	} {
		if !strings.Contains(text, line) {
			t.Errorf("output missing %q:\n%s", line, text)
		}
	}

	got, err := ParseText(&buf)
	if err != nil {
		t.Fatalf("ParseText: %v", err)
	}
	want := map[string]float64{
		"kmemsim_pmm_splits":     7,
		"kmemsim_pmm_free_bytes": 8192,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseText mismatch (-want +got):\n%s", diff)
	}
}

func TestPrometheusName(t *testing.T) {
	if got, want := PrometheusName("kmemsim_", "/pagetables/pages_mapped"), "kmemsim_pagetables_pages_mapped"; got != want {
		t.Errorf("PrometheusName = %q, want %q", got, want)
	}
}
