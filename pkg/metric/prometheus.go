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
	"fmt"
	"io"
	"strings"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"
)

// PrometheusName returns the exported name of a metric: the exporter prefix
// followed by the metric name with its slashes replaced by underscores.
func PrometheusName(prefix, name string) string {
	return prefix + strings.ReplaceAll(strings.TrimPrefix(name, "/"), "/", "_")
}

// MetricFamilies returns one family per registered metric, ordered by name.
func (r *Registry) MetricFamilies(prefix string) []*dto.MetricFamily {
	ms := r.sorted()
	families := make([]*dto.MetricFamily, 0, len(ms))
	for _, m := range ms {
		v := float64(m.Value())
		f := &dto.MetricFamily{
			Name: proto.String(PrometheusName(prefix, m.name)),
			Help: proto.String(m.description),
		}
		if m.cumulative {
			f.Type = dto.MetricType_COUNTER.Enum()
			f.Metric = []*dto.Metric{{Counter: &dto.Counter{Value: proto.Float64(v)}}}
		} else {
			f.Type = dto.MetricType_GAUGE.Enum()
			f.Metric = []*dto.Metric{{Gauge: &dto.Gauge{Value: proto.Float64(v)}}}
		}
		families = append(families, f)
	}
	return families
}

// WriteText writes every metric in the Prometheus text exposition format.
func (r *Registry) WriteText(w io.Writer, prefix string) error {
	for _, f := range r.MetricFamilies(prefix) {
		if _, err := expfmt.MetricFamilyToText(w, f); err != nil {
			return fmt.Errorf("writing metric %q: %w", f.GetName(), err)
		}
	}
	return nil
}

// ParseText parses the Prometheus text format as written by WriteText and
// returns the value of each sample, keyed by exported name.
func ParseText(rd io.Reader) (map[string]float64, error) {
	var p expfmt.TextParser
	families, err := p.TextToMetricFamilies(rd)
	if err != nil {
		return nil, err
	}
	vals := make(map[string]float64, len(families))
	for name, f := range families {
		for _, m := range f.GetMetric() {
			switch f.GetType() {
			case dto.MetricType_COUNTER:
				vals[name] = m.GetCounter().GetValue()
			case dto.MetricType_GAUGE:
				vals[name] = m.GetGauge().GetValue()
			default:
				vals[name] = m.GetUntyped().GetValue()
			}
		}
	}
	return vals, nil
}
