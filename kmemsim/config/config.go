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

// Package config provides basic infrastructure to set configuration settings
// for kmemsim. Each setting that can be changed from the command line must
// be added to Config and a corresponding flag registered in flags.go.
package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mohae/deepcopy"

	"pinkyos.dev/pinkyos/pkg/log"
	"pinkyos.dev/pinkyos/pkg/pmm"
)

// Log formats accepted by --log-format.
const (
	// LogFormatAuto picks text on a terminal and JSON otherwise.
	LogFormatAuto   = ""
	LogFormatText   = "text"
	LogFormatJSON   = "json"
	LogFormatLogrus = "logrus"
)

// Config holds configuration that is not part of the memory map itself.
//
// Follow these steps to add a new flag:
//  1. Create a new field in Config.
//  2. Add a field tag with the flag name.
//  3. Register the flag in flags.go.
type Config struct {
	// MemoryMap is the path to the boot memory map, in TOML or YAML. If
	// empty, DefaultMemoryMap is used.
	MemoryMap string `flag:"memory-map"`

	// Extent, if set, replaces the extent of the memory map. Format is
	// "start-end" with both addresses in any base strconv accepts.
	Extent string `flag:"extent"`

	// Debug indicates that debug logging should be enabled.
	Debug bool `flag:"debug"`

	// LogFilename is the filename to log to, if not empty. The variables
	// %COMMAND% and %TIMESTAMP% are expanded.
	LogFilename string `flag:"log"`

	// LogFormat is the log format.
	LogFormat string `flag:"log-format"`

	// MetricsPrefix is prepended to exported metric names.
	MetricsPrefix string `flag:"metrics-prefix"`

	// OOMLogInterval is the minimum interval between two out-of-memory
	// warnings.
	OOMLogInterval time.Duration `flag:"oom-log-interval"`
}

var metricsPrefixRE = regexp.MustCompile(`^[a-zA-Z_:]*$`)

func (c *Config) validate() error {
	switch c.LogFormat {
	case LogFormatAuto, LogFormatText, LogFormatJSON, LogFormatLogrus:
	default:
		return fmt.Errorf("invalid log format %q, must be 'text', 'json' or 'logrus'", c.LogFormat)
	}
	if !metricsPrefixRE.MatchString(c.MetricsPrefix) {
		return fmt.Errorf("invalid metrics prefix %q", c.MetricsPrefix)
	}
	if c.OOMLogInterval < 0 {
		return fmt.Errorf("--oom-log-interval must be positive: %v", c.OOMLogInterval)
	}
	if c.Extent != "" {
		if _, err := ParseExtent(c.Extent); err != nil {
			return err
		}
	}
	return nil
}

// Copy returns a deep copy of c.
func (c *Config) Copy() *Config {
	return deepcopy.Copy(c).(*Config)
}

// Log logs important aspects of the configuration to the given log function.
func (c *Config) Log() {
	log.Infof("Config:")
	for _, f := range c.ToFlags() {
		log.Infof("  %s", f)
	}
}

// ParseExtent parses "start-end" into an extent. It only checks the syntax;
// alignment is the memory manager's business.
func ParseExtent(s string) (pmm.Extent, error) {
	start, end, ok := strings.Cut(s, "-")
	if !ok {
		return pmm.Extent{}, fmt.Errorf("invalid extent %q, want start-end", s)
	}
	var e pmm.Extent
	var err error
	if e.Start, err = strconv.ParseUint(strings.TrimSpace(start), 0, 64); err != nil {
		return pmm.Extent{}, fmt.Errorf("invalid extent start in %q: %w", s, err)
	}
	if e.End, err = strconv.ParseUint(strings.TrimSpace(end), 0, 64); err != nil {
		return pmm.Extent{}, fmt.Errorf("invalid extent end in %q: %w", s, err)
	}
	return e, nil
}
