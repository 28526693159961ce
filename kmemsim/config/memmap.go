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

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"pinkyos.dev/pinkyos/pkg/pmm"
)

// Address is a physical address in a memory map file. It may be written as
// an integer or as a string in any base strconv accepts ("0x40000000").
type Address uint64

// String implements fmt.Stringer.String.
func (a Address) String() string {
	return fmt.Sprintf("%#x", uint64(a))
}

func parseAddress(s string) (Address, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return Address(v), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.UnmarshalText.
func (a *Address) UnmarshalText(text []byte) error {
	v, err := parseAddress(string(text))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.MarshalText.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalTOML implements toml.Unmarshaler.UnmarshalTOML.
func (a *Address) UnmarshalTOML(data any) error {
	switch v := data.(type) {
	case string:
		return a.UnmarshalText([]byte(v))
	case int64:
		if v < 0 {
			return fmt.Errorf("invalid address %d: negative", v)
		}
		*a = Address(v)
		return nil
	default:
		return fmt.Errorf("invalid address %v of type %T", data, data)
	}
}

// UnmarshalYAML implements yaml.Unmarshaler.UnmarshalYAML.
func (a *Address) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: address must be a scalar", node.Line)
	}
	v, err := parseAddress(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*a = v
	return nil
}

// Range is a half-open range of physical addresses.
type Range struct {
	Start Address `toml:"start" yaml:"start"`
	End   Address `toml:"end" yaml:"end"`
}

// Extent converts r.
func (r Range) Extent() pmm.Extent {
	return pmm.Extent{Start: uint64(r.Start), End: uint64(r.End)}
}

// MemoryMap is the boot memory map: the RAM handed to the allocator and the
// holes in it firmware asks us not to touch.
type MemoryMap struct {
	Extent   Range   `toml:"extent" yaml:"extent"`
	Keepouts []Range `toml:"keepout" yaml:"keepout"`
}

// DefaultMemoryMap is used when no memory map file is given: 64 MiB of RAM at
// 0x40000000, the base of DRAM on the QEMU virt machine.
func DefaultMemoryMap() *MemoryMap {
	return &MemoryMap{Extent: Range{Start: 0x40000000, End: 0x44000000}}
}

// Extents returns the extent and keep-outs of m.
func (m *MemoryMap) Extents() (pmm.Extent, []pmm.Extent) {
	keepouts := make([]pmm.Extent, 0, len(m.Keepouts))
	for _, r := range m.Keepouts {
		keepouts = append(keepouts, r.Extent())
	}
	return m.Extent.Extent(), keepouts
}

// ParseMemoryMap decodes a memory map. format is "toml" or "yaml".
func ParseMemoryMap(data []byte, format string) (*MemoryMap, error) {
	var m MemoryMap
	switch format {
	case "toml":
		md, err := toml.Decode(string(data), &m)
		if err != nil {
			return nil, err
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("unknown memory map keys: %v", undecoded)
		}
	case "yaml":
		dec := yaml.NewDecoder(strings.NewReader(string(data)))
		dec.KnownFields(true)
		if err := dec.Decode(&m); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown memory map format %q", format)
	}
	if m.Extent.End == 0 {
		return nil, fmt.Errorf("memory map has no extent")
	}
	return &m, nil
}

// LoadMemoryMap reads the memory map at path. The format is chosen by the
// file extension.
func LoadMemoryMap(path string) (*MemoryMap, error) {
	var format string
	switch ext := filepath.Ext(path); ext {
	case ".toml":
		format = "toml"
	case ".yaml", ".yml":
		format = "yaml"
	default:
		return nil, fmt.Errorf("memory map %q: unknown extension %q, want .toml, .yaml or .yml", path, ext)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := ParseMemoryMap(data, format)
	if err != nil {
		return nil, fmt.Errorf("memory map %q: %w", path, err)
	}
	return m, nil
}

// LoadMemoryMap returns the memory map selected by c, with the extent
// override applied.
func (c *Config) LoadMemoryMap() (*MemoryMap, error) {
	m := DefaultMemoryMap()
	if c.MemoryMap != "" {
		var err error
		if m, err = LoadMemoryMap(c.MemoryMap); err != nil {
			return nil, err
		}
	}
	if c.Extent != "" {
		e, err := ParseExtent(c.Extent)
		if err != nil {
			return nil, err
		}
		m.Extent = Range{Start: Address(e.Start), End: Address(e.End)}
	}
	return m, nil
}
