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

package config

import (
	"flag"
	"fmt"
	"reflect"
	"strconv"
	"time"
)

// RegisterFlags registers flags used to populate Config.
func RegisterFlags(flagSet *flag.FlagSet) {
	flagSet.String("memory-map", "", "path to the boot memory map (.toml, .yaml or .yml). If empty, a 64 MiB map at 0x40000000 without keep-outs is used.")
	flagSet.String("extent", "", "overrides the physical extent of the memory map, e.g. 0x40000000-0x44000000.")
	flagSet.Bool("debug", false, "enable debug logging.")
	flagSet.String("log", "", "file path where logs are written, default is stderr. The following variables are available: %TIMESTAMP%, %COMMAND%.")
	flagSet.String("log-format", LogFormatAuto, "log format: text, json or logrus. If empty, text is used on a terminal and json otherwise.")
	flagSet.String("metrics-prefix", "kmemsim_", "prefix for exported metric names, following Prometheus exporter convention.")
	flagSet.Duration("oom-log-interval", time.Second, "minimum interval between two out-of-memory warnings.")
}

// flagFields calls fn for every Config field carrying a flag tag, together
// with the flag registered for it in flagSet.
func flagFields(c *Config, flagSet *flag.FlagSet, fn func(field reflect.Value, fl *flag.Flag)) {
	obj := reflect.ValueOf(c).Elem()
	for _, f := range reflect.VisibleFields(obj.Type()) {
		name, ok := f.Tag.Lookup("flag")
		if !ok {
			continue
		}
		fl := flagSet.Lookup(name)
		if fl == nil {
			panic(fmt.Sprintf("flag %q for Config.%s not registered", name, f.Name))
		}
		fn(obj.FieldByIndex(f.Index), fl)
	}
}

// NewFromFlags creates a new Config with values coming from command line flags.
func NewFromFlags(flagSet *flag.FlagSet) (*Config, error) {
	conf := &Config{}
	flagFields(conf, flagSet, func(field reflect.Value, fl *flag.Flag) {
		field.Set(reflect.ValueOf(fl.Value.(flag.Getter).Get()))
	})
	if err := conf.validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// ToFlags returns the command line flags that reproduce c, omitting those
// left at their default.
func (c *Config) ToFlags() []string {
	defaults := flag.NewFlagSet("defaults", flag.ContinueOnError)
	RegisterFlags(defaults)

	var rv []string
	flagFields(c, defaults, func(field reflect.Value, fl *flag.Flag) {
		if val := flagString(field); val != fl.DefValue {
			rv = append(rv, fmt.Sprintf("--%s=%s", fl.Name, val))
		}
	})
	return rv
}

// flagString formats field the way its flag.Value would.
func flagString(field reflect.Value) string {
	if str, ok := field.Addr().Interface().(fmt.Stringer); ok {
		return str.String()
	}
	switch field.Kind() {
	case reflect.Bool:
		return strconv.FormatBool(field.Bool())
	case reflect.Int, reflect.Int64:
		return strconv.FormatInt(field.Int(), 10)
	case reflect.Uint, reflect.Uint64:
		return strconv.FormatUint(field.Uint(), 10)
	case reflect.String:
		return field.String()
	default:
		panic("unsupported flag field kind " + field.Kind().String())
	}
}
