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

package log

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// levelNames are the JSON names of each Level.
var levelNames = [...]string{Warning: "warning", Info: "info", Debug: "debug"}

// MarshalJSON implements json.Marshaler.MarshalJSON.
func (l Level) MarshalJSON() ([]byte, error) {
	if int(l) >= len(levelNames) {
		return nil, fmt.Errorf("unknown level %v", l)
	}
	return strconv.AppendQuote(nil, levelNames[l]), nil
}

// UnmarshalJSON implements json.Unmarshaler.UnmarshalJSON. Both the names
// written by MarshalJSON and the numeric values are accepted.
func (l *Level) UnmarshalJSON(b []byte) error {
	s := string(b)
	if n, err := strconv.ParseUint(s, 10, 32); err == nil && n < uint64(len(levelNames)) {
		*l = Level(n)
		return nil
	}
	if name, err := strconv.Unquote(s); err == nil {
		for i, ln := range levelNames {
			if name == ln {
				*l = Level(i)
				return nil
			}
		}
	}
	return fmt.Errorf("unknown level %q", s)
}

// ParseLevel parses a level name as accepted on the command line.
func ParseLevel(s string) (Level, error) {
	var l Level
	if err := l.UnmarshalJSON(strconv.AppendQuote(nil, strings.ToLower(s))); err != nil {
		return Warning, err
	}
	return l, nil
}

// jsonLog is one record written by JSONEmitter.
type jsonLog struct {
	Msg       string    `json:"msg"`
	Level     Level     `json:"level"`
	Time      time.Time `json:"time"`
	Component string    `json:"component,omitempty"`
}

// JSONEmitter logs messages in json format, one object per line.
type JSONEmitter struct {
	*Writer

	// Component, if set, is attached to every record. kmemsim uses it to
	// tell the allocator and page table streams apart.
	Component string
}

// Emit implements Emitter.Emit.
func (e JSONEmitter) Emit(depth int, level Level, timestamp time.Time, format string, v ...any) {
	msg := fmt.Sprintf(format, v...)
	if loc, ok := caller(depth); ok {
		msg = loc + "] " + msg
	}
	b, err := json.Marshal(jsonLog{
		Msg:       msg,
		Level:     level,
		Time:      timestamp,
		Component: e.Component,
	})
	if err != nil {
		panic(err)
	}
	e.Writer.Write(append(b, '\n'))
}
