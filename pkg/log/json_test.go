// Copyright 2020 The gVisor Authors.
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
	"strings"
	"testing"
	"time"
)

func TestLevelJSON(t *testing.T) {
	for _, lv := range []Level{Warning, Info, Debug} {
		b, err := json.Marshal(lv)
		if err != nil {
			t.Fatalf("json.Marshal(%v): %v", lv, err)
		}
		var got Level
		if err := json.Unmarshal(b, &got); err != nil {
			t.Fatalf("json.Unmarshal(%s): %v", b, err)
		}
		if got != lv {
			t.Errorf("round trip of %v through %s = %v", lv, b, got)
		}
	}
	if _, err := Level(7).MarshalJSON(); err == nil {
		t.Errorf("Level(7).MarshalJSON() succeeded")
	}
}

func TestLevelUnmarshal(t *testing.T) {
	for _, tc := range []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{in: "0", want: Warning},
		{in: "1", want: Info},
		{in: "2", want: Debug},
		{in: `"debug"`, want: Debug},
		{in: "3", wantErr: true},
		{in: `"Debug"`, wantErr: true},
		{in: `"2"`, wantErr: true},
	} {
		var got Level
		err := got.UnmarshalJSON([]byte(tc.in))
		if (err != nil) != tc.wantErr {
			t.Errorf("UnmarshalJSON(%s) error = %v, wantErr %v", tc.in, err, tc.wantErr)
			continue
		}
		if !tc.wantErr && got != tc.want {
			t.Errorf("UnmarshalJSON(%s) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	for _, tc := range []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{in: "debug", want: Debug},
		{in: "Info", want: Info},
		{in: "WARNING", want: Warning},
		{in: "trace", wantErr: true},
	} {
		got, err := ParseLevel(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tc.in, err, tc.wantErr)
			continue
		}
		if !tc.wantErr && got != tc.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestJSONEmitterComponent(t *testing.T) {
	tw := &testWriter{}
	e := JSONEmitter{Writer: &Writer{Next: tw}, Component: "pmm"}
	e.Emit(0, Debug, time.Time{}, "split order %d", 5)

	if len(tw.lines) == 0 {
		t.Fatalf("nothing emitted")
	}
	var rec jsonLog
	if err := json.Unmarshal([]byte(tw.lines[0]), &rec); err != nil {
		t.Fatalf("json.Unmarshal(%q): %v", tw.lines[0], err)
	}
	if rec.Component != "pmm" {
		t.Errorf("component = %q, want pmm", rec.Component)
	}
	if rec.Level != Debug {
		t.Errorf("level = %v, want %v", rec.Level, Debug)
	}
	if !strings.HasSuffix(rec.Msg, "] split order 5") {
		t.Errorf("msg = %q, want suffix %q", rec.Msg, "] split order 5")
	}
}
