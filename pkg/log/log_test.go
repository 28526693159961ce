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
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/time/rate"
)

type testWriter struct {
	lines []string
	fail  bool
}

func (w *testWriter) Write(bytes []byte) (int, error) {
	if w.fail {
		return 0, fmt.Errorf("simulated failure")
	}
	w.lines = append(w.lines, string(bytes))
	return len(bytes), nil
}

func TestDropMessages(t *testing.T) {
	tw := &testWriter{}
	w := Writer{Next: tw}
	if _, err := w.Write([]byte("line 1\n")); err != nil {
		t.Fatalf("Write failed, err: %v", err)
	}

	tw.fail = true
	if _, err := w.Write([]byte("error\n")); err == nil {
		t.Fatalf("Write should have failed")
	}
	if _, err := w.Write([]byte("error\n")); err == nil {
		t.Fatalf("Write should have failed")
	}

	tw.fail = false
	if _, err := w.Write([]byte("line 2\n")); err != nil {
		t.Fatalf("Write failed, err: %v", err)
	}

	expected := []string{
		"line 1\n",
		"line 2\n",
		"\n*** Dropped 2 log messages ***\n",
	}
	if diff := cmp.Diff(expected, tw.lines); diff != "" {
		t.Fatalf("Writer lines mismatch (-want +got):\n%s", diff)
	}
}

func TestWriterAppendsNewline(t *testing.T) {
	tw := &testWriter{}
	w := Writer{Next: tw}
	if _, err := w.Write([]byte("no newline")); err != nil {
		t.Fatalf("Write failed, err: %v", err)
	}
	if diff := cmp.Diff([]string{"no newline", "\n"}, tw.lines); diff != "" {
		t.Fatalf("Writer lines mismatch (-want +got):\n%s", diff)
	}
}

func TestGoogleEmitter(t *testing.T) {
	tw := &testWriter{}
	g := GoogleEmitter{&Writer{Next: tw}}
	ts := time.Date(2024, time.January, 2, 3, 4, 5, 6000, time.UTC)
	g.Emit(0, Info, ts, "allocated order %d", 3)

	if len(tw.lines) != 1 {
		t.Fatalf("got %d lines, want 1: %v", len(tw.lines), tw.lines)
	}
	line := tw.lines[0]
	if want := "I0102 03:04:05.000006 "; !strings.HasPrefix(line, want) {
		t.Errorf("line %q does not start with %q", line, want)
	}
	if !strings.Contains(line, " log_test.go:") {
		t.Errorf("line %q does not name the calling file", line)
	}
	if want := "] allocated order 3\n"; !strings.HasSuffix(line, want) {
		t.Errorf("line %q does not end with %q", line, want)
	}
}

func TestLevelFiltering(t *testing.T) {
	tw := &testWriter{}
	l := &BasicLogger{Level: Info, Emitter: &Writer{Next: tw}}

	l.Debugf("hidden")
	l.Infof("info")
	l.Warningf("warning")
	l.SetLevel(Debug)
	l.Debugf("debug")

	want := []string{"info", "\n", "warning", "\n", "debug", "\n"}
	if diff := cmp.Diff(want, tw.lines); diff != "" {
		t.Errorf("logged lines mismatch (-want +got):\n%s", diff)
	}
	if !l.IsLogging(Debug) {
		t.Errorf("IsLogging(Debug) = false after SetLevel(Debug)")
	}
}

func TestMultiEmitter(t *testing.T) {
	a, b := &testWriter{}, &testWriter{}
	m := MultiEmitter{&Writer{Next: a}, &Writer{Next: b}}
	m.Emit(0, Warning, time.Now(), "both %s\n", "sides")
	for i, tw := range []*testWriter{a, b} {
		if diff := cmp.Diff([]string{"both sides\n"}, tw.lines); diff != "" {
			t.Errorf("emitter %d mismatch (-want +got):\n%s", i, diff)
		}
	}
}

type recordingLogger struct {
	lines []string
}

func (r *recordingLogger) Debugf(format string, v ...any) {
	r.lines = append(r.lines, fmt.Sprintf(format, v...))
}

func (r *recordingLogger) Infof(format string, v ...any) {
	r.lines = append(r.lines, fmt.Sprintf(format, v...))
}

func (r *recordingLogger) Warningf(format string, v ...any) {
	r.lines = append(r.lines, fmt.Sprintf(format, v...))
}

func (r *recordingLogger) IsLogging(Level) bool { return true }

func TestRateLimitedLogger(t *testing.T) {
	rec := &recordingLogger{}
	l := RateLimitedLogger(rec, time.Hour)
	l.Warningf("out of memory at order %d", 0)
	l.Warningf("out of memory at order %d", 1)
	l.Warningf("out of memory at order %d", 2)
	if diff := cmp.Diff([]string{"out of memory at order 0"}, rec.lines); diff != "" {
		t.Fatalf("rate limited lines mismatch (-want +got):\n%s", diff)
	}

	// Open the limiter and check the suppressed count is reported once.
	rl := l.(*rateLimitedLogger)
	rl.limit = rate.NewLimiter(rate.Inf, 1)
	l.Infof("recovered")
	l.Infof("steady")
	want := []string{
		"out of memory at order 0",
		"recovered (2 similar messages suppressed)",
		"steady",
	}
	if diff := cmp.Diff(want, rec.lines); diff != "" {
		t.Errorf("rate limited lines mismatch (-want +got):\n%s", diff)
	}
}

func TestRateLimitedLoggerKeepsArgs(t *testing.T) {
	rec := &recordingLogger{}
	l := RateLimitedLogger(rec, time.Hour)
	l.(*rateLimitedLogger).suppressed.Store(1)

	args := make([]any, 1, 4)
	args[0] = 7
	spare := args[:2]
	spare[1] = "untouched"
	l.Debugf("order %d", args...)

	if spare[1] != "untouched" {
		t.Errorf("caller's argument array overwritten with %v", spare[1])
	}
	if diff := cmp.Diff([]string{"order 7 (1 similar messages suppressed)"}, rec.lines); diff != "" {
		t.Errorf("rate limited lines mismatch (-want +got):\n%s", diff)
	}
}

func TestLogrusEmitter(t *testing.T) {
	var buf bytes.Buffer
	e := NewLogrusEmitter(&buf, true)
	e.Emit(0, Warning, time.Now(), "freed %d pages", 4)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("json.Unmarshal(%q): %v", buf.String(), err)
	}
	if got, want := rec["msg"], "freed 4 pages"; got != want {
		t.Errorf("msg = %v, want %v", got, want)
	}
	if got, want := rec["level"], "warning"; got != want {
		t.Errorf("level = %v, want %v", got, want)
	}
	if caller, _ := rec["caller"].(string); !strings.HasPrefix(caller, "log_test.go:") {
		t.Errorf("caller = %q, want log_test.go:<line>", caller)
	}
}

func TestPatternOpts(t *testing.T) {
	ts := time.Unix(0, 42)
	opts := PatternOpts{Command: "stress", Timestamp: ts}
	got := opts.Build("/tmp/kmemsim/%COMMAND%-%TIMESTAMP%.log")
	if want := "/tmp/kmemsim/stress-42.log"; got != want {
		t.Errorf("Build() = %q, want %q", got, want)
	}
}

func TestOpenFile(t *testing.T) {
	dir := t.TempDir()
	pattern := filepath.Join(dir, "sub", "%COMMAND%.log")
	f, err := OpenFile(pattern, os.O_WRONLY|os.O_CREATE, PatternOpts{Command: "boot"})
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer f.Close()
	if got, want := f.Name(), filepath.Join(dir, "sub", "boot.log"); got != want {
		t.Errorf("Name() = %q, want %q", got, want)
	}

	f, err = OpenFile("", 0, PatternOpts{})
	if err != nil || f != nil {
		t.Errorf("OpenFile(\"\") = %v, %v, want nil, nil", f, err)
	}
}
