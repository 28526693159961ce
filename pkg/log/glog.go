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
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"
)

// GoogleEmitter is a wrapper that emits logs in a format compatible with
// package github.com/golang/glog:
//
//	Lmmdd hh:mm:ss.uuuuuu pid file:line] msg...
//
// L is the level (D, I or W). The pid is space padded to 7 columns, as glog
// pads thread IDs.
type GoogleEmitter struct {
	*Writer
}

var levelChars = [...]byte{Warning: 'W', Info: 'I', Debug: 'D'}

var pid = os.Getpid()

// Emit implements Emitter.Emit.
func (g GoogleEmitter) Emit(depth int, level Level, timestamp time.Time, format string, args ...any) {
	buf := make([]byte, 0, 256)
	if int(level) < len(levelChars) {
		buf = append(buf, levelChars[level])
	} else {
		buf = append(buf, '?')
	}
	buf = timestamp.AppendFormat(buf, "0102 15:04:05.000000")
	buf = fmt.Appendf(buf, " %7d ", pid)
	if loc, ok := caller(depth); ok {
		buf = append(buf, loc...)
		buf = append(buf, "] "...)
	} else {
		buf = append(buf, "???:1] "...)
	}
	buf = fmt.Appendf(buf, format, args...)
	buf = append(buf, '\n')
	g.Writer.Write(buf)
}

// caller returns the base file name and line of the frame depth levels above
// the emitter calling it.
func caller(depth int) (string, bool) {
	_, file, line, ok := runtime.Caller(depth + 2)
	if !ok {
		return "", false
	}
	return filepath.Base(file) + ":" + strconv.Itoa(line), true
}
