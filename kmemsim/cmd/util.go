// Copyright 2024 The gVisor Authors.
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

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/subcommands"

	"pinkyos.dev/pinkyos/pkg/errors/memerr"
	"pinkyos.dev/pinkyos/pkg/log"
)

// ErrorLogger is where error messages should be written to. These messages are
// consumed by the operator, so they are written in addition to the regular
// log and to stderr.
var ErrorLogger io.Writer

// Writer writes to log and stdout.
type Writer struct{}

// Write implements io.Writer.
func (i *Writer) Write(data []byte) (n int, err error) {
	log.Infof("%s", data)
	return os.Stdout.Write(data)
}

// Infof writes message to log and stdout.
func Infof(format string, args ...any) {
	log.Infof(format, args...)
	fmt.Printf(format+"\n", args...)
}

// Errorf logs error to the log (--log), to stderr and to ErrorLogger. It
// returns subcommands.ExitFailure for convenience with subcommand.Execute()
// methods:
//
//	return Errorf("Danger! Danger!")
func Errorf(format string, args ...any) subcommands.ExitStatus {
	writeError(format, args...)
	return subcommands.ExitFailure
}

// Fatalf logs the same way as Errorf() does, plus *exits* the process.
func Fatalf(format string, args ...any) {
	writeError(format, args...)
	// Return an error that is unlikely to be used by the application.
	os.Exit(128)
}

func writeError(format string, args ...any) {
	// Always log to the debug log first.
	log.Warningf(format, args...)

	// Also write to stderr and the error log if set.
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, msg)
	if ErrorLogger != nil {
		// Error logs are JSON lines so that they can be parsed by tooling.
		type jsonError struct {
			Msg   string    `json:"msg"`
			Level string    `json:"level"`
			Time  time.Time `json:"time"`
		}
		b, err := json.Marshal(jsonError{Msg: msg, Level: "error", Time: time.Now()})
		if err == nil {
			_, _ = ErrorLogger.Write(append(b, '\n'))
		}
	}
}

// Halt is the memory manager halt hook used by every command. It reports
// err and exits with 128 plus the errno memerr maps it to.
func Halt(err error) {
	writeError("memory manager halted: %v", err)
	os.Exit(128 + int(memerr.ToUnix(err)))
}
