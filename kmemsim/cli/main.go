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

// Package cli is the main entrypoint for kmemsim.
package cli

import (
	"context"
	"flag"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/google/subcommands"
	"golang.org/x/term"

	"pinkyos.dev/pinkyos/kmemsim/cmd"
	"pinkyos.dev/pinkyos/kmemsim/config"
	"pinkyos.dev/pinkyos/pkg/hostarch"
	"pinkyos.dev/pinkyos/pkg/log"
	"pinkyos.dev/pinkyos/pkg/sync"
)

// stderrIsTerminal reports whether stderr is a terminal.
var stderrIsTerminal = sync.OnceValue(func() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
})

// Main is the main entrypoint.
func Main() {
	// Register all commands.
	forEachCmd(subcommands.Register)

	// Register with the main command line.
	config.RegisterFlags(flag.CommandLine)

	// All subcommands must be registered before flag parsing.
	flag.Parse()

	// Create a new Config from the flags.
	conf, err := config.NewFromFlags(flag.CommandLine)
	if err != nil {
		cmd.Fatalf("%v", err)
	}
	subcommand := flag.CommandLine.Arg(0)

	var logFile io.Writer = os.Stderr
	if conf.LogFilename != "" {
		f, err := log.OpenFile(conf.LogFilename, os.O_WRONLY|os.O_CREATE|os.O_APPEND, log.PatternOpts{
			Command:   subcommand,
			Timestamp: time.Now(),
		})
		if err != nil {
			cmd.Fatalf("error opening log file %q: %v", conf.LogFilename, err)
		}
		logFile = f
		cmd.ErrorLogger = f
	}

	if conf.Debug {
		log.SetLevel(log.Debug)
	}
	log.SetTarget(newEmitter(conf.LogFormat, logFile, conf.LogFilename == ""))

	const delimString = `**************** kmemsim ****************`
	log.Infof(delimString)
	log.Infof("%s, %s, %d CPUs, %s, PID %d", runtime.Version(), runtime.GOARCH, runtime.NumCPU(), runtime.GOOS, os.Getpid())
	log.Debugf("Page size: %#x (%d bytes), physical address bits: %d", hostarch.PageSize, hostarch.PageSize, hostarch.PhysicalAddressBits)
	log.Infof("Args: %v", os.Args)
	conf.Log()
	log.Infof(delimString)

	// Call the subcommand and pass in the configuration.
	subcmdCode := subcommands.Execute(context.Background(), conf)
	if subcmdCode != subcommands.ExitSuccess {
		log.Warningf("Failure to execute command, err: %v", subcmdCode)
	}
	os.Exit(int(subcmdCode))
}

// forEachCmd invokes the passed callback for each command supported by
// kmemsim.
func forEachCmd(cb func(cmd subcommands.Command, group string)) {
	// Help and flags commands are generated automatically.
	cb(subcommands.HelpCommand(), "")
	cb(subcommands.FlagsCommand(), "")
	cb(subcommands.CommandsCommand(), "")

	cb(new(cmd.Boot), "")
	cb(new(cmd.Alloc), "")
	cb(new(cmd.Map), "")

	const debugGroup = "debug"
	cb(new(cmd.Stress), debugGroup)

	const metricGroup = "metrics"
	cb(new(cmd.ExportMetrics), metricGroup)
}

// newEmitter returns the emitter for format. The automatic format is text
// when logging to a terminal and JSON otherwise.
func newEmitter(format string, logFile io.Writer, toStderr bool) log.Emitter {
	if format == config.LogFormatAuto {
		format = config.LogFormatJSON
		if toStderr && stderrIsTerminal() {
			format = config.LogFormatText
		}
	}
	switch format {
	case config.LogFormatText:
		return log.GoogleEmitter{Writer: &log.Writer{Next: logFile}}
	case config.LogFormatJSON:
		return log.JSONEmitter{Writer: &log.Writer{Next: logFile}, Component: "kmemsim"}
	case config.LogFormatLogrus:
		return log.NewLogrusEmitter(logFile, !toStderr)
	}
	cmd.Fatalf("invalid log format %q, must be 'text', 'json' or 'logrus'", format)
	panic("unreachable")
}
