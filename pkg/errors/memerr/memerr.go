// Copyright 2021 The gVisor Authors.
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

// Package memerr contains the error values returned by the physical memory
// allocator and the page table navigator, exported as *errors.Error pointers
// so that they can be compared cheaply after unwrapping.
package memerr

import (
	pkgerrors "github.com/pkg/errors"
	"golang.org/x/sys/unix"
	"pinkyos.dev/pinkyos/pkg/errors"
)

// Error codes, one per error value below.
const (
	CodeMisalignedExtent errors.Code = iota + 1
	CodeExtentTooSmall
	CodeMalformedKeepout
	CodeBookkeepingCorruption
	CodeOrderOutOfRange
	CodeDoubleFree
	CodeInvalidBlock
	CodeNotInitialized
	CodeOutOfMemory
	CodeUnsupportedBlockMapping
	CodeNotMapped
	CodeAlreadyMapped
)

// Fatal errors. These are returned while the allocator state can still be
// inspected, but the caller must not continue to use the allocator.
var (
	noError                  *errors.Error = nil
	ErrMisalignedExtent                    = errors.NewFatal(CodeMisalignedExtent, "physical extent is not page aligned")
	ErrExtentTooSmall                      = errors.NewFatal(CodeExtentTooSmall, "physical extent too small to be managed")
	ErrMalformedKeepout                    = errors.NewFatal(CodeMalformedKeepout, "keep-out extent is empty or inverted")
	ErrBookkeepingCorruption               = errors.NewFatal(CodeBookkeepingCorruption, "keep-out extent overlaps allocator bookkeeping")
	ErrOrderOutOfRange                     = errors.NewFatal(CodeOrderOutOfRange, "block order out of range")
	ErrDoubleFree                          = errors.NewFatal(CodeDoubleFree, "block is already free")
	ErrInvalidBlock                        = errors.NewFatal(CodeInvalidBlock, "address is not a block of the managed heap")
	ErrNotInitialized                      = errors.NewFatal(CodeNotInitialized, "physical memory map is not initialized")
)

// Recoverable errors, surfaced to the caller.
var (
	ErrOutOfMemory             = errors.New(CodeOutOfMemory, "out of physical memory")
	ErrUnsupportedBlockMapping = errors.New(CodeUnsupportedBlockMapping, "block descriptors are not supported")
	ErrNotMapped               = errors.New(CodeNotMapped, "virtual address is not mapped")
	ErrAlreadyMapped           = errors.New(CodeAlreadyMapped, "virtual address is already mapped")
)

var unixErrors = map[*errors.Error]unix.Errno{
	ErrMisalignedExtent:        unix.EINVAL,
	ErrExtentTooSmall:          unix.EINVAL,
	ErrMalformedKeepout:        unix.EINVAL,
	ErrBookkeepingCorruption:   unix.EFAULT,
	ErrOrderOutOfRange:         unix.ERANGE,
	ErrDoubleFree:              unix.EFAULT,
	ErrInvalidBlock:            unix.EFAULT,
	ErrNotInitialized:          unix.ENXIO,
	ErrOutOfMemory:             unix.ENOMEM,
	ErrUnsupportedBlockMapping: unix.ENOTSUP,
	ErrNotMapped:               unix.EFAULT,
	ErrAlreadyMapped:           unix.EEXIST,
}

// From returns the *errors.Error at the root of err, which may have been
// wrapped with context. ok is false if err does not originate here.
func From(err error) (*errors.Error, bool) {
	if err == nil {
		return noError, false
	}
	e, ok := pkgerrors.Cause(err).(*errors.Error)
	return e, ok
}

// Equals compares a memerr to a given, possibly wrapped, error.
func Equals(e *errors.Error, err error) bool {
	if err == nil {
		return e == noError
	}
	root, ok := From(err)
	return ok && root == e
}

// IsFatal returns true if err originates from a fatal error value.
func IsFatal(err error) bool {
	root, ok := From(err)
	return ok && root.Fatal()
}

// ToUnix converts a possibly wrapped memerr to a unix.Errno. Errors that do
// not originate here map to EIO.
func ToUnix(err error) unix.Errno {
	if err == nil {
		return 0
	}
	root, ok := From(err)
	if !ok {
		return unix.EIO
	}
	if errno, ok := unixErrors[root]; ok {
		return errno
	}
	return unix.EIO
}
