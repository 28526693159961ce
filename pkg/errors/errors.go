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

// Package errors holds the standardized error definition for the memory
// management core.
package errors

import "fmt"

// Code identifies a class of memory management failure.
type Code uint32

// Error represents a memory management failure with a descriptive message.
//
// A fatal Error indicates corrupted or unusable bookkeeping, or a caller bug;
// the system cannot safely continue after one is observed.
type Error struct {
	code    Code
	fatal   bool
	message string
}

// New creates a new recoverable *Error.
func New(code Code, message string) *Error {
	return &Error{
		code:    code,
		message: message,
	}
}

// NewFatal creates a new fatal *Error.
func NewFatal(code Code, message string) *Error {
	return &Error{
		code:    code,
		fatal:   true,
		message: message,
	}
}

// Error implements error.Error.
func (e *Error) Error() string { return e.message }

// Code returns the underlying Code value.
func (e *Error) Code() Code { return e.code }

// Fatal returns true if the error must halt the system.
func (e *Error) Fatal() bool { return e.fatal }

// GoString implements fmt.GoStringer.GoString.
func (e *Error) GoString() string {
	return fmt.Sprintf("errors.Error{code: %d, fatal: %t, message: %q}", e.code, e.fatal, e.message)
}
