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

package memerr

import (
	"fmt"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

func TestEquals(t *testing.T) {
	wrapped := pkgerrors.Wrapf(ErrDoubleFree, "block %#x order %d", 0x40001000, 0)
	if !Equals(ErrDoubleFree, wrapped) {
		t.Errorf("Equals(ErrDoubleFree, %v) = false", wrapped)
	}
	if Equals(ErrOutOfMemory, wrapped) {
		t.Errorf("Equals(ErrOutOfMemory, %v) = true", wrapped)
	}
	if !Equals(nil, nil) {
		t.Errorf("Equals(nil, nil) = false")
	}
	if Equals(ErrNotMapped, fmt.Errorf("unrelated")) {
		t.Errorf("Equals matched an unrelated error")
	}
}

func TestIsFatal(t *testing.T) {
	for _, tc := range []struct {
		err   error
		fatal bool
	}{
		{ErrMisalignedExtent, true},
		{ErrExtentTooSmall, true},
		{ErrMalformedKeepout, true},
		{ErrBookkeepingCorruption, true},
		{pkgerrors.Wrap(ErrOrderOutOfRange, "allocate"), true},
		{ErrDoubleFree, true},
		{ErrOutOfMemory, false},
		{ErrUnsupportedBlockMapping, false},
		{ErrNotMapped, false},
		{pkgerrors.Wrap(ErrAlreadyMapped, "map"), false},
		{fmt.Errorf("unrelated"), false},
		{nil, false},
	} {
		if got := IsFatal(tc.err); got != tc.fatal {
			t.Errorf("IsFatal(%v) = %v, want %v", tc.err, got, tc.fatal)
		}
	}
}

func TestToUnix(t *testing.T) {
	for _, tc := range []struct {
		err  error
		want unix.Errno
	}{
		{nil, 0},
		{ErrOutOfMemory, unix.ENOMEM},
		{pkgerrors.Wrap(ErrAlreadyMapped, "map"), unix.EEXIST},
		{ErrNotMapped, unix.EFAULT},
		{ErrUnsupportedBlockMapping, unix.ENOTSUP},
		{fmt.Errorf("unrelated"), unix.EIO},
	} {
		if got := ToUnix(tc.err); got != tc.want {
			t.Errorf("ToUnix(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
