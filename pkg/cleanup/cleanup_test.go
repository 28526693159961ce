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

package cleanup

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCleanup(t *testing.T) {
	for _, tc := range []struct {
		name string
		// release, if set, releases the cleanup and then calls the returned
		// function once Clean has run.
		release bool
		// cleanTwice calls Clean a second time.
		cleanTwice bool
		want       []int
	}{
		{
			name: "clean",
			want: []int{3, 2, 1},
		},
		{
			name:       "clean twice",
			cleanTwice: true,
			want:       []int{3, 2, 1},
		},
		{
			name:    "release",
			release: true,
			want:    []int{3, 2, 1},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var ran []int
			cu := Make(func() { ran = append(ran, 1) })
			cu.Add(func() { ran = append(ran, 2) })
			cu.Add(func() { ran = append(ran, 3) })

			var released func()
			if tc.release {
				released = cu.Release()
			}
			cu.Clean()
			if tc.cleanTwice {
				cu.Clean()
			}
			if released != nil {
				if len(ran) != 0 {
					t.Fatalf("Clean after Release ran %v", ran)
				}
				released()
			}
			if diff := cmp.Diff(tc.want, ran); diff != "" {
				t.Errorf("cleaners ran in wrong order (-want +got):\n%s", diff)
			}
		})
	}
}

func TestReleaseEmpty(t *testing.T) {
	var cu Cleanup
	cu.Clean()
	cu.Release()()
}
