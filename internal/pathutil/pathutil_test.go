// Copyright 2025 Google LLC
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

package pathutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBasename(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"/", ""},
		{"/foo", "foo"},
		{"/foo/bar", "bar"},
		{"/foo/bar/", ""},
		{"foo", "foo"},
	}

	for _, c := range cases {
		assert.Equal(t, c.want, Basename(c.in), "Basename(%q)", c.in)
	}
}

func TestDirname(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"/", "/"},
		{"/foo", "/"},
		{"/foo/bar", "/foo"},
		{"/foo/bar/baz", "/foo/bar"},
		{"/foo/", "/"},
	}

	for _, c := range cases {
		assert.Equal(t, c.want, Dirname(c.in), "Dirname(%q)", c.in)
	}
}

func TestBlocks512(t *testing.T) {
	for n := int64(0); n < 4096; n++ {
		b := Blocks512(n)
		assert.GreaterOrEqual(t, b*512, n)
		assert.Less(t, b*512, n+512)
	}
}
