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

package localfs

import (
	"io"
	"log/slog"
	"testing"

	"github.com/aksaharan/mgridfs/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() *Registry {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(4, 1<<20, false, nil, clock.RealClock{}, logger)
}

func TestCreateReturnsSameInstance(t *testing.T) {
	r := newTestRegistry()

	f1 := r.Create("/a")
	f2 := r.Create("/a")
	assert.Same(t, f1, f2)
	assert.Equal(t, 1, r.Len())
}

func TestFindMissing(t *testing.T) {
	r := newTestRegistry()
	_, ok := r.Find("/missing")
	assert.False(t, ok)
}

func TestReleaseRemovesEntry(t *testing.T) {
	r := newTestRegistry()
	r.Create("/a")

	r.Release(t.Context(), "/a")

	_, ok := r.Find("/a")
	assert.False(t, ok)
}

func TestReleaseUnknownPathIsNoop(t *testing.T) {
	r := newTestRegistry()
	r.Release(t.Context(), "/missing") // must not panic
	assert.Equal(t, 0, r.Len())
}

func TestReleaseAllWithoutFlush(t *testing.T) {
	r := newTestRegistry()
	r.Create("/a")
	r.Create("/b")
	require.Equal(t, 2, r.Len())

	r.ReleaseAll(t.Context(), false)
	assert.Equal(t, 0, r.Len())
}
