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

// Package handletable implements the process-wide bidirectional map between
// opaque 64-bit handles and path strings that backs opendir/open/create.
//
// Represented as two parallel maps (handle -> path, path -> set of handles)
// kept in sync under a single lock, since a bidirectional multimap isn't a
// language primitive here.
package handletable

import (
	"math"
	"sync"

	"github.com/aksaharan/mgridfs/internal/errs"
)

// DefaultMinHandle is the low band of reserved handle values. No handle
// returned by Assign is ever <= DefaultMinHandle, and 0 is never issued.
const DefaultMinHandle uint64 = 0

// Table is a bidirectional handle<->path map with monotonically increasing
// handle generation and wrap-around reuse. The zero value is not usable;
// construct with New.
type Table struct {
	min uint64

	lock          sync.Mutex
	next          uint64
	handleToPath  map[uint64]string
	pathToHandles map[string]map[uint64]struct{}
}

// New builds an empty Table. minHandle sets the reserved low band; pass
// DefaultMinHandle for normal operation. Tests that want to exercise handle
// exhaustion pass a minHandle close to math.MaxUint64.
func New(minHandle uint64) *Table {
	return &Table{
		min:           minHandle,
		next:          minHandle + 1,
		handleToPath:  make(map[uint64]string),
		pathToHandles: make(map[string]map[uint64]struct{}),
	}
}

// Assign allocates a fresh handle bound to path and returns it. Fails with
// errs.InvalidArg if path is empty, or errs.OutOfHandles if every handle in
// (minHandle, math.MaxUint64] is currently live.
func (t *Table) Assign(path string) (uint64, error) {
	if path == "" {
		return 0, errs.New(errs.InvalidArg, "handletable: empty path")
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	start := t.next
	candidate := start
	for {
		if _, live := t.handleToPath[candidate]; !live && candidate != 0 {
			t.next = t.advance(candidate)
			t.handleToPath[candidate] = path
			if t.pathToHandles[path] == nil {
				t.pathToHandles[path] = make(map[uint64]struct{})
			}
			t.pathToHandles[path][candidate] = struct{}{}
			return candidate, nil
		}

		candidate = t.advance(candidate)
		if candidate == start {
			return 0, errs.New(errs.OutOfHandles, "handletable: exhausted")
		}
	}
}

// advance returns the next candidate after h, wrapping to min+1 once h
// reaches math.MaxUint64.
func (t *Table) advance(h uint64) uint64 {
	if h == math.MaxUint64 {
		return t.min + 1
	}
	return h + 1
}

// Release removes the mapping for handle, if any. No-op if absent.
func (t *Table) Release(handle uint64) {
	t.lock.Lock()
	defer t.lock.Unlock()

	path, ok := t.handleToPath[handle]
	if !ok {
		return
	}

	delete(t.handleToPath, handle)
	if set := t.pathToHandles[path]; set != nil {
		delete(set, handle)
		if len(set) == 0 {
			delete(t.pathToHandles, path)
		}
	}
}

// LookupPath returns the path bound to handle, if it is live.
func (t *Table) LookupPath(handle uint64) (string, bool) {
	t.lock.Lock()
	defer t.lock.Unlock()

	path, ok := t.handleToPath[handle]
	return path, ok
}

// ReleaseAllForPath removes every handle currently bound to path, e.g. when
// a bucket entry is removed out from under open handles.
func (t *Table) ReleaseAllForPath(path string) {
	t.lock.Lock()
	defer t.lock.Unlock()

	for h := range t.pathToHandles[path] {
		delete(t.handleToPath, h)
	}
	delete(t.pathToHandles, path)
}

// Len returns the number of live handles. Exposed for tests and invariant
// checks, not part of the core contract.
func (t *Table) Len() int {
	t.lock.Lock()
	defer t.lock.Unlock()

	return len(t.handleToPath)
}
