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

// Package localfs is the path -> *localfile.LocalFile registry governing
// creation, lookup, and release of staged files. The registry lock only
// ever guards the map itself; per-file I/O always runs with the registry
// lock dropped.
package localfs

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aksaharan/mgridfs/clock"
	"github.com/aksaharan/mgridfs/internal/bucket"
	"github.com/aksaharan/mgridfs/internal/localfile"
)

// Registry is the LocalFS registry: at most one LocalFile per path, entries
// removed only through explicit Release/ReleaseAll/Discard.
type Registry struct {
	mu    sync.Mutex
	files map[string]*localfile.LocalFile

	chunkSize int64
	maxSize   int64
	dynamic   bool
	bucket    bucket.Facade
	clock     clock.Clock
	logger    *slog.Logger
}

// New builds an empty Registry. chunkSize/maxSize bound every LocalFile
// created through it; dynamic enables enable_dyn_mem_chunk, letting a
// LocalFile adopt its backing file's own chunk size on OpenRemote instead
// of chunkSize.
func New(chunkSize, maxSize int64, dynamic bool, b bucket.Facade, clk clock.Clock, logger *slog.Logger) *Registry {
	return &Registry{
		files:     make(map[string]*localfile.LocalFile),
		chunkSize: chunkSize,
		maxSize:   maxSize,
		dynamic:   dynamic,
		bucket:    b,
		clock:     clk,
		logger:    logger,
	}
}

// Find returns the LocalFile staged for path, if any.
func (r *Registry) Find(path string) (*localfile.LocalFile, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.files[path]
	return f, ok
}

// Create inserts a new empty LocalFile for path, or returns the existing
// one if path is already staged (preserving the single-LocalFile-per-path
// invariant rather than overwriting it).
func (r *Registry) Create(path string) *localfile.LocalFile {
	r.mu.Lock()
	defer r.mu.Unlock()

	if f, ok := r.files[path]; ok {
		return f
	}

	f := localfile.New(path, r.chunkSize, r.maxSize, r.dynamic, r.bucket, r.clock)
	r.files[path] = f
	return f
}

// Release flushes (logging but not propagating failure) and removes the
// LocalFile staged for path, if any.
func (r *Registry) Release(ctx context.Context, path string) {
	r.mu.Lock()
	f, ok := r.files[path]
	if ok {
		delete(r.files, path)
	}
	r.mu.Unlock()

	if !ok {
		return
	}

	if err := f.Flush(ctx); err != nil {
		r.logger.Warn("localfs: flush on release failed", "path", path, "error", err)
	}
}

// Discard removes the LocalFile staged for path without flushing it, for
// callers abandoning a staging attempt that never completed.
func (r *Registry) Discard(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.files, path)
}

// ReleaseAll releases every staged file, optionally flushing each first.
func (r *Registry) ReleaseAll(ctx context.Context, flush bool) {
	r.mu.Lock()
	paths := make([]string, 0, len(r.files))
	for p := range r.files {
		paths = append(paths, p)
	}
	r.mu.Unlock()

	for _, p := range paths {
		if flush {
			r.Release(ctx, p)
			continue
		}
		r.mu.Lock()
		delete(r.files, p)
		r.mu.Unlock()
	}
}

// Len returns the number of currently staged files.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.files)
}
