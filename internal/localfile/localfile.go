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

// Package localfile holds the writable staging cache for one open regular
// file: a chunked in-memory buffer tracking dirtiness between open/create
// and release, modeled after a mutable view over an initially read-only
// proxy with a dirty threshold, generalized here to a fixed chunk vector
// since the staging cache, unlike a lease, always owns its bytes outright.
package localfile

import (
	"context"
	"sync"

	"github.com/aksaharan/mgridfs/clock"
	"github.com/aksaharan/mgridfs/internal/bucket"
	"github.com/aksaharan/mgridfs/internal/errs"
	"github.com/aksaharan/mgridfs/internal/metacodec"
	"github.com/aksaharan/mgridfs/internal/pathutil"
)

// LocalFile is the staging cache for one writable open file. All mutating
// operations hold mu for their entire duration: two descriptors over the
// same path share one LocalFile, so concurrent access interleaves at
// chunk-copy granularity.
type LocalFile struct {
	mu sync.Mutex

	filename  string
	chunkSize int64
	maxSize   int64
	dynamic   bool

	size     int64
	chunks   [][]byte
	dirty    bool
	readOnly bool

	bucket bucket.Facade
	clock  clock.Clock
}

// New builds an empty LocalFile for filename. chunkSize is the configured
// staging-chunk size (bytes); maxSize bounds how large the staged buffer
// may grow. When dynamic is set, OpenRemote adopts the backing file's own
// chunk size instead of chunkSize (the enable_dyn_mem_chunk option).
func New(filename string, chunkSize, maxSize int64, dynamic bool, b bucket.Facade, clk clock.Clock) *LocalFile {
	return &LocalFile{
		filename:  filename,
		chunkSize: chunkSize,
		maxSize:   maxSize,
		dynamic:   dynamic,
		bucket:    b,
		clock:     clk,
	}
}

// Size returns the current logical size.
func (f *LocalFile) Size() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.size
}

// Capacity returns chunkSize * len(chunks); always >= Size().
func (f *LocalFile) Capacity() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.capacityLocked()
}

func (f *LocalFile) capacityLocked() int64 {
	return f.chunkSize * int64(len(f.chunks))
}

// SetReadOnly marks the file read-only; subsequent Write calls fail.
func (f *LocalFile) SetReadOnly(ro bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readOnly = ro
}

// SetSize grows or shrinks the logical size. Growth allocates additional
// chunks until capacity >= newSize; fails with errs.OutOfRange if newSize
// exceeds maxSize. Marks the file dirty.
func (f *LocalFile) SetSize(newSize int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.setSizeLocked(newSize)
}

func (f *LocalFile) setSizeLocked(newSize int64) error {
	if newSize > f.maxSize {
		return errs.New(errs.OutOfRange, "localfile: set_size exceeds max_memory_file_size")
	}

	f.growToLocked(newSize)
	f.size = newSize
	f.dirty = true
	return nil
}

// growToLocked ensures capacity >= target, appending zeroed chunks.
func (f *LocalFile) growToLocked(target int64) {
	for f.capacityLocked() < target {
		f.chunks = append(f.chunks, make([]byte, f.chunkSize))
	}
}

// Read copies up to len(buf) bytes starting at offset into buf, never
// reading past the current size. Returns 0 at EOF (offset >= size).
func (f *LocalFile) Read(buf []byte, offset int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if offset >= f.size {
		return 0, nil
	}

	want := int64(len(buf))
	if offset+want > f.size {
		want = f.size - offset
	}

	var copied int64
	for copied < want {
		abs := offset + copied
		idx := abs / f.chunkSize
		within := abs % f.chunkSize
		if int(idx) >= len(f.chunks) {
			return int(copied), errs.New(errs.BackendIO, "localfile: read past allocated chunks")
		}

		n := int64(copy(buf[copied:want], f.chunks[idx][within:]))
		if n == 0 {
			break
		}
		copied += n
	}

	return int(copied), nil
}

// Write copies data into the buffer at offset, growing as needed. Fails
// with errs.OutOfRange if the file is read-only or growth exceeds maxSize;
// both reject the write with the read-only-filesystem errno.
func (f *LocalFile) Write(data []byte, offset int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.readOnly {
		return 0, errs.New(errs.OutOfRange, "localfile: write to read-only staged file")
	}

	end := offset + int64(len(data))
	if end > f.size {
		if err := f.setSizeLocked(end); err != nil {
			return 0, err
		}
	}

	f.writeBytesLocked(data, offset)
	f.dirty = true
	return len(data), nil
}

func (f *LocalFile) writeBytesLocked(data []byte, offset int64) {
	var written int64
	for written < int64(len(data)) {
		abs := offset + written
		idx := abs / f.chunkSize
		within := abs % f.chunkSize
		n := copy(f.chunks[idx][within:], data[written:])
		written += int64(n)
	}
}

// OpenRemote populates the buffer from the backing BucketFile by streaming
// its chunks in order. Refuses files larger than maxSize with
// errs.OutOfRange. Clears dirty on success. truncate additionally zeroes
// the size after loading (the O_TRUNC case).
func (f *LocalFile) OpenRemote(ctx context.Context, truncate bool) error {
	file, err := f.bucket.FindByFilename(ctx, f.filename)
	if err != nil {
		return err
	}
	if file == nil {
		return errs.New(errs.NotFound, "localfile: open_remote: no such file "+f.filename)
	}

	if file.ContentLength > f.maxSize {
		return errs.New(errs.OutOfRange, "localfile: remote file exceeds max_memory_file_size")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.dynamic && file.ChunkSize > 0 && len(f.chunks) == 0 {
		f.chunkSize = int64(file.ChunkSize)
	}

	f.growToLocked(file.ContentLength)

	numChunks := file.NumChunks()
	var offset int64
	for i := int64(0); i < numChunks; i++ {
		data, err := f.bucket.ReadChunk(ctx, file, i)
		if err != nil {
			return err
		}
		f.writeBytesLocked(data, offset)
		offset += int64(len(data))
	}

	f.size = file.ContentLength
	f.dirty = false

	if truncate {
		return f.setSizeLocked(0)
	}
	return nil
}

// Flush writes the buffer back to the bucket if dirty, via a
// remove-then-store sequence that carries forward uid/gid/mode from the
// file's previously stored metadata. No-op if not dirty. Holds mu for the
// entire call, per the concurrency design's per-file mutex discipline: a
// write that raced in mid-flush would otherwise go unpersisted while still
// being reported as clean.
func (f *LocalFile) Flush(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.dirty {
		return nil
	}

	buf := make([]byte, f.size)
	var copied int64
	for copied < f.size {
		idx := copied / f.chunkSize
		within := copied % f.chunkSize
		n := int64(copy(buf[copied:], f.chunks[idx][within:]))
		copied += n
	}

	existing, err := f.bucket.FindByFilename(ctx, f.filename)
	if err != nil {
		return err
	}
	if existing == nil {
		return errs.New(errs.NotFound, "localfile: flush: backing entry disappeared for "+f.filename)
	}

	meta := metacodec.Metadata{
		Type:        metacodec.TypeFile,
		Basename:    pathutil.Basename(f.filename),
		Directory:   pathutil.Dirname(f.filename),
		LastUpdated: f.clock.Now(),
		UID:         existing.Metadata.UID,
		GID:         existing.Metadata.GID,
		Mode:        existing.Metadata.Mode,
	}

	if err := f.bucket.RemoveByFilename(ctx, f.filename); err != nil {
		return err
	}
	if _, err := f.bucket.StoreBlob(ctx, f.filename, buf, meta); err != nil {
		return err
	}

	f.dirty = false
	return nil
}

// IsDirty reports whether the buffer has unflushed changes.
func (f *LocalFile) IsDirty() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dirty
}
