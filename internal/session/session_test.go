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

package session

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aksaharan/mgridfs/clock"
	"github.com/aksaharan/mgridfs/internal/errs"
	"github.com/aksaharan/mgridfs/internal/posixmode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func newTestSession() (*Session, *fakeBucket) {
	return newTestSessionWithClock(clock.RealClock{})
}

func newTestSessionWithClock(clk clock.Clock) (*Session, *fakeBucket) {
	fb := newFakeBucket()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := Config{ChunkSizeBytes: 4, MaxMemoryFileSize: 1 << 20}
	return New(cfg, fb, clk, logger), fb
}

// Mount bootstrap: empty bucket -> load_or_create_root creates "/" with
// S_IFDIR|0700; getattr("/") then reports S_IFDIR and nlink 2.
func TestMountBootstrap(t *testing.T) {
	s, _ := newTestSession()
	ctx := t.Context()

	require.NoError(t, s.LoadOrCreateRoot(ctx))

	attr, err := s.Getattr(ctx, "/")
	require.NoError(t, err)
	assert.True(t, posixmode.IsDir(attr.Mode))
	assert.EqualValues(t, 2, attr.Nlink)
}

func TestMountBootstrapIdempotent(t *testing.T) {
	s, _ := newTestSession()
	ctx := t.Context()

	require.NoError(t, s.LoadOrCreateRoot(ctx))
	require.NoError(t, s.LoadOrCreateRoot(ctx))
}

// Directory create & list: mkdir a, mkdir a/b, create a/hello -> readdir(a)
// emits ".", "..", "b", "hello" in any order.
func TestDirectoryCreateAndList(t *testing.T) {
	s, _ := newTestSession()
	ctx := t.Context()

	require.NoError(t, s.Mkdir(ctx, "/a", 0o755, 1, 1))
	require.NoError(t, s.Mkdir(ctx, "/a/b", 0o755, 1, 1))
	_, err := s.Create(ctx, "/a/hello", 0o644, unix.O_WRONLY|unix.O_CREAT, 1, 1)
	require.NoError(t, err)

	h, err := s.Opendir(ctx, "/a")
	require.NoError(t, err)

	var names []string
	require.NoError(t, s.Readdir(ctx, "/a", h, func(name string) { names = append(names, name) }))

	assert.Equal(t, ".", names[0])
	assert.Equal(t, "..", names[1])
	assert.ElementsMatch(t, []string{"b", "hello"}, names[2:])
}

// Write-read round trip: create /f, write "hello world", release, reopen
// read-only, read back the same bytes.
func TestWriteReadRoundTrip(t *testing.T) {
	s, _ := newTestSession()
	ctx := t.Context()

	h, err := s.Create(ctx, "/f", 0o644, unix.O_WRONLY|unix.O_CREAT, 1, 1)
	require.NoError(t, err)

	n, err := s.Write(ctx, "/f", h, []byte("hello world"), 0)
	require.NoError(t, err)
	assert.Equal(t, 11, n)

	require.NoError(t, s.Release(ctx, "/f", h))

	h2, err := s.Open(ctx, "/f", unix.O_RDONLY, 1, 1)
	require.NoError(t, err)

	buf := make([]byte, 11)
	rn, err := s.Read(ctx, "/f", h2, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 11, rn)
	assert.Equal(t, "hello world", string(buf))
}

// Truncate smaller: a 100-byte staged file truncated to 10, flushed; a
// fresh getattr reports size 10, and reading 20 bytes returns only 10.
func TestTruncateSmaller(t *testing.T) {
	s, _ := newTestSession()
	ctx := t.Context()

	h, err := s.Create(ctx, "/f", 0o644, unix.O_WRONLY|unix.O_CREAT, 1, 1)
	require.NoError(t, err)

	data := make([]byte, 100)
	for i := range data {
		data[i] = byte(i)
	}
	_, err = s.Write(ctx, "/f", h, data, 0)
	require.NoError(t, err)

	require.NoError(t, s.Ftruncate(ctx, h, 10))
	require.NoError(t, s.Flush(ctx, "/f", h))
	require.NoError(t, s.Release(ctx, "/f", h))

	attr, err := s.Getattr(ctx, "/f")
	require.NoError(t, err)
	assert.EqualValues(t, 10, attr.Size)

	h2, err := s.Open(ctx, "/f", unix.O_RDONLY, 1, 1)
	require.NoError(t, err)
	buf := make([]byte, 20)
	n, err := s.Read(ctx, "/f", h2, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
}

// Rmdir non-empty: mkdir /d, create /d/x, rmdir /d -> ENOTEMPTY; unlink
// /d/x then rmdir /d -> success.
func TestRmdirNonEmpty(t *testing.T) {
	s, _ := newTestSession()
	ctx := t.Context()

	require.NoError(t, s.Mkdir(ctx, "/d", 0o755, 1, 1))
	_, err := s.Create(ctx, "/d/x", 0o644, unix.O_WRONLY|unix.O_CREAT, 1, 1)
	require.NoError(t, err)

	err = s.Rmdir(ctx, "/d")
	assert.True(t, errs.Is(err, errs.NotEmpty))

	require.NoError(t, s.Unlink(ctx, "/d/x"))
	require.NoError(t, s.Rmdir(ctx, "/d"))
}

// Symlink read: symlink("/target", "/lnk") then readlink returns
// "/target"; getattr reports S_IFLNK and size 7.
func TestSymlinkRead(t *testing.T) {
	s, _ := newTestSession()
	ctx := t.Context()

	require.NoError(t, s.Symlink(ctx, "/target", "/lnk", 1, 1))

	target, err := s.Readlink(ctx, "/lnk", 64)
	require.NoError(t, err)
	assert.Equal(t, "/target", target)

	attr, err := s.Getattr(ctx, "/lnk")
	require.NoError(t, err)
	assert.True(t, posixmode.IsSymlink(attr.Mode))
	assert.EqualValues(t, len("/target"), attr.Size)
}

// Statfs arithmetic: backend reports {file_size:1000, storage_size:400,
// objects:50} -> blocks 1000, bavail 600, files ~83, ffree 33.
func TestStatfsArithmetic(t *testing.T) {
	s, fb := newTestSession()
	fb.stats.FileSize = 1000
	fb.stats.StorageSize = 400
	fb.stats.Objects = 50

	res, err := s.Statfs(t.Context())
	require.NoError(t, err)

	assert.EqualValues(t, 1000, res.Blocks)
	assert.EqualValues(t, 600, res.Bavail)
	assert.EqualValues(t, 83, res.Files)
	assert.EqualValues(t, 33, res.Ffree)
}

func TestChmodIdempotent(t *testing.T) {
	s, _ := newTestSession()
	ctx := t.Context()

	require.NoError(t, s.Mkdir(ctx, "/d", 0o755, 1, 1))
	require.NoError(t, s.Chmod(ctx, "/d", 0o700))
	attr1, err := s.Getattr(ctx, "/d")
	require.NoError(t, err)

	require.NoError(t, s.Chmod(ctx, "/d", 0o700))
	attr2, err := s.Getattr(ctx, "/d")
	require.NoError(t, err)

	assert.Equal(t, attr1.Mode, attr2.Mode)
	assert.True(t, posixmode.IsDir(attr2.Mode))
}

func TestOpendirNotFound(t *testing.T) {
	s, _ := newTestSession()
	_, err := s.Opendir(t.Context(), "/missing")
	assert.True(t, errs.Is(err, errs.NotFound))
}

func TestFsyncdirUnsupported(t *testing.T) {
	s, _ := newTestSession()
	err := s.Fsyncdir(t.Context(), "/", 0)
	assert.True(t, errs.Is(err, errs.Unsupported))
}

func TestFgetattrFollowsHandle(t *testing.T) {
	s, _ := newTestSession()
	ctx := t.Context()

	h, err := s.Create(ctx, "/f", 0o644, unix.O_WRONLY|unix.O_CREAT, 1, 1)
	require.NoError(t, err)

	attr, err := s.Fgetattr(ctx, h)
	require.NoError(t, err)
	assert.EqualValues(t, 0o644, attr.Mode&0o777)

	_, err = s.Fgetattr(ctx, h+1)
	assert.True(t, errs.Is(err, errs.BadHandle))
}

func TestChownUpdatesOwner(t *testing.T) {
	s, _ := newTestSession()
	ctx := t.Context()

	require.NoError(t, s.Mkdir(ctx, "/d", 0o755, 1, 1))
	require.NoError(t, s.Chown(ctx, "/d", 500, 501))

	attr, err := s.Getattr(ctx, "/d")
	require.NoError(t, err)
	assert.EqualValues(t, 500, attr.UID)
	assert.EqualValues(t, 501, attr.GID)
}

func TestUtimensMissingPath(t *testing.T) {
	s, _ := newTestSession()
	err := s.Utimens(t.Context(), "/missing", time.Now())
	assert.True(t, errs.Is(err, errs.NotFound))
}

func TestUtimensUpdatesMtime(t *testing.T) {
	s, _ := newTestSession()
	ctx := t.Context()

	require.NoError(t, s.Mkdir(ctx, "/d", 0o755, 1, 1))

	when := time.Date(2030, 3, 4, 5, 6, 7, 0, time.UTC)
	require.NoError(t, s.Utimens(ctx, "/d", when))

	attr, err := s.Getattr(ctx, "/d")
	require.NoError(t, err)
	assert.True(t, attr.Mtime.Equal(when))
}

func TestReadBadHandle(t *testing.T) {
	s, _ := newTestSession()
	_, err := s.Read(t.Context(), "/f", 999, make([]byte, 4), 0)
	assert.True(t, errs.Is(err, errs.BadHandle))
}

// Open's O_CREAT fall-through to create must stage the calling uid/gid, not
// a hardcoded zero.
func TestOpenCreateUsesCallerOwner(t *testing.T) {
	s, _ := newTestSession()
	ctx := t.Context()

	_, err := s.Open(ctx, "/f", unix.O_WRONLY|unix.O_CREAT, 42, 43)
	require.NoError(t, err)

	attr, err := s.Getattr(ctx, "/f")
	require.NoError(t, err)
	assert.EqualValues(t, 42, attr.UID)
	assert.EqualValues(t, 43, attr.GID)
}

// A deterministic clock lets last_updated be asserted exactly rather than
// "close to wall time", the way TestCreateStampsLastUpdated and
// TestFlushStampsLastUpdated do below.
func TestCreateStampsLastUpdated(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clk := clock.NewSimulatedClock(start)
	s, _ := newTestSessionWithClock(clk)
	ctx := t.Context()

	_, err := s.Create(ctx, "/f", 0o644, unix.O_WRONLY|unix.O_CREAT, 1, 1)
	require.NoError(t, err)

	attr, err := s.Getattr(ctx, "/f")
	require.NoError(t, err)
	assert.True(t, attr.Mtime.Equal(start))
}

func TestFlushStampsLastUpdated(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clk := clock.NewSimulatedClock(start)
	s, _ := newTestSessionWithClock(clk)
	ctx := t.Context()

	h, err := s.Create(ctx, "/f", 0o644, unix.O_WRONLY|unix.O_CREAT, 1, 1)
	require.NoError(t, err)

	_, err = s.Write(ctx, "/f", h, []byte("data"), 0)
	require.NoError(t, err)

	clk.AdvanceTime(5 * time.Minute)
	require.NoError(t, s.Flush(ctx, "/f", h))
	require.NoError(t, s.Release(ctx, "/f", h))

	attr, err := s.Getattr(ctx, "/f")
	require.NoError(t, err)
	assert.True(t, attr.Mtime.Equal(start.Add(5*time.Minute)))
}
