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

// Package session implements the request dispatch and session layer: the
// operation handlers (DirectoryOps, FileOps, SessionOps) that a transport
// adapter calls into once it has decoded a kernel upcall into a path and
// arguments. Every mutable piece of process-wide state a mount needs —
// the handle table, the staging registry, the bucket connection — is owned
// by one Session value rather than kept in package-level variables, so a
// second mount in the same process is just a second Session.
//
// Lock ordering across the composed components (handle table, then
// registry, then an individual LocalFile) mirrors the directory-handle <
// file < filesystem discipline of the transport this was adapted from:
// callers here never hold the handle table's lock while calling into the
// registry or a LocalFile.
package session

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/aksaharan/mgridfs/clock"
	"github.com/aksaharan/mgridfs/internal/bucket"
	"github.com/aksaharan/mgridfs/internal/errs"
	"github.com/aksaharan/mgridfs/internal/handletable"
	"github.com/aksaharan/mgridfs/internal/localfs"
	"github.com/aksaharan/mgridfs/internal/metacodec"
)

// Config is the subset of mount-time options the session layer needs.
// It is filled from the external options record (cfg.Config) rather than
// read directly, so session never imports the CLI/config package.
type Config struct {
	ChunkSizeBytes    int64
	MaxMemoryFileSize int64
	DynamicChunkSize  bool
}

// Session is the per-mount dispatch context: options snapshot, handle
// table, staging registry, and bucket façade. A single instance exists per
// mount and is torn down by Destroy.
type Session struct {
	cfg     Config
	bucket  bucket.Facade
	handles *handletable.Table
	staging *localfs.Registry
	clock   clock.Clock
	logger  *slog.Logger
}

// New builds a Session bound to b. The handle table starts empty with the
// default reserved low band.
func New(cfg Config, b bucket.Facade, clk clock.Clock, logger *slog.Logger) *Session {
	return &Session{
		cfg:     cfg,
		bucket:  b,
		handles: handletable.New(handletable.DefaultMinHandle),
		staging: localfs.New(cfg.ChunkSizeBytes, cfg.MaxMemoryFileSize, cfg.DynamicChunkSize, b, clk, logger),
		clock:   clk,
		logger:  logger,
	}
}

// PathForHandle returns the path a live handle was assigned for, so a
// transport adapter that only carries a handle ID (as jacobsa/fuse's release
// ops do) can still route the call correctly.
func (s *Session) PathForHandle(handle uint64) (string, bool) {
	return s.handles.LookupPath(handle)
}

// Init performs init's documented no-op: connection pooling lives in
// mongoconn, external to the session. Present so the transport adapter has
// a single symmetric call to make at mount time, matching destroy.
func (s *Session) Init(ctx context.Context) error {
	return nil
}

// Destroy drops every staged file without flushing; the transport adapter
// is responsible for calling this only after the kernel has stopped
// issuing new requests.
func (s *Session) Destroy(ctx context.Context) {
	s.staging.ReleaseAll(ctx, false)
}

// StatfsResult mirrors struct statvfs's fields that statfs populates.
type StatfsResult struct {
	Bsize   uint64
	Frsize  uint64
	Blocks  uint64
	Bfree   uint64
	Bavail  uint64
	Files   uint64
	Ffree   uint64
	Favail  uint64
	Namemax uint64
}

// Statfs runs the backend's db_stats and fills a StatfsResult per the
// scaling rule in the session design: when blocks and bavail are both
// positive, extrapolate a total object count from the free-space ratio.
func (s *Session) Statfs(ctx context.Context) (StatfsResult, error) {
	stats, err := s.bucket.DBStats(ctx)
	if err != nil {
		return StatfsResult{}, err
	}

	blocks := uint64(stats.FileSize)
	bfree := uint64(stats.FileSize - stats.StorageSize)
	if stats.StorageSize > stats.FileSize {
		bfree = 0
	}
	files := uint64(stats.Objects)
	ffree := uint64(0)

	if blocks > 0 && bfree > 0 {
		total := blocks * uint64(stats.Objects) / bfree
		files = total
		if total > uint64(stats.Objects) {
			ffree = total - uint64(stats.Objects)
		}
	}

	return StatfsResult{
		Bsize:   1,
		Frsize:  1,
		Blocks:  blocks,
		Bfree:   bfree,
		Bavail:  bfree,
		Files:   files,
		Ffree:   ffree,
		Favail:  ffree,
		Namemax: 1000,
	}, nil
}

// LoadOrCreateRoot implements mount bootstrap: find the root BucketFile
// named "/"; if absent, create it with mode 0o700 owned by the effective
// uid/gid and re-verify. A failure here aborts the mount.
func (s *Session) LoadOrCreateRoot(ctx context.Context) error {
	root, err := s.bucket.FindByFilename(ctx, "/")
	if err != nil {
		return err
	}
	if root != nil {
		return nil
	}

	uid, gid := uint32(os.Getuid()), uint32(os.Getgid())
	meta := metacodec.Metadata{
		Type:        metacodec.TypeDirectory,
		Basename:    "",
		Directory:   "",
		LastUpdated: s.clock.Now(),
		UID:         uid,
		GID:         gid,
		Mode:        metacodec.ModeForType(metacodec.TypeDirectory) | 0o700,
	}

	if _, storeErr := s.bucket.StoreBlob(ctx, "/", nil, meta); storeErr != nil {
		// A concurrent mounter may have raced us to create "/"; re-query once
		// before treating the store failure as fatal, matching the original
		// bootstrap's retry-before-abort shape.
		root, err = s.bucket.FindByFilename(ctx, "/")
		if err != nil {
			return err
		}
		if root == nil {
			return storeErr
		}
		return nil
	}

	root, err = s.bucket.FindByFilename(ctx, "/")
	if err != nil {
		return err
	}
	if root == nil {
		return errs.New(errs.BackendIO, "session: root still missing after create")
	}
	return nil
}

// Attr mirrors the fields getattr/fgetattr fill in a struct stat.
type Attr struct {
	UID    uint32
	GID    uint32
	Mode   uint32
	Ctime  time.Time
	Mtime  time.Time
	Nlink  uint32
	Size   int64
	Blocks int64
}
