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
	"context"

	"github.com/aksaharan/mgridfs/internal/bucket"
	"github.com/aksaharan/mgridfs/internal/errs"
	"github.com/aksaharan/mgridfs/internal/metacodec"
	"github.com/aksaharan/mgridfs/internal/pathutil"
	"github.com/aksaharan/mgridfs/internal/posixmode"
)

// Mkdir creates an empty BucketFile under path with the directory type bit
// set in mode, owned by uid/gid.
func (s *Session) Mkdir(ctx context.Context, path string, mode, uid, gid uint32) error {
	existing, err := s.bucket.FindByFilename(ctx, path)
	if err != nil {
		return err
	}
	if existing != nil {
		return errs.New(errs.Permission, "session: mkdir: already exists "+path)
	}

	meta := metacodec.Metadata{
		Type:        metacodec.TypeDirectory,
		Basename:    pathutil.Basename(path),
		Directory:   pathutil.Dirname(path),
		LastUpdated: s.clock.Now(),
		UID:         uid,
		GID:         gid,
		Mode:        mode | metacodec.ModeForType(metacodec.TypeDirectory),
	}

	if _, err := s.bucket.StoreBlob(ctx, path, nil, meta); err != nil {
		return errs.Wrap(errs.Permission, "session: mkdir store", err)
	}
	return nil
}

// Rmdir removes the empty directory at path. Fails with errs.NotEmpty if
// any entry still names path as its parent.
func (s *Session) Rmdir(ctx context.Context, path string) error {
	empty := true
	err := s.bucket.ListByDirectory(ctx, path, func(f *bucket.File) {
		empty = false
	})
	if err != nil {
		return err
	}
	if !empty {
		return errs.New(errs.NotEmpty, "session: rmdir: not empty "+path)
	}

	return s.bucket.RemoveByFilename(ctx, path)
}

// Opendir verifies path names a live directory and allocates a handle for
// it.
func (s *Session) Opendir(ctx context.Context, path string) (uint64, error) {
	f, err := s.bucket.FindByFilename(ctx, path)
	if err != nil {
		return 0, err
	}
	if f == nil {
		return 0, errs.New(errs.NotFound, "session: opendir: no such path "+path)
	}
	if !posixmode.IsDir(f.Metadata.Mode) {
		return 0, errs.New(errs.NotADirectory, "session: opendir: not a directory "+path)
	}

	return s.handles.Assign(path)
}

// DirFiller receives each directory entry's basename in turn, in the order
// readdir discovers it.
type DirFiller func(name string)

// Readdir validates handle, always emits "." and ".." first, then streams
// list_by_directory(path), skipping entries whose metadata.basename is
// missing or empty (unless path is the root, whose own children are named
// by absolute path). Per-item decode errors are logged and skipped.
func (s *Session) Readdir(ctx context.Context, path string, handle uint64, fill DirFiller) error {
	if _, ok := s.handles.LookupPath(handle); !ok {
		return errs.New(errs.BadHandle, "session: readdir: bad handle")
	}

	fill(".")
	fill("..")

	isRoot := path == "/"
	return s.bucket.ListByDirectory(ctx, path, func(f *bucket.File) {
		if f.MetadataDecodeErr() != nil {
			s.logger.Warn("session: readdir: per-item decode failed", "filename", f.Filename, "error", f.MetadataDecodeErr())
			return
		}
		name := f.Metadata.Basename
		if name == "" && !isRoot {
			s.logger.Warn("session: readdir: entry missing basename", "filename", f.Filename)
			return
		}
		if name == "" && isRoot {
			name = f.Filename
		}
		fill(name)
	})
}

// Releasedir validates handle and frees it.
func (s *Session) Releasedir(ctx context.Context, path string, handle uint64) error {
	if _, ok := s.handles.LookupPath(handle); !ok {
		return errs.New(errs.BadHandle, "session: releasedir: bad handle")
	}
	s.handles.Release(handle)
	return nil
}

// Fsyncdir is deliberately unimplemented: directory metadata has no
// durability story beyond what the bucket already provides. Callers see
// ENOTSUP through the single errs.Unsupported mapping entry.
func (s *Session) Fsyncdir(ctx context.Context, path string, handle uint64) error {
	return errs.New(errs.Unsupported, "session: fsyncdir: unsupported")
}
