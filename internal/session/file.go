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
	"time"

	"github.com/aksaharan/mgridfs/internal/bucket"
	"github.com/aksaharan/mgridfs/internal/errs"
	"github.com/aksaharan/mgridfs/internal/metacodec"
	"github.com/aksaharan/mgridfs/internal/pathutil"
	"github.com/aksaharan/mgridfs/internal/posixmode"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sys/unix"
)

func wantsWrite(flags uint32) bool {
	switch flags & unix.O_ACCMODE {
	case unix.O_WRONLY, unix.O_RDWR:
		return true
	default:
		return false
	}
}

func wantsCreate(flags uint32) bool { return flags&unix.O_CREAT != 0 }
func wantsTrunc(flags uint32) bool  { return flags&unix.O_TRUNC != 0 }

// Getattr finds the BucketFile at path and fills an Attr per the
// getattr contract: missing fields default, an unknown type still yields a
// best-effort stat (logged, not failed).
func (s *Session) Getattr(ctx context.Context, path string) (Attr, error) {
	f, err := s.bucket.FindByFilename(ctx, path)
	if err != nil {
		return Attr{}, err
	}
	if f == nil {
		return Attr{}, errs.New(errs.NotFound, "session: getattr: no such path "+path)
	}
	if f.MetadataDecodeErr() != nil {
		s.logger.Warn("session: getattr: metadata decode failed", "path", path, "error", f.MetadataDecodeErr())
	}

	return s.attrFromFile(f), nil
}

func (s *Session) attrFromFile(f *bucket.File) Attr {
	m := f.Metadata

	a := Attr{
		UID:   m.UID,
		GID:   m.GID,
		Mode:  m.Mode,
		Ctime: f.UploadTime,
		Mtime: m.LastUpdated,
	}
	if a.Mtime.IsZero() {
		a.Mtime = a.Ctime
	}

	switch {
	case posixmode.IsDir(m.Mode):
		a.Nlink = 2
		a.Size = approxMetadataRecordSize(m)
	case posixmode.IsSymlink(m.Mode):
		a.Nlink = 1
		if m.Target == "" {
			s.logger.Warn("session: getattr: symlink missing target", "path", f.Filename)
		}
		a.Size = int64(len(m.Target))
	default:
		a.Nlink = 1
		a.Size = f.ContentLength
	}

	a.Blocks = pathutil.Blocks512(a.Size)
	return a
}

// approxMetadataRecordSize stands in for "size of the stored metadata
// record" that a directory's getattr reports, since this implementation
// doesn't keep a literal serialized byte count around.
func approxMetadataRecordSize(m metacodec.Metadata) int64 {
	return int64(len(m.Basename) + len(m.Directory) + len(m.Target) + 64)
}

// Fgetattr validates handle and delegates to Getattr on its recorded path.
func (s *Session) Fgetattr(ctx context.Context, handle uint64) (Attr, error) {
	path, ok := s.handles.LookupPath(handle)
	if !ok {
		return Attr{}, errs.New(errs.BadHandle, "session: fgetattr: bad handle")
	}
	return s.Getattr(ctx, path)
}

// Readlink returns meta.target for a symlink. len must be > 0.
func (s *Session) Readlink(ctx context.Context, path string, maxLen int) (string, error) {
	if maxLen <= 0 {
		return "", errs.New(errs.InvalidArg, "session: readlink: zero-length buffer")
	}

	f, err := s.bucket.FindByFilename(ctx, path)
	if err != nil {
		return "", err
	}
	if f == nil {
		return "", errs.New(errs.NotFound, "session: readlink: no such path "+path)
	}

	target := f.Metadata.Target
	if target == "" {
		s.logger.Warn("session: readlink: missing target", "path", path)
		return "", nil
	}

	if len(target) >= maxLen {
		target = target[:maxLen-1]
	}
	return target, nil
}

// Symlink creates an empty BucketFile at linkPath pointing at target.
func (s *Session) Symlink(ctx context.Context, target, linkPath string, uid, gid uint32) error {
	meta := metacodec.Metadata{
		Type:        metacodec.TypeSymlink,
		Basename:    pathutil.Basename(linkPath),
		Directory:   pathutil.Dirname(linkPath),
		LastUpdated: s.clock.Now(),
		UID:         uid,
		GID:         gid,
		Mode:        metacodec.ModeForType(metacodec.TypeSymlink) | 0o777,
		Target:      target,
	}

	if _, err := s.bucket.StoreBlob(ctx, linkPath, nil, meta); err != nil {
		return err
	}
	return nil
}

// Unlink removes the BucketFile at path.
func (s *Session) Unlink(ctx context.Context, path string) error {
	return s.bucket.RemoveByFilename(ctx, path)
}

// Chmod updates only the mode field of path's metadata.
func (s *Session) Chmod(ctx context.Context, path string, mode uint32) error {
	f, err := s.bucket.FindByFilename(ctx, path)
	if err != nil {
		return err
	}
	if f == nil {
		return errs.New(errs.NotFound, "session: chmod: no such path "+path)
	}
	typeBits := f.Metadata.Mode & posixmode.IFMT
	return s.bucket.UpdateMetadata(ctx, path, map[string]interface{}{"mode": (mode &^ posixmode.IFMT) | typeBits})
}

// Chown updates only uid/gid of path's metadata.
func (s *Session) Chown(ctx context.Context, path string, uid, gid uint32) error {
	return s.bucket.UpdateMetadata(ctx, path, map[string]interface{}{"uid": uid, "gid": gid})
}

// Utimens updates only last_updated. Returns errs.NotFound if no document
// matched, success otherwise.
func (s *Session) Utimens(ctx context.Context, path string, mtime time.Time) error {
	return s.bucket.UpdateMetadata(ctx, path, map[string]interface{}{"lastUpdated": primitive.NewDateTimeFromTime(mtime)})
}

// Truncate requires an existing staged LocalFile for path.
func (s *Session) Truncate(ctx context.Context, path string, newLen int64) error {
	f, ok := s.staging.Find(path)
	if !ok {
		return errs.New(errs.BadHandle, "session: truncate: not staged "+path)
	}
	return f.SetSize(newLen)
}

// Ftruncate validates handle, then truncates on its recorded path.
func (s *Session) Ftruncate(ctx context.Context, handle uint64, newLen int64) error {
	path, ok := s.handles.LookupPath(handle)
	if !ok {
		return errs.New(errs.BadHandle, "session: ftruncate: bad handle")
	}
	return s.Truncate(ctx, path, newLen)
}

// Open implements the seven-step open contract: reuse an already-staged
// LocalFile verbatim; otherwise look up the backing entry and stage only
// when the open requests write access; fall through to Create (owned by
// uid/gid, the caller that issued the open) when the entry is absent and
// O_CREAT was given.
func (s *Session) Open(ctx context.Context, path string, flags uint32, uid, gid uint32) (uint64, error) {
	handle, err := s.handles.Assign(path)
	if err != nil {
		return 0, err
	}

	if _, ok := s.staging.Find(path); ok {
		return handle, nil
	}

	f, err := s.bucket.FindByFilename(ctx, path)
	if err != nil {
		s.handles.Release(handle)
		return 0, err
	}

	if f != nil && !wantsWrite(flags) {
		return handle, nil
	}

	if f != nil && wantsWrite(flags) {
		lf := s.staging.Create(path)
		if err := lf.OpenRemote(ctx, wantsTrunc(flags)); err != nil {
			// A half-populated staging buffer must not linger: a later open
			// would find it and happily serve partial content.
			s.staging.Discard(path)
			s.handles.Release(handle)
			return 0, err
		}
		return handle, nil
	}

	if f == nil && wantsCreate(flags) {
		s.handles.Release(handle)
		return s.createLocked(ctx, path, 0o644, flags, uid, gid)
	}

	s.handles.Release(handle)
	return 0, errs.New(errs.NotFound, "session: open: no such path "+path)
}

// Create stores an empty BucketFile at path, then allocates a handle and an
// empty LocalFile.
func (s *Session) Create(ctx context.Context, path string, mode uint32, flags, uid, gid uint32) (uint64, error) {
	return s.createLocked(ctx, path, mode, flags, uid, gid)
}

func (s *Session) createLocked(ctx context.Context, path string, mode, flags, uid, gid uint32) (uint64, error) {
	mode |= metacodec.ModeForType(metacodec.TypeFile)

	meta := metacodec.Metadata{
		Type:        metacodec.TypeFile,
		Basename:    pathutil.Basename(path),
		Directory:   pathutil.Dirname(path),
		LastUpdated: s.clock.Now(),
		UID:         uid,
		GID:         gid,
		Mode:        mode,
	}

	if _, err := s.bucket.StoreBlob(ctx, path, nil, meta); err != nil {
		return 0, errs.Wrap(errs.BackendIO, "session: create: store", err)
	}

	handle, err := s.handles.Assign(path)
	if err != nil {
		_ = s.bucket.RemoveByFilename(ctx, path)
		return 0, err
	}

	s.staging.Create(path)
	return handle, nil
}

// Read validates handle; delegates to the LocalFile if one is staged,
// otherwise streams chunks directly from the bucket (read-only opens).
func (s *Session) Read(ctx context.Context, path string, handle uint64, buf []byte, offset int64) (int, error) {
	if _, ok := s.handles.LookupPath(handle); !ok {
		return 0, errs.New(errs.BadHandle, "session: read: bad handle")
	}

	if lf, ok := s.staging.Find(path); ok {
		return lf.Read(buf, offset)
	}

	f, err := s.bucket.FindByFilename(ctx, path)
	if err != nil {
		return 0, err
	}
	if f == nil {
		return 0, errs.New(errs.NotFound, "session: read: no such path "+path)
	}

	return s.readFromChunks(ctx, f, buf, offset)
}

func (s *Session) readFromChunks(ctx context.Context, f *bucket.File, buf []byte, offset int64) (int, error) {
	if offset >= f.ContentLength {
		return 0, nil
	}
	want := int64(len(buf))
	if offset+want > f.ContentLength {
		want = f.ContentLength - offset
	}

	var copied int64
	idx := offset / int64(f.ChunkSize)
	within := offset % int64(f.ChunkSize)
	for copied < want {
		chunk, err := s.bucket.ReadChunk(ctx, f, idx)
		if err != nil {
			return int(copied), err
		}
		if within >= int64(len(chunk)) {
			break
		}
		n := int64(copy(buf[copied:want], chunk[within:]))
		copied += n
		within = 0
		idx++
	}
	return int(copied), nil
}

// Write validates handle and requires a staged LocalFile.
func (s *Session) Write(ctx context.Context, path string, handle uint64, data []byte, offset int64) (int, error) {
	if _, ok := s.handles.LookupPath(handle); !ok {
		return 0, errs.New(errs.BadHandle, "session: write: bad handle")
	}
	lf, ok := s.staging.Find(path)
	if !ok {
		return 0, errs.New(errs.BadHandle, "session: write: not staged "+path)
	}
	return lf.Write(data, offset)
}

// Flush validates handle; read-only opens report success without action.
func (s *Session) Flush(ctx context.Context, path string, handle uint64) error {
	if _, ok := s.handles.LookupPath(handle); !ok {
		return errs.New(errs.BadHandle, "session: flush: bad handle")
	}
	lf, ok := s.staging.Find(path)
	if !ok {
		return nil
	}
	return lf.Flush(ctx)
}

// Release flushes (best-effort) and releases the staged LocalFile, then
// frees the handle. Always succeeds, per the advisory release contract.
func (s *Session) Release(ctx context.Context, path string, handle uint64) error {
	s.staging.Release(ctx, path)
	s.handles.Release(handle)
	return nil
}
