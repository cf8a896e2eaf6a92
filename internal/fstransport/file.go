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

package fstransport

import (
	"context"

	"github.com/aksaharan/mgridfs/internal/errs"
	"github.com/jacobsa/fuse/fuseops"
	"golang.org/x/sys/unix"
)

func (fs *FileSystem) OpenFile(ctx context.Context, op *fuseops.OpenFileOp) error {
	path, ok := fs.pathForInode(op.Inode)
	if !ok {
		return errs.Errno(errs.New(errs.NotFound, "fstransport: open: unknown inode"))
	}

	flags := uint32(unix.O_RDONLY)
	if op.OpenFlags.IsWriteOnly() {
		flags = unix.O_WRONLY
	} else if op.OpenFlags.IsReadWrite() {
		flags = unix.O_RDWR
	}

	handle, err := fs.sess.Open(ctx, path, flags, fs.uid, fs.gid)
	if err != nil {
		return errs.Errno(err)
	}
	op.Handle = fuseops.HandleID(handle)
	op.KeepPageCache = false
	return nil
}

func (fs *FileSystem) ReadFile(ctx context.Context, op *fuseops.ReadFileOp) error {
	path, ok := fs.pathForInode(op.Inode)
	if !ok {
		return errs.Errno(errs.New(errs.NotFound, "fstransport: read: unknown inode"))
	}

	n, err := fs.sess.Read(ctx, path, uint64(op.Handle), op.Dst, op.Offset)
	op.BytesRead = n
	if err != nil {
		return errs.Errno(err)
	}
	return nil
}

func (fs *FileSystem) WriteFile(ctx context.Context, op *fuseops.WriteFileOp) error {
	path, ok := fs.pathForInode(op.Inode)
	if !ok {
		return errs.Errno(errs.New(errs.NotFound, "fstransport: write: unknown inode"))
	}

	_, err := fs.sess.Write(ctx, path, uint64(op.Handle), op.Data, op.Offset)
	return errs.Errno(err)
}

func (fs *FileSystem) FlushFile(ctx context.Context, op *fuseops.FlushFileOp) error {
	path, ok := fs.pathForInode(op.Inode)
	if !ok {
		return errs.Errno(errs.New(errs.NotFound, "fstransport: flush: unknown inode"))
	}
	return errs.Errno(fs.sess.Flush(ctx, path, uint64(op.Handle)))
}

func (fs *FileSystem) ReleaseFileHandle(ctx context.Context, op *fuseops.ReleaseFileHandleOp) error {
	path, ok := fs.sess.PathForHandle(uint64(op.Handle))
	if !ok {
		return nil
	}
	return errs.Errno(fs.sess.Release(ctx, path, uint64(op.Handle)))
}
