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
	"os"

	"github.com/aksaharan/mgridfs/internal/errs"
	"github.com/aksaharan/mgridfs/internal/pathutil"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"
)

func (fs *FileSystem) MkDir(ctx context.Context, op *fuseops.MkDirOp) error {
	parent, ok := fs.pathForInode(op.Parent)
	if !ok {
		return errs.Errno(errs.New(errs.NotFound, "fstransport: mkdir: unknown parent inode"))
	}
	path := childPath(parent, op.Name)

	if err := fs.sess.Mkdir(ctx, path, uint32(op.Mode.Perm()), fs.uid, fs.gid); err != nil {
		return errs.Errno(err)
	}

	attr, err := fs.sess.Getattr(ctx, path)
	if err != nil {
		return errs.Errno(err)
	}
	id := fs.mint(path)
	fs.incLookup(id, 1)
	op.Entry.Child = id
	op.Entry.Attributes = fs.attrFrom(attr)
	return nil
}

func (fs *FileSystem) CreateFile(ctx context.Context, op *fuseops.CreateFileOp) error {
	parent, ok := fs.pathForInode(op.Parent)
	if !ok {
		return errs.Errno(errs.New(errs.NotFound, "fstransport: create: unknown parent inode"))
	}
	path := childPath(parent, op.Name)

	handle, err := fs.sess.Create(ctx, path, uint32(op.Mode.Perm()), uint32(os.O_WRONLY|os.O_CREATE), fs.uid, fs.gid)
	if err != nil {
		return errs.Errno(err)
	}

	attr, err := fs.sess.Getattr(ctx, path)
	if err != nil {
		// Create already staged a handle and a LocalFile; release both rather
		// than leaking them since the kernel will never see this handle.
		_ = fs.sess.Release(ctx, path, handle)
		return errs.Errno(err)
	}
	id := fs.mint(path)
	fs.incLookup(id, 1)
	op.Entry.Child = id
	op.Entry.Attributes = fs.attrFrom(attr)
	op.Handle = fuseops.HandleID(handle)
	return nil
}

func (fs *FileSystem) CreateSymlink(ctx context.Context, op *fuseops.CreateSymlinkOp) error {
	parent, ok := fs.pathForInode(op.Parent)
	if !ok {
		return errs.Errno(errs.New(errs.NotFound, "fstransport: symlink: unknown parent inode"))
	}
	path := childPath(parent, op.Name)

	if err := fs.sess.Symlink(ctx, op.Target, path, fs.uid, fs.gid); err != nil {
		return errs.Errno(err)
	}

	attr, err := fs.sess.Getattr(ctx, path)
	if err != nil {
		return errs.Errno(err)
	}
	id := fs.mint(path)
	fs.incLookup(id, 1)
	op.Entry.Child = id
	op.Entry.Attributes = fs.attrFrom(attr)
	return nil
}

func (fs *FileSystem) RmDir(ctx context.Context, op *fuseops.RmDirOp) error {
	parent, ok := fs.pathForInode(op.Parent)
	if !ok {
		return errs.Errno(errs.New(errs.NotFound, "fstransport: rmdir: unknown parent inode"))
	}
	return errs.Errno(fs.sess.Rmdir(ctx, childPath(parent, op.Name)))
}

func (fs *FileSystem) Unlink(ctx context.Context, op *fuseops.UnlinkOp) error {
	parent, ok := fs.pathForInode(op.Parent)
	if !ok {
		return errs.Errno(errs.New(errs.NotFound, "fstransport: unlink: unknown parent inode"))
	}
	return errs.Errno(fs.sess.Unlink(ctx, childPath(parent, op.Name)))
}

func (fs *FileSystem) ReadSymlink(ctx context.Context, op *fuseops.ReadSymlinkOp) error {
	path, ok := fs.pathForInode(op.Inode)
	if !ok {
		return errs.Errno(errs.New(errs.NotFound, "fstransport: readlink: unknown inode"))
	}
	target, err := fs.sess.Readlink(ctx, path, 4096)
	if err != nil {
		return errs.Errno(err)
	}
	op.Target = target
	return nil
}

func (fs *FileSystem) OpenDir(ctx context.Context, op *fuseops.OpenDirOp) error {
	path, ok := fs.pathForInode(op.Inode)
	if !ok {
		return errs.Errno(errs.New(errs.NotFound, "fstransport: opendir: unknown inode"))
	}

	handle, err := fs.sess.Opendir(ctx, path)
	if err != nil {
		return errs.Errno(err)
	}

	// A zero dirent inode can be skipped by readdir(3), so every entry gets
	// a real one minted up front.
	var entries []fuseutil.Dirent
	offset := fuseops.DirOffset(1)
	err = fs.sess.Readdir(ctx, path, handle, func(name string) {
		var ino fuseops.InodeID
		switch name {
		case ".":
			ino = op.Inode
		case "..":
			ino = fs.mint(pathutil.Dirname(path))
		default:
			ino = fs.mint(childPath(path, name))
		}
		entries = append(entries, fuseutil.Dirent{
			Offset: offset,
			Inode:  ino,
			Name:   name,
			Type:   fuseutil.DT_Unknown,
		})
		offset++
	})
	if err != nil {
		_ = fs.sess.Releasedir(ctx, path, handle)
		return errs.Errno(err)
	}

	fs.mu.Lock()
	fs.dirEntries[fuseops.HandleID(handle)] = entries
	fs.mu.Unlock()

	op.Handle = fuseops.HandleID(handle)
	return nil
}

func (fs *FileSystem) ReadDir(ctx context.Context, op *fuseops.ReadDirOp) error {
	fs.mu.Lock()
	entries := fs.dirEntries[op.Handle]
	fs.mu.Unlock()

	index := int(op.Offset)
	written := 0
	for index < len(entries) {
		n := fuseutil.WriteDirent(op.Dst[written:], entries[index])
		if n == 0 {
			break
		}
		written += n
		index++
	}
	op.BytesRead = written
	return nil
}

func (fs *FileSystem) ReleaseDirHandle(ctx context.Context, op *fuseops.ReleaseDirHandleOp) error {
	fs.mu.Lock()
	delete(fs.dirEntries, op.Handle)
	fs.mu.Unlock()

	path, ok := fs.sess.PathForHandle(uint64(op.Handle))
	if !ok {
		return nil
	}
	return errs.Errno(fs.sess.Releasedir(ctx, path, uint64(op.Handle)))
}
