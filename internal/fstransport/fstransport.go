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

// Package fstransport adapts jacobsa/fuse's inode-keyed fuseops surface to
// the path-keyed internal/session dispatch layer. The session package knows
// nothing about inode numbers; this package is the only place that mints
// and tracks them.
//
// LOCK ORDERING
//
// This package's own mutex (mu) guards only the inode<->path tables. It is
// never held while calling into Session, so a slow backend call can never
// stall unrelated inode bookkeeping.
package fstransport

import (
	"context"
	"os"
	"sync"

	"github.com/aksaharan/mgridfs/internal/errs"
	"github.com/aksaharan/mgridfs/internal/posixmode"
	"github.com/aksaharan/mgridfs/internal/session"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"
)

// FileSystem implements fuseutil.FileSystem by dispatching every op to a
// Session after translating between inode numbers and paths.
type FileSystem struct {
	fuseutil.NotImplementedFileSystem

	sess     *session.Session
	uid, gid uint32

	mu          sync.Mutex
	nextInode   fuseops.InodeID
	pathOf      map[fuseops.InodeID]string
	inodeOf     map[string]fuseops.InodeID
	lookupCount map[fuseops.InodeID]uint64
	dirEntries  map[fuseops.HandleID][]fuseutil.Dirent
}

// New builds a FileSystem rooted at "/", with the root inode pre-minted and
// held (lookup count 1) the way the kernel expects the root never to be
// forgotten away. uid/gid are stamped onto every inode this transport
// creates; the mount serves a single local owner.
func New(sess *session.Session, uid, gid uint32) *FileSystem {
	fs := &FileSystem{
		sess:        sess,
		uid:         uid,
		gid:         gid,
		nextInode:   fuseops.RootInodeID + 1,
		pathOf:      map[fuseops.InodeID]string{fuseops.RootInodeID: "/"},
		inodeOf:     map[string]fuseops.InodeID{"/": fuseops.RootInodeID},
		lookupCount: map[fuseops.InodeID]uint64{fuseops.RootInodeID: 1},
		dirEntries:  map[fuseops.HandleID][]fuseutil.Dirent{},
	}
	return fs
}

// childPath joins a parent's path with a child name the way the session
// layer's absolute, slash-separated paths are built.
func childPath(parent, name string) string {
	if parent == "/" {
		return "/" + name
	}
	return parent + "/" + name
}

// mint returns the inode ID for path, creating one and setting its lookup
// count to zero if this is the first time it has been seen.
func (fs *FileSystem) mint(path string) fuseops.InodeID {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if id, ok := fs.inodeOf[path]; ok {
		return id
	}
	id := fs.nextInode
	fs.nextInode++
	fs.pathOf[id] = path
	fs.inodeOf[path] = id
	fs.lookupCount[id] = 0
	return id
}

func (fs *FileSystem) pathForInode(id fuseops.InodeID) (string, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	p, ok := fs.pathOf[id]
	return p, ok
}

func (fs *FileSystem) incLookup(id fuseops.InodeID, n uint64) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.lookupCount[id] += n
}

// goFileMode translates mgridfs's raw POSIX mode_t bits into the
// os.FileMode encoding fuseops.InodeAttributes expects, since the two use
// different high bits for file type.
func goFileMode(raw uint32) os.FileMode {
	perm := os.FileMode(raw & 0o7777)
	switch {
	case posixmode.IsDir(raw):
		return perm | os.ModeDir
	case posixmode.IsSymlink(raw):
		return perm | os.ModeSymlink
	default:
		return perm
	}
}

func (fs *FileSystem) attrFrom(a session.Attr) fuseops.InodeAttributes {
	return fuseops.InodeAttributes{
		Size:   uint64(a.Size),
		Nlink:  a.Nlink,
		Mode:   goFileMode(a.Mode),
		Atime:  a.Mtime,
		Mtime:  a.Mtime,
		Ctime:  a.Ctime,
		Uid:    a.UID,
		Gid:    a.GID,
	}
}

// Destroy tears the session down. Mount bootstrap has no counterpart here:
// jacobsa/fuse offers no way to fail the mount from inside the filesystem,
// so callers run Session.Init/LoadOrCreateRoot before fuse.Mount and abort
// on failure there.
func (fs *FileSystem) Destroy() {
	fs.sess.Destroy(context.Background())
}

func (fs *FileSystem) LookUpInode(ctx context.Context, op *fuseops.LookUpInodeOp) error {
	parent, ok := fs.pathForInode(op.Parent)
	if !ok {
		return errs.Errno(errs.New(errs.NotFound, "fstransport: lookup: unknown parent inode"))
	}

	path := childPath(parent, op.Name)
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

func (fs *FileSystem) GetInodeAttributes(ctx context.Context, op *fuseops.GetInodeAttributesOp) error {
	path, ok := fs.pathForInode(op.Inode)
	if !ok {
		return errs.Errno(errs.New(errs.NotFound, "fstransport: getattr: unknown inode"))
	}
	attr, err := fs.sess.Getattr(ctx, path)
	if err != nil {
		return errs.Errno(err)
	}
	op.Attributes = fs.attrFrom(attr)
	return nil
}

func (fs *FileSystem) SetInodeAttributes(ctx context.Context, op *fuseops.SetInodeAttributesOp) error {
	path, ok := fs.pathForInode(op.Inode)
	if !ok {
		return errs.Errno(errs.New(errs.NotFound, "fstransport: setattr: unknown inode"))
	}

	if op.Mode != nil {
		// os.FileMode keeps file-type bits in its own high-bit encoding; only
		// the permission bits are meaningful for chmod.
		if err := fs.sess.Chmod(ctx, path, uint32(op.Mode.Perm())); err != nil {
			return errs.Errno(err)
		}
	}
	if op.Mtime != nil {
		if err := fs.sess.Utimens(ctx, path, *op.Mtime); err != nil {
			return errs.Errno(err)
		}
	}
	if op.Size != nil {
		if err := fs.sess.Truncate(ctx, path, int64(*op.Size)); err != nil {
			return errs.Errno(err)
		}
	}

	attr, err := fs.sess.Getattr(ctx, path)
	if err != nil {
		return errs.Errno(err)
	}
	op.Attributes = fs.attrFrom(attr)
	return nil
}

func (fs *FileSystem) ForgetInode(ctx context.Context, op *fuseops.ForgetInodeOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	count, ok := fs.lookupCount[op.Inode]
	if !ok {
		return nil
	}
	if op.N >= count {
		path := fs.pathOf[op.Inode]
		delete(fs.pathOf, op.Inode)
		delete(fs.inodeOf, path)
		delete(fs.lookupCount, op.Inode)
		return nil
	}
	fs.lookupCount[op.Inode] = count - op.N
	return nil
}

func (fs *FileSystem) StatFS(ctx context.Context, op *fuseops.StatFSOp) error {
	res, err := fs.sess.Statfs(ctx)
	if err != nil {
		return errs.Errno(err)
	}
	op.BlockSize = uint32(res.Bsize)
	op.IoSize = uint32(res.Bsize)
	op.Blocks = res.Blocks
	op.BlocksFree = res.Bfree
	op.BlocksAvailable = res.Bavail
	op.Inodes = res.Files
	op.InodesFree = res.Ffree
	return nil
}
