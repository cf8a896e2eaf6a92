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
	"os"
	"testing"

	"github.com/aksaharan/mgridfs/internal/posixmode"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChildPath(t *testing.T) {
	assert.Equal(t, "/foo", childPath("/", "foo"))
	assert.Equal(t, "/foo/bar", childPath("/foo", "bar"))
}

func TestGoFileMode(t *testing.T) {
	dir := goFileMode(posixmode.IFDIR | 0o755)
	assert.True(t, dir.IsDir())
	assert.Equal(t, os.FileMode(0o755), dir.Perm())

	lnk := goFileMode(posixmode.IFLNK | 0o777)
	assert.Equal(t, os.ModeSymlink, lnk&os.ModeType)

	reg := goFileMode(posixmode.IFREG | 0o644)
	assert.True(t, reg.IsRegular())
	assert.Equal(t, os.FileMode(0o644), reg.Perm())
}

func TestMintIsStablePerPath(t *testing.T) {
	fs := New(nil, 1, 1)

	a := fs.mint("/a")
	b := fs.mint("/b")
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, fs.mint("/a"))

	path, ok := fs.pathForInode(a)
	require.True(t, ok)
	assert.Equal(t, "/a", path)
}

func TestRootInodeIsPreMinted(t *testing.T) {
	fs := New(nil, 1, 1)

	path, ok := fs.pathForInode(fuseops.RootInodeID)
	require.True(t, ok)
	assert.Equal(t, "/", path)
	assert.Equal(t, fuseops.InodeID(fuseops.RootInodeID), fs.mint("/"))
}

func TestForgetInodeDropsMappingAtZero(t *testing.T) {
	fs := New(nil, 1, 1)

	id := fs.mint("/a")
	fs.incLookup(id, 2)

	require.NoError(t, fs.ForgetInode(t.Context(), &fuseops.ForgetInodeOp{Inode: id, N: 1}))
	_, ok := fs.pathForInode(id)
	assert.True(t, ok)

	require.NoError(t, fs.ForgetInode(t.Context(), &fuseops.ForgetInodeOp{Inode: id, N: 1}))
	_, ok = fs.pathForInode(id)
	assert.False(t, ok)
}
