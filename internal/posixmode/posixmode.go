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

// Package posixmode holds the raw POSIX mode_t file-type bits. The metadata
// sub-record stores mode this way (not as Go's os.FileMode encoding) because
// it round-trips through the bucket's document store and back out to a
// kernel-facing stat struct.
package posixmode

const (
	IFMT  = 0170000 // bit mask for the file type bits
	IFDIR = 0040000 // directory
	IFREG = 0100000 // regular file
	IFLNK = 0120000 // symbolic link
)

// IsDir reports whether mode's type bits are S_IFDIR.
func IsDir(mode uint32) bool { return mode&IFMT == IFDIR }

// IsRegular reports whether mode's type bits are S_IFREG.
func IsRegular(mode uint32) bool { return mode&IFMT == IFREG }

// IsSymlink reports whether mode's type bits are S_IFLNK.
func IsSymlink(mode uint32) bool { return mode&IFMT == IFLNK }
