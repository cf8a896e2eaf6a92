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

// Package pathutil provides the small set of slash-path helpers the rest of
// mgridfs builds on: basename/dirname of absolute, slash-separated paths,
// and the 512-byte block-count rounding used for stat.st_blocks.
package pathutil

import "strings"

// Basename returns the final segment of an absolute path, with any leading
// slash stripped. Basename("/") is "".
func Basename(p string) string {
	trimmed := strings.TrimPrefix(p, "/")
	if idx := strings.LastIndexByte(trimmed, '/'); idx >= 0 {
		return trimmed[idx+1:]
	}
	return trimmed
}

// Dirname returns the parent of an absolute path, following POSIX
// dirname(3) semantics: trailing slashes are ignored, the last component is
// stripped, and any trailing slashes left on the remainder are collapsed
// save for a single leading "/". Dirname of a top-level entry ("/foo") and
// of the root itself ("/") is "/".
func Dirname(p string) string {
	trimmed := strings.TrimRight(p, "/")
	if trimmed == "" {
		return "/"
	}

	idx := strings.LastIndexByte(trimmed, '/')
	if idx <= 0 {
		return "/"
	}

	parent := strings.TrimRight(trimmed[:idx], "/")
	if parent == "" {
		return "/"
	}
	return parent
}

// Blocks512 returns the number of 512-byte blocks needed to hold n bytes
// (n / 512, rounded up), the unit stat.st_blocks is reported in.
func Blocks512(n int64) int64 {
	return (n + 511) / 512
}
