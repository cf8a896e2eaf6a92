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

package bucket

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNumChunks(t *testing.T) {
	cases := []struct {
		length, chunkSize int64
		want              int64
	}{
		{0, 128, 0},
		{1, 128, 1},
		{128, 128, 1},
		{129, 128, 2},
		{256, 128, 2},
	}

	for _, c := range cases {
		f := &File{ContentLength: c.length, ChunkSize: int32(c.chunkSize)}
		assert.Equal(t, c.want, f.NumChunks(), "length=%d chunkSize=%d", c.length, c.chunkSize)
	}
}

func TestNumChunksZeroChunkSize(t *testing.T) {
	f := &File{ContentLength: 10, ChunkSize: 0}
	assert.Equal(t, int64(0), f.NumChunks())
}

func TestAsInt64(t *testing.T) {
	assert.Equal(t, int64(5), asInt64(int64(5)))
	assert.Equal(t, int64(5), asInt64(int32(5)))
	assert.Equal(t, int64(5), asInt64(float64(5)))
	assert.Equal(t, int64(0), asInt64("nope"))
}
