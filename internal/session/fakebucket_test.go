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
	"sync"

	"github.com/aksaharan/mgridfs/internal/bucket"
	"github.com/aksaharan/mgridfs/internal/errs"
	"github.com/aksaharan/mgridfs/internal/metacodec"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// fakeBucket is an in-memory stand-in for bucket.Facade: every test in this
// package exercises the session handlers against it instead of a live
// backend.
type fakeBucket struct {
	mu     sync.Mutex
	files  map[string][]byte
	metas  map[string]metacodec.Metadata
	ids    map[string]int
	nextID int
	stats  bucket.Stats
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{
		files: make(map[string][]byte),
		metas: make(map[string]metacodec.Metadata),
		ids:   make(map[string]int),
	}
}

var _ bucket.Facade = (*fakeBucket)(nil)

func (b *fakeBucket) toFile(name string) *bucket.File {
	data := b.files[name]
	return &bucket.File{
		Filename:      name,
		ContentLength: int64(len(data)),
		ChunkSize:     4,
		Metadata:      b.metas[name],
	}
}

func (b *fakeBucket) FindByFilename(ctx context.Context, name string) (*bucket.File, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.metas[name]; !ok {
		return nil, nil
	}
	return b.toFile(name), nil
}

func (b *fakeBucket) ListByDirectory(ctx context.Context, dir string, fn func(*bucket.File)) error {
	b.mu.Lock()
	names := make([]string, 0)
	for name, m := range b.metas {
		if m.Directory == dir {
			names = append(names, name)
		}
	}
	b.mu.Unlock()

	for _, name := range names {
		fn(b.toFile(name))
	}
	return nil
}

func (b *fakeBucket) StoreBlob(ctx context.Context, filename string, data []byte, meta metacodec.Metadata) (*bucket.File, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.files[filename] = append([]byte(nil), data...)
	b.metas[filename] = meta
	b.nextID++
	b.ids[filename] = b.nextID
	return b.toFile(filename), nil
}

func (b *fakeBucket) RemoveByFilename(ctx context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.files, name)
	delete(b.metas, name)
	delete(b.ids, name)
	return nil
}

func (b *fakeBucket) UpdateMetadata(ctx context.Context, name string, patch bson.M) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	m, ok := b.metas[name]
	if !ok {
		return errs.New(errs.NotFound, "fakeBucket: update_metadata: no such entry "+name)
	}

	for k, v := range patch {
		switch k {
		case "mode":
			m.Mode = v.(uint32)
		case "uid":
			m.UID = v.(uint32)
		case "gid":
			m.GID = v.(uint32)
		case "lastUpdated":
			m.LastUpdated = v.(primitive.DateTime).Time()
		}
	}
	b.metas[name] = m
	return nil
}

func (b *fakeBucket) ReadChunk(ctx context.Context, file *bucket.File, index int64) ([]byte, error) {
	b.mu.Lock()
	data := b.files[file.Filename]
	b.mu.Unlock()

	start := index * int64(file.ChunkSize)
	if start >= int64(len(data)) {
		return nil, nil
	}
	end := start + int64(file.ChunkSize)
	if end > int64(len(data)) {
		end = int64(len(data))
	}
	return data[start:end], nil
}

func (b *fakeBucket) DBStats(ctx context.Context) (bucket.Stats, error) {
	return b.stats, nil
}
