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

// Package bucket is the typed façade over the backing object store named by
// the core design's Bucket façade: list by directory, find by name, store a
// blob, remove by name, iterate a file's chunks, and read server stats. It
// is the only package that queries the files collection and the GridFS
// bucket; callers deal in metacodec.Metadata and File values, apart from the
// bson.M patch that UpdateMetadata merges into the metadata sub-record.
package bucket

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/aksaharan/mgridfs/internal/errs"
	"github.com/aksaharan/mgridfs/internal/metacodec"
	"github.com/aksaharan/mgridfs/internal/mongoconn"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// File is a decoded entry from the files collection: one directory, regular
// file, or symlink node.
type File struct {
	ID             primitive.ObjectID
	Filename       string
	UploadTime     time.Time
	ContentLength  int64
	ChunkSize      int32
	Metadata       metacodec.Metadata
	metadataDecode error // non-nil if Metadata decoding failed (type unknown); surfaced by callers that care
}

// MetadataDecodeErr returns the error, if any, produced while decoding this
// file's metadata sub-record. Callers of getattr-style operations use this
// to turn an unknown type into a warning without failing the whole call.
func (f *File) MetadataDecodeErr() error { return f.metadataDecode }

// NumChunks returns ceil(ContentLength / ChunkSize), 0 for zero-length
// entries (directories and symlinks).
func (f *File) NumChunks() int64 {
	if f.ContentLength == 0 || f.ChunkSize == 0 {
		return 0
	}
	return (f.ContentLength + int64(f.ChunkSize) - 1) / int64(f.ChunkSize)
}

// Stats is the db_stats() result consumed by statfs.
type Stats struct {
	FileSize    int64
	StorageSize int64
	Objects     int64
}

// Facade is the contract the session layer and the staging cache consume:
// find/list/store/remove/update against the files collection plus
// per-chunk reads and server stats. *Bucket is the real implementation;
// tests substitute a hand-written fake so the core logic never has to dial
// an actual backend.
type Facade interface {
	FindByFilename(ctx context.Context, name string) (*File, error)
	ListByDirectory(ctx context.Context, dir string, fn func(*File)) error
	StoreBlob(ctx context.Context, filename string, data []byte, meta metacodec.Metadata) (*File, error)
	RemoveByFilename(ctx context.Context, name string) error
	UpdateMetadata(ctx context.Context, name string, patch bson.M) error
	ReadChunk(ctx context.Context, file *File, index int64) ([]byte, error)
	DBStats(ctx context.Context) (Stats, error)
}

// Bucket is the façade itself, bound to one mongoconn.Conn.
type Bucket struct {
	conn  *mongoconn.Conn
	files *mongo.Collection
	gfs   *gridfs.Bucket
}

var _ Facade = (*Bucket)(nil)

// Open builds a Bucket over conn's database/collection-prefix binding.
func Open(conn *mongoconn.Conn) (*Bucket, error) {
	db := conn.Database()
	gfs, err := gridfs.NewBucket(db, options.GridFSBucket().SetName(conn.BucketName()))
	if err != nil {
		return nil, errs.Wrap(errs.BackendIO, "bucket: open gridfs bucket", err)
	}

	return &Bucket{
		conn:  conn,
		files: db.Collection(conn.FilesCollectionName()),
		gfs:   gfs,
	}, nil
}

type filesDoc struct {
	ID         primitive.ObjectID `bson:"_id"`
	Length     int64              `bson:"length"`
	ChunkSize  int32              `bson:"chunkSize"`
	UploadDate primitive.DateTime `bson:"uploadDate"`
	Filename   string             `bson:"filename"`
	Metadata   bson.M             `bson:"metadata"`
}

func decodeFile(d filesDoc) *File {
	uploadTime := d.UploadDate.Time()
	meta, err := metacodec.Decode(d.Metadata, uploadTime)
	return &File{
		ID:             d.ID,
		Filename:       d.Filename,
		UploadTime:     uploadTime,
		ContentLength:  d.Length,
		ChunkSize:      d.ChunkSize,
		Metadata:       meta,
		metadataDecode: err,
	}
}

// FindByFilename returns the live entry named name, or (nil, nil) if none
// exists. Any other error is errs.BackendIO.
func (b *Bucket) FindByFilename(ctx context.Context, name string) (*File, error) {
	var doc filesDoc
	err := b.files.FindOne(ctx, bson.M{"filename": name}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Wrap(errs.BackendIO, "bucket: find_by_filename", err)
	}
	return decodeFile(doc), nil
}

// ListByDirectory iterates every entry whose metadata.directory equals dir,
// invoking fn for each. A per-item decode failure (unknown type) is still
// delivered to fn with its MetadataDecodeErr set rather than aborting the
// whole iteration; callers log and skip per the contract.
func (b *Bucket) ListByDirectory(ctx context.Context, dir string, fn func(*File)) error {
	cur, err := b.files.Find(ctx, bson.M{"metadata.directory": dir})
	if err != nil {
		return errs.Wrap(errs.BackendIO, "bucket: list_by_directory", err)
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var doc filesDoc
		if err := cur.Decode(&doc); err != nil {
			continue // malformed document; caller's per-item logging has nothing to log against
		}
		fn(decodeFile(doc))
	}
	if err := cur.Err(); err != nil {
		return errs.Wrap(errs.BackendIO, "bucket: list_by_directory cursor", err)
	}
	return nil
}

// StoreBlob uploads data under filename with the given metadata and returns
// the freshly created File. filename must not already name a live entry;
// callers that replace an existing file remove it first (flush's
// remove-then-store sequence).
func (b *Bucket) StoreBlob(ctx context.Context, filename string, data []byte, meta metacodec.Metadata) (*File, error) {
	uploadOpts := options.GridFSUpload().SetMetadata(metacodec.Encode(meta))
	id, err := b.gfs.UploadFromStream(filename, bytes.NewReader(data), uploadOpts)
	if err != nil {
		return nil, errs.Wrap(errs.BackendIO, "bucket: store_blob", err)
	}
	return b.findByID(ctx, id)
}

func (b *Bucket) findByID(ctx context.Context, id primitive.ObjectID) (*File, error) {
	var doc filesDoc
	if err := b.files.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, errs.Wrap(errs.BackendIO, "bucket: reload after store", err)
	}
	return decodeFile(doc), nil
}

// RemoveByFilename deletes every chunk and file document for name. Missing
// entries are not an error (idempotent remove).
func (b *Bucket) RemoveByFilename(ctx context.Context, name string) error {
	var doc filesDoc
	err := b.files.FindOne(ctx, bson.M{"filename": name}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil
	}
	if err != nil {
		return errs.Wrap(errs.BackendIO, "bucket: remove_by_filename lookup", err)
	}

	if err := b.gfs.DeleteContext(ctx, doc.ID); err != nil {
		return errs.Wrap(errs.BackendIO, "bucket: remove_by_filename delete", err)
	}
	return nil
}

// UpdateMetadata merges patch into the metadata sub-record of the entry
// named name. Returns errs.NotFound if no document matched.
func (b *Bucket) UpdateMetadata(ctx context.Context, name string, patch bson.M) error {
	set := bson.M{}
	for k, v := range patch {
		set["metadata."+k] = v
	}

	res, err := b.files.UpdateOne(ctx, bson.M{"filename": name}, bson.M{"$set": set})
	if err != nil {
		return errs.Wrap(errs.BackendIO, "bucket: update_metadata", err)
	}
	if res.MatchedCount == 0 {
		return errs.New(errs.NotFound, "bucket: update_metadata: no such entry "+name)
	}
	return nil
}

// ReadChunk returns the bytes of chunk index (0-based) of file.
func (b *Bucket) ReadChunk(ctx context.Context, file *File, index int64) ([]byte, error) {
	if index < 0 || index >= file.NumChunks() {
		return nil, errs.New(errs.OutOfRange, "bucket: read_chunk index out of range")
	}

	stream, err := b.gfs.OpenDownloadStream(file.ID)
	if err != nil {
		return nil, errs.Wrap(errs.BackendIO, "bucket: read_chunk open stream", err)
	}
	defer stream.Close()

	offset := index * int64(file.ChunkSize)
	if _, err := stream.Skip(offset); err != nil {
		return nil, errs.Wrap(errs.BackendIO, "bucket: read_chunk skip", err)
	}

	buf := make([]byte, file.ChunkSize)
	n, err := io.ReadFull(stream, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, errs.Wrap(errs.BackendIO, "bucket: read_chunk read", err)
	}
	return buf[:n], nil
}

// DBStats runs the backend's dbStats command and returns the three figures
// statfs needs.
func (b *Bucket) DBStats(ctx context.Context) (Stats, error) {
	var raw bson.M
	if err := b.conn.Database().RunCommand(ctx, bson.D{{Key: "dbStats", Value: 1}}).Decode(&raw); err != nil {
		return Stats{}, errs.Wrap(errs.BackendIO, "bucket: db_stats", err)
	}

	return Stats{
		FileSize:    asInt64(raw["fileSize"]),
		StorageSize: asInt64(raw["storageSize"]),
		Objects:     asInt64(raw["objects"]),
	}, nil
}

func asInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int32:
		return int64(t)
	case float64:
		return int64(t)
	default:
		return 0
	}
}
