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

// Package mongoconn is the connection-pool handle named as an external
// collaborator by the core design. It owns the single *mongo.Client for a
// mount and hands out the configured database handle plus the collection and
// GridFS bucket names derived from the collection prefix; document queries
// and the GridFS-style façade itself live in internal/bucket.
package mongoconn

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Conn wraps a pooled *mongo.Client, pre-bound to a database and a
// {prefix}.files/{prefix}.chunks collection pair. Acquisition of the
// underlying client is implicit in the driver's own connection pool; Conn's
// job is only to carry the database/collection-name binding that the rest
// of the core needs.
type Conn struct {
	client     *mongo.Client
	database   string
	collPrefix string
}

// Options configures Open.
type Options struct {
	Host       string
	Port       int
	Database   string
	CollPrefix string

	// ConnectTimeout bounds the initial handshake. Zero uses the driver's
	// default.
	ConnectTimeout time.Duration
}

// Open dials the backend and verifies connectivity with a ping, returning a
// Conn ready for use by internal/bucket. The caller owns the returned Conn
// and must call Close when the mount is torn down.
func Open(ctx context.Context, opts Options) (*Conn, error) {
	uri := fmt.Sprintf("mongodb://%s:%d", opts.Host, opts.Port)

	clientOpts := options.Client().ApplyURI(uri)
	if opts.ConnectTimeout > 0 {
		clientOpts = clientOpts.SetConnectTimeout(opts.ConnectTimeout)
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("mongoconn: connect: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongoconn: ping: %w", err)
	}

	return &Conn{
		client:     client,
		database:   opts.Database,
		collPrefix: opts.CollPrefix,
	}, nil
}

// Database returns the *mongo.Database this Conn is bound to.
func (c *Conn) Database() *mongo.Database {
	return c.client.Database(c.database)
}

// FilesCollectionName returns "{prefix}.files".
func (c *Conn) FilesCollectionName() string {
	return c.collPrefix + ".files"
}

// ChunksCollectionName returns "{prefix}.chunks".
func (c *Conn) ChunksCollectionName() string {
	return c.collPrefix + ".chunks"
}

// BucketName returns the GridFS bucket name derived from the collection
// prefix (the driver derives "{name}.files"/"{name}.chunks" from it).
func (c *Conn) BucketName() string {
	return c.collPrefix
}

// Close disconnects the underlying client. Safe to call once per Open.
func (c *Conn) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}
