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

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aksaharan/mgridfs/cfg"
	"github.com/aksaharan/mgridfs/clock"
	"github.com/aksaharan/mgridfs/internal/bucket"
	"github.com/aksaharan/mgridfs/internal/fstransport"
	"github.com/aksaharan/mgridfs/internal/logger"
	"github.com/aksaharan/mgridfs/internal/mongoconn"
	"github.com/aksaharan/mgridfs/internal/session"
	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseutil"
)

// mountAndServe is the mount bootstrap: connect, open the
// bucket, load or create the root, mount the FUSE server, and block until
// the mount is unmounted (by the kernel, by a signal, or by a fatal error).
// A failure anywhere before the FUSE mount itself is fatal to the process.
func mountAndServe(ctx context.Context, c cfg.Config, mountPoint string) error {
	if err := logger.Init(c.Logging, "text"); err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer logger.Close()

	logger.Infof("mgridfs: mounting %s:%d/%s at %s", c.Mongo.Host, c.Mongo.Port, c.Mongo.Database, mountPoint)

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	conn, err := mongoconn.Open(connectCtx, mongoconn.Options{
		Host:           c.Mongo.Host,
		Port:           c.Mongo.Port,
		Database:       c.Mongo.Database,
		CollPrefix:     c.Mongo.CollectionPrefix,
		ConnectTimeout: 10 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("connecting to backend: %w", err)
	}
	defer conn.Close(context.Background())

	bkt, err := bucket.Open(conn)
	if err != nil {
		return fmt.Errorf("opening bucket: %w", err)
	}

	sessCfg := session.Config{
		ChunkSizeBytes:    int64(c.Cache.ChunkSizeKB) * 1024,
		MaxMemoryFileSize: int64(c.Cache.ChunkSizeKB) * 1024 * int64(c.Cache.MaxChunksPerFile),
		DynamicChunkSize:  c.Cache.DynamicChunkSize,
	}
	sess := session.New(sessCfg, bkt, clock.RealClock{}, logger.SlogLogger())

	if err := sess.Init(ctx); err != nil {
		return fmt.Errorf("initializing session: %w", err)
	}

	if err := sess.LoadOrCreateRoot(ctx); err != nil {
		return fmt.Errorf("loading or creating root: %w", err)
	}

	fs := fstransport.New(sess, uint32(os.Getuid()), uint32(os.Getgid()))
	server := fuseutil.NewFileSystemServer(fs)

	mfs, err := fuse.Mount(mountPoint, server, &fuse.MountConfig{
		FSName:                  "mgridfs",
		Subtype:                 "mgridfs",
		VolumeName:              "mgridfs",
		DisableWritebackCaching: true,
	})
	if err != nil {
		return fmt.Errorf("mounting fuse server: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Infof("mgridfs: received shutdown signal, unmounting %s", mountPoint)
		if err := fuse.Unmount(mountPoint); err != nil {
			logger.Errorf("mgridfs: unmount failed: %v", err)
		}
	}()

	joinErr := mfs.Join(context.Background())
	sess.Destroy(context.Background())

	if joinErr != nil {
		return fmt.Errorf("serving fuse requests: %w", joinErr)
	}

	logger.Infof("mgridfs: unmounted %s", mountPoint)
	return nil
}
