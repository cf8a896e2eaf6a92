// Copyright 2024 Google Inc. All Rights Reserved.
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

// Package cfg is the recognized-configuration surface of §6: host/port/db/
// coll_prefix/log_file/log_level/mem_chunk_size/max_mem_file_chunks/
// enable_dyn_mem_chunk, bound to pflag/viper the way the transport layer's
// options record binds its own flags, and validated before it ever reaches
// the session layer.
package cfg

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the decoded, validated mount configuration.
type Config struct {
	Mongo   MongoConfig   `yaml:"mongo"`
	Logging LoggingConfig `yaml:"logging"`
	Cache   CacheConfig   `yaml:"cache"`
}

// MongoConfig names the backing store.
type MongoConfig struct {
	Host             string `yaml:"host"`
	Port             int    `yaml:"port"`
	Database         string `yaml:"db"`
	CollectionPrefix string `yaml:"coll-prefix"`
}

// LoggingConfig controls the leveled log sink.
type LoggingConfig struct {
	File     string      `yaml:"file"`
	Severity LogSeverity `yaml:"severity"`
}

// CacheConfig controls the writable staging cache's chunking.
type CacheConfig struct {
	ChunkSizeKB      int  `yaml:"chunk-size-kb"`
	MaxChunksPerFile int  `yaml:"max-chunks-per-file"`
	DynamicChunkSize bool `yaml:"dynamic-chunk-size"`
}

// Defaults returns the documented defaults for every recognized option.
func Defaults() Config {
	return Config{
		Mongo:   GetDefaultMongoConfig(),
		Logging: GetDefaultLoggingConfig(),
		Cache:   GetDefaultCacheConfig(),
	}
}

// BindFlags registers every recognized option on flagSet and binds it into
// viper under the matching key, mirroring Defaults().
func BindFlags(flagSet *pflag.FlagSet) error {
	d := Defaults()

	flagSet.String("host", d.Mongo.Host, "Backend hostname.")
	if err := viper.BindPFlag("mongo.host", flagSet.Lookup("host")); err != nil {
		return err
	}

	flagSet.Int("port", d.Mongo.Port, "Backend port, 1..65535.")
	if err := viper.BindPFlag("mongo.port", flagSet.Lookup("port")); err != nil {
		return err
	}

	flagSet.String("db", d.Mongo.Database, "Logical database name.")
	if err := viper.BindPFlag("mongo.db", flagSet.Lookup("db")); err != nil {
		return err
	}

	flagSet.String("coll-prefix", d.Mongo.CollectionPrefix, "Bucket collection prefix; derives {prefix}.files and {prefix}.chunks.")
	if err := viper.BindPFlag("mongo.coll-prefix", flagSet.Lookup("coll-prefix")); err != nil {
		return err
	}

	flagSet.String("log-file", d.Logging.File, "Optional file sink for logs; empty logs to stderr.")
	if err := viper.BindPFlag("logging.file", flagSet.Lookup("log-file")); err != nil {
		return err
	}

	flagSet.String("log-level", string(d.Logging.Severity), "One of TRACE/DEBUG/INFO/WARN/ERROR/FATAL/NONE.")
	if err := viper.BindPFlag("logging.severity", flagSet.Lookup("log-level")); err != nil {
		return err
	}

	flagSet.Int("mem-chunk-size", d.Cache.ChunkSizeKB, "Staging-cache chunk size, in kilobytes.")
	if err := viper.BindPFlag("cache.chunk-size-kb", flagSet.Lookup("mem-chunk-size")); err != nil {
		return err
	}

	flagSet.Int("max-mem-file-chunks", d.Cache.MaxChunksPerFile, "Maximum chunks per staged file.")
	if err := viper.BindPFlag("cache.max-chunks-per-file", flagSet.Lookup("max-mem-file-chunks")); err != nil {
		return err
	}

	flagSet.Bool("enable-dyn-mem-chunk", d.Cache.DynamicChunkSize, "Allow staged chunk size to adapt to the remote file's chunk size.")
	if err := viper.BindPFlag("cache.dynamic-chunk-size", flagSet.Lookup("enable-dyn-mem-chunk")); err != nil {
		return err
	}

	return nil
}
