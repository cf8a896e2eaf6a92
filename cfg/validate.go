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

package cfg

import "fmt"

func isValidMongoConfig(c *MongoConfig) error {
	if c.Host == "" {
		return fmt.Errorf("host must not be empty")
	}
	if c.Port < MinPort || c.Port > MaxPort {
		return fmt.Errorf("port must be between %d and %d, got %d", MinPort, MaxPort, c.Port)
	}
	if c.Database == "" {
		return fmt.Errorf("db must not be empty")
	}
	if c.CollectionPrefix == "" {
		return fmt.Errorf("coll-prefix must not be empty")
	}
	return nil
}

func isValidLoggingConfig(c *LoggingConfig) error {
	if c.Severity.Rank() < 0 {
		return fmt.Errorf("invalid log severity level: %s. Must be one of [TRACE, DEBUG, INFO, WARN, ERROR, FATAL, NONE]", c.Severity)
	}
	return nil
}

func isValidCacheConfig(c *CacheConfig) error {
	if c.ChunkSizeKB <= 0 {
		return fmt.Errorf("mem-chunk-size should be at least 1")
	}
	if c.MaxChunksPerFile <= 0 {
		return fmt.Errorf("max-mem-file-chunks should be at least 1")
	}
	return nil
}

// ValidateConfig returns a non-nil error if the config is invalid.
func ValidateConfig(config *Config) error {
	if err := isValidMongoConfig(&config.Mongo); err != nil {
		return fmt.Errorf("error parsing mongo config: %w", err)
	}
	if err := isValidLoggingConfig(&config.Logging); err != nil {
		return fmt.Errorf("error parsing logging config: %w", err)
	}
	if err := isValidCacheConfig(&config.Cache); err != nil {
		return fmt.Errorf("error parsing cache config: %w", err)
	}
	return nil
}
