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
	"testing"

	"github.com/aksaharan/mgridfs/cfg"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeConfigDefaults(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	require.NoError(t, cfg.BindFlags(fs))

	var c cfg.Config
	require.NoError(t, decodeConfig(&c))

	assert.Equal(t, cfg.Defaults(), c)
}

func TestDecodeConfigOverrides(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	require.NoError(t, cfg.BindFlags(fs))
	require.NoError(t, fs.Parse([]string{
		"--db", "prod",
		"--coll-prefix", "gfs",
		"--max-mem-file-chunks", "64",
	}))

	var c cfg.Config
	require.NoError(t, decodeConfig(&c))

	assert.Equal(t, "prod", c.Mongo.Database)
	assert.Equal(t, "gfs", c.Mongo.CollectionPrefix)
	assert.Equal(t, 64, c.Cache.MaxChunksPerFile)
}

// Severity values arrive through LogSeverity's own text unmarshalling, so a
// lowercase --log-level normalizes to its canonical form before validation.
func TestDecodeConfigNormalizesSeverity(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	require.NoError(t, cfg.BindFlags(fs))
	require.NoError(t, fs.Parse([]string{"--log-level", "debug"}))

	var c cfg.Config
	require.NoError(t, decodeConfig(&c))

	assert.Equal(t, cfg.DebugLogSeverity, c.Logging.Severity)
	require.NoError(t, cfg.ValidateConfig(&c))
}
