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

// Package cmd is the CLI surface: flag/config wiring through cobra and
// viper, mount-time wiring of mongoconn/bucket/session/fstransport, and the
// process exit codes (0 on clean unmount, 1 on option-parsing or
// mount-bootstrap failure).
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/aksaharan/mgridfs/cfg"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var mountConfig cfg.Config

var rootCmd = &cobra.Command{
	Use:   "mgridfs [flags] mount_point",
	Short: "Mount a MongoDB GridFS bucket as a local POSIX filesystem",
	Long: `mgridfs is a FUSE daemon that projects a MongoDB GridFS bucket as a
mountable directory tree: files, directories, and symlinks are backed by
GridFS file documents, with writes staged locally until release.`,
	Version:       "0.1.0",
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(c *cobra.Command, args []string) error {
		if err := decodeConfig(&mountConfig); err != nil {
			return fmt.Errorf("decoding configuration: %w", err)
		}
		if err := cfg.ValidateConfig(&mountConfig); err != nil {
			return err
		}

		mountPoint, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("resolving mount point: %w", err)
		}

		return mountAndServe(c.Context(), mountConfig, mountPoint)
	},
}

// decodeConfig pulls the bound flag/env values out of viper into c. Viper
// matches on mapstructure tags by default; cfg's structs carry yaml tags, so
// the decoder's tag name is overridden, and the text-unmarshaller hook lets
// typed fields like cfg.LogSeverity normalize their own input.
func decodeConfig(c *cfg.Config) error {
	return viper.Unmarshal(c,
		viper.DecodeHook(mapstructure.TextUnmarshallerHookFunc()),
		func(dc *mapstructure.DecoderConfig) { dc.TagName = "yaml" },
	)
}

func init() {
	if err := cfg.BindFlags(rootCmd.Flags()); err != nil {
		// BindFlags only fails if it binds a flag name it never registered;
		// that's a programmer error in cfg, not a runtime condition.
		panic(err)
	}
}

// Execute runs the root command, exiting the process with code 1 on any
// option-parsing or mount-bootstrap failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
