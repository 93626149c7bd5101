// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	plugins "github.com/holomush/plugbridge/internal/plugin"
)

// NewValidateCmd creates the validate subcommand.
func NewValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <artifact>...",
		Short: "Check plugin artifacts before installing them",
		Long: `Validate each artifact's descriptors against their JSON Schema, then
load it the way the server would, including the api-version check.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			failed := 0
			for _, path := range args {
				loader, err := plugins.NewLoader(filepath.Dir(path),
					plugins.WithAPIVersion(cfg.Plugins.APIVersion, cfg.Plugins.StrictAPIVersion),
					plugins.WithLoaderLogger(logger),
				)
				if err != nil {
					return err
				}
				if !validateArtifact(cmd.OutOrStdout(), loader, path) {
					failed++
				}
			}
			if failed > 0 {
				return oops.Code("VALIDATION_FAILED").Errorf("%d of %d artifacts failed validation", failed, len(args))
			}
			return nil
		},
	}
}

// validateArtifact reports on one artifact and whether it passed.
func validateArtifact(w io.Writer, loader *plugins.Loader, path string) bool {
	primary, legacy, err := plugins.ReadArtifact(path)
	if err != nil {
		fmt.Fprintf(w, "%s: %v\n", path, err)
		return false
	}

	ok := true
	check := func(d plugins.Dialect, file string, data []byte) {
		if data == nil {
			return
		}
		if err := plugins.ValidateSchema(d, data); err != nil {
			fmt.Fprintf(w, "%s: %s: %s\n", path, file, plugins.FormatSchemaError(err))
			ok = false
		}
	}
	check(plugins.DialectPrimary, plugins.PrimaryDescriptorFile, primary)
	check(plugins.DialectLegacy, plugins.LegacyDescriptorFile, legacy)
	if !ok {
		return false
	}

	d := loader.Load(path)
	if !d.Outcome.Loaded() {
		fmt.Fprintf(w, "%s: %s: %v\n", path, d.Outcome, d.Err)
		return false
	}
	fmt.Fprintf(w, "%s: ok (%s %s, %s descriptor)\n", path, d.Plugin.Name, d.Plugin.Version, d.Plugin.Dialect)
	return true
}
