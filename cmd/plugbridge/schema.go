// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"os"
	"path/filepath"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	plugins "github.com/holomush/plugbridge/internal/plugin"
)

// NewSchemaCmd creates the schema subcommand.
func NewSchemaCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:       "schema [primary|legacy]",
		Short:     "Print the JSON Schema of a descriptor dialect",
		Long:      `Print the JSON Schema for ` + plugins.PrimaryDescriptorFile + ` (primary, the default) or ` + plugins.LegacyDescriptorFile + ` (legacy).`,
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"primary", "legacy"},
		RunE: func(cmd *cobra.Command, args []string) error {
			dialect := plugins.DialectPrimary
			if len(args) == 1 && args[0] == "legacy" {
				dialect = plugins.DialectLegacy
			}
			schema, err := plugins.GenerateSchema(dialect)
			if err != nil {
				return err
			}

			if output == "" {
				_, err := cmd.OutOrStdout().Write(append(schema, '\n'))
				return oops.Wrap(err)
			}
			if err := os.MkdirAll(filepath.Dir(output), 0o750); err != nil {
				return oops.With("path", output).Wrapf(err, "create directory")
			}
			if err := os.WriteFile(output, schema, 0o600); err != nil {
				return oops.With("path", output).Wrapf(err, "write schema")
			}
			cmd.Printf("Generated %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the schema to a file instead of stdout")

	return cmd
}
