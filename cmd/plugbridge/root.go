// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/holomush/plugbridge/internal/config"
	"github.com/holomush/plugbridge/internal/logging"
)

// NewRootCmd creates the root command for the plugbridge CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugbridge",
		Short: "plugbridge - a plugin host for line-based game servers",
		Long: `plugbridge loads server plugins from descriptor-carrying artifacts,
orders them by their dependencies, and runs them in a Lua runtime
behind a single actor that owns every plugin call.`,
		SilenceUsage: true,
	}

	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewStatusCmd())
	cmd.AddCommand(NewOrderCmd())
	cmd.AddCommand(NewValidateCmd())
	cmd.AddCommand(NewSchemaCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}

// loadConfig reads settings and installs the process logger.
func loadConfig(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return config.Config{}, nil, err
	}
	// Validate has already checked the level.
	level, _ := logging.ParseLevel(cfg.Log.Level)
	logger := logging.Setup(logging.Options{
		Service: "plugbridge",
		Version: version,
		Format:  cfg.Log.Format,
		Level:   level,
		Writer:  cmd.ErrOrStderr(),
	})
	slog.SetDefault(logger)
	return cfg, logger, nil
}
