// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"io"
	"log/slog"
	"slices"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	plugins "github.com/holomush/plugbridge/internal/plugin"
	"github.com/holomush/plugbridge/internal/plugin/depgraph"
)

// OrderEntry is one plugin in the computed load order. Position is zero for
// plugins that will not load.
type OrderEntry struct {
	Position int    `json:"position,omitempty"`
	Name     string `json:"name"`
	Version  string `json:"version"`
	Dialect  string `json:"dialect"`
	State    string `json:"state"`
	Path     string `json:"path"`
}

// NewOrderCmd creates the order subcommand.
func NewOrderCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "order",
		Short: "Print the plugin load order",
		Long: `Read every artifact in the plugins directory and print the order the
server would instantiate them in. Nothing is loaded into the runtime and
staged updates are left alone.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			loader, err := newLoader(cfg, logger)
			if err != nil {
				return err
			}
			loaded, err := loadPlugins(cmd.Context(), loader, logger)
			if err != nil {
				return err
			}
			entries := computeOrder(loaded, logger)
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), entries)
			}
			writeOrderTable(cmd.OutOrStdout(), entries)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output the order as JSON")

	return cmd
}

// computeOrder resolves loaded the same way the runtime actor does. Plugins
// left out of the order follow it, by name.
func computeOrder(loaded []*plugins.Plugin, logger *slog.Logger) []OrderEntry {
	reg := plugins.NewRegistry(logger)
	for _, p := range loaded {
		// Add logs the rejected duplicate.
		_ = reg.Add(p)
	}
	order := depgraph.ComputeOrder(reg, logger)

	entries := make([]OrderEntry, 0, reg.Len())
	for i, key := range order {
		p, _ := reg.Get(key)
		entries = append(entries, orderEntry(i+1, p))
	}
	for _, key := range reg.Keys() {
		if slices.Contains(order, key) {
			continue
		}
		p, _ := reg.Get(key)
		entries = append(entries, orderEntry(0, p))
	}
	return entries
}

func orderEntry(pos int, p *plugins.Plugin) OrderEntry {
	return OrderEntry{
		Position: pos,
		Name:     p.Name,
		Version:  p.Version,
		Dialect:  p.Dialect.String(),
		State:    p.State.String(),
		Path:     p.Path,
	}
}

func writeOrderTable(w io.Writer, entries []OrderEntry) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Plugin", "Version", "Dialect", "State"})
	for _, e := range entries {
		pos := any(e.Position)
		if e.Position == 0 {
			pos = "-"
		}
		t.AppendRow(table.Row{pos, e.Name, e.Version, e.Dialect, e.State})
	}
	t.Render()
}
