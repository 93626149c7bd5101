// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/plugbridge/internal/control"
)

// ServiceStatus is one line of status output.
type ServiceStatus struct {
	Service string `json:"service"`
	Known   bool   `json:"known"`
	Serving bool   `json:"serving"`
}

// State returns the status as shown in the table.
func (s ServiceStatus) State() string {
	switch {
	case !s.Known:
		return "unknown"
	case s.Serving:
		return "serving"
	default:
		return "not serving"
	}
}

// statusOptions holds configuration for the status command.
type statusOptions struct {
	jsonOutput bool
	timeout    time.Duration
}

// NewStatusCmd creates the status subcommand.
func NewStatusCmd() *cobra.Command {
	opts := &statusOptions{}

	cmd := &cobra.Command{
		Use:   "status [plugin...]",
		Short: "Show the health of a running server",
		Long: `Query the control socket of a running server. The server itself is
always listed; name plugins to see whether each one is enabled.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runStatus(cmd.Context(), cfg.Control.Socket, args, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "output status as JSON")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 5*time.Second, "limit on the whole query")

	return cmd
}

func runStatus(ctx context.Context, socket string, keys []string, opts *statusOptions, w io.Writer) error {
	if socket == "" {
		return oops.Code("CONFIG_INVALID").Hint("set control.socket or --control-socket").Errorf("the control socket is disabled")
	}
	statuses, err := queryStatus(ctx, socket, keys, opts.timeout)
	if err != nil {
		return err
	}
	if opts.jsonOutput {
		return writeJSON(w, statuses)
	}
	writeStatusTable(w, statuses)
	return nil
}

func queryStatus(ctx context.Context, socket string, keys []string, timeout time.Duration) ([]ServiceStatus, error) {
	client, err := control.Dial(socket)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Close() }()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	server, err := client.Check(ctx, "")
	if err != nil {
		return nil, oops.With("socket", socket).Hint("is plugbridge serve running?").Wrap(err)
	}
	plugins, err := client.Plugins(ctx, keys...)
	if err != nil {
		return nil, err
	}

	out := []ServiceStatus{{Service: "plugbridge", Known: server.Known, Serving: server.Serving}}
	for i, st := range plugins {
		out = append(out, ServiceStatus{Service: keys[i], Known: st.Known, Serving: st.Serving})
	}
	return out, nil
}

func writeStatusTable(w io.Writer, statuses []ServiceStatus) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Service", "Status"})
	for _, st := range statuses {
		t.AppendRow(table.Row{st.Service, st.State()})
	}
	t.Render()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return oops.Wrapf(err, "encode JSON")
	}
	return nil
}
