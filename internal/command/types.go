// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package command is the host-side command system: plugin commands are
// registered here with their permissions and routed back to the bridge.
package command

import (
	"context"

	plugins "github.com/holomush/plugbridge/internal/plugin"
	pluginsdk "github.com/holomush/plugbridge/pkg/plugin"
)

// Entry is a registered command label.
type Entry struct {
	Name        string // label as typed, lower-case
	Description string
	Permission  string
	Handler     plugins.HandlerRef
}

// Source names the plugin that owns the entry, for logs and metrics.
func (e Entry) Source() string {
	if e.Handler.Plugin == "" {
		return "host"
	}
	return e.Handler.Plugin
}

// Dispatcher runs command lines inside the plugin runtime. The bridge
// implements it.
type Dispatcher interface {
	DispatchCommand(ctx context.Context, line string, sender pluginsdk.Sender, loc *pluginsdk.Location) bool
	TabComplete(ctx context.Context, line string, sender pluginsdk.Sender, loc *pluginsdk.Location) []string
}
