// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package actor

import (
	"context"
	"log/slog"

	"github.com/samber/oops"

	plugins "github.com/holomush/plugbridge/internal/plugin"
	pluginsdk "github.com/holomush/plugbridge/pkg/plugin"
)

// dispatchCommand forwards a command line to the runtime. A runtime failure
// is reported as unhandled.
func (w *Worker) dispatchCommand(ctx context.Context, logger *slog.Logger, m DispatchCommand) (bool, error) {
	handled, err := w.runtime.Dispatch(ctx, m.Sender, m.Line, m.Location)
	if err != nil {
		err = oops.In("actor").
			Code(CodeDispatchFailed).
			With("sender", m.Sender.String()).
			With("line", m.Line).
			Wrapf(err, "dispatch command")
		logger.Warn("command dispatch failed", "sender", m.Sender.String(), "error", err)
		return false, err
	}
	if !handled {
		logger.Debug("command not handled by any plugin", "sender", m.Sender.String(), "line", m.Line)
	}
	return handled, nil
}

// tabComplete asks the runtime for suggestions. A failure yields none.
func (w *Worker) tabComplete(ctx context.Context, logger *slog.Logger, m TabComplete) ([]string, error) {
	suggestions, err := w.runtime.TabComplete(ctx, m.Sender, m.Line, m.Location)
	if err != nil {
		err = oops.In("actor").
			Code(CodeTabCompleteFailed).
			With("sender", m.Sender.String()).
			Wrapf(err, "tab complete")
		logger.Debug("tab completion failed", "sender", m.Sender.String(), "error", err)
		return []string{}, err
	}
	if suggestions == nil {
		suggestions = []string{}
	}
	return suggestions, nil
}

// fireEvent delivers an event to one enabled plugin and reports whether a
// listener cancelled it.
func (w *Worker) fireEvent(ctx context.Context, logger *slog.Logger, m FireEvent) (bool, error) {
	if m.Event == nil || m.Event.Kind() == pluginsdk.EventUnsupported {
		logger.Warn("ignoring unsupported event", "plugin", m.Plugin, "event", describeEvent(m.Event))
		return false, nil
	}

	key := plugins.NormalizeName(m.Plugin)
	p, ok := w.registry.Get(key)
	if !ok {
		logger.Debug("event target not registered", "plugin", key)
		return false, nil
	}
	if p.State != plugins.StateEnabled {
		logger.Debug("event target not enabled", "plugin", key, "state", p.State.String())
		return false, nil
	}

	cancelled, err := w.runtime.FireEvent(ctx, m.Event, key)
	if err != nil {
		err = oops.In("actor").
			Code(CodeFireEventFailed).
			With("plugin", key).
			With("event", m.Event.Kind().String()).
			Wrapf(err, "fire event")
		logger.Warn("event delivery failed", "plugin", key, "error", err)
		return false, err
	}
	return cancelled, nil
}

func describeEvent(e pluginsdk.Event) string {
	if u, ok := e.(pluginsdk.Unsupported); ok {
		return u.Type
	}
	if e == nil {
		return "<nil>"
	}
	return e.Kind().String()
}
