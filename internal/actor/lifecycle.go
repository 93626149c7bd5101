// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package actor

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/samber/oops"

	plugins "github.com/holomush/plugbridge/internal/plugin"
)

// Separators of the strings handed to CreateInstance.
const (
	classpathSeparator = ";"
	librarySeparator   = "\n"
)

// instantiateAll creates one runtime instance per key, in order. A failure
// marks only that plugin Errored.
func (w *Worker) instantiateAll(ctx context.Context, logger *slog.Logger, order []string) Outcomes {
	out := make(Outcomes, len(order))
	for _, key := range order {
		p, ok := w.registry.Get(key)
		if !ok {
			out[key] = ErrUnknownPlugin(key)
			logger.Warn("skipping unknown plugin in load order", "plugin", key)
			continue
		}
		if p.State != plugins.StateRegistered {
			logger.Debug("skipping plugin not awaiting instantiation", "plugin", key, "state", p.State.String())
			continue
		}

		req := plugins.InstanceRequest{
			Key:        p.Key,
			Name:       p.Name,
			Path:       p.Path,
			Main:       p.Main,
			Classpath:  w.classpath(p),
			Libraries:  strings.Join(p.Libraries, librarySeparator),
			DataFolder: p.DataFolder,
			Commands:   p.Commands,
		}
		handle, err := w.runtime.CreateInstance(ctx, req)
		if err != nil {
			err = oops.In("actor").
				Code(plugins.CodeInstantiationFailed).
				With("plugin", key).
				With("main", p.Main).
				Wrapf(err, "create plugin instance")
			logger.Error("plugin instantiation failed", "plugin", key, "error", err)
			w.transition(key, plugins.StateErrored)
			out[key] = err
			continue
		}

		w.registry.SetHandle(key, handle)
		w.registerCommands(logger, p)
		w.transition(key, plugins.StateLoaded)
		out[key] = nil
	}
	return out
}

// classpath joins the artifact paths of the plugin's classpath dependencies,
// ordered by dependency name. Unresolvable entries are skipped.
func (w *Worker) classpath(p *plugins.Plugin) string {
	var paths []string
	for _, dep := range p.ClasspathDeps.Sorted() {
		target, ok := w.lookup(dep)
		if !ok || target.Key == p.Key || target.Path == "" {
			continue
		}
		if !slices.Contains(paths, target.Path) {
			paths = append(paths, target.Path)
		}
	}
	return strings.Join(paths, classpathSeparator)
}

// lookup resolves a dependency name to a plugin by key, then by provides.
func (w *Worker) lookup(name string) (*plugins.Plugin, bool) {
	if p, ok := w.registry.Get(name); ok {
		return p, true
	}
	for _, key := range w.registry.Keys() {
		p, _ := w.registry.Get(key)
		if p.Provides.Has(name) {
			return p, true
		}
	}
	return nil, false
}

// registerCommands registers each declared command, its aliases and its
// "<plugin>:<command>" label with the host router, in the same order the
// runtime binds them, so both keep the first plugin to claim a label.
// Router failures are logged and do not fail the plugin. A command whose
// permission is rejected is still registered; the router treats the
// unknown permission as op-only.
func (w *Worker) registerCommands(logger *slog.Logger, p *plugins.Plugin) {
	if w.router == nil {
		return
	}
	for _, name := range slices.Sorted(maps.Keys(p.Commands)) {
		cmd := p.Commands[name]
		perm, def := cmd.Permission, plugins.PermissionOp
		if perm == "" {
			perm, def = w.namespace+":"+strings.ToLower(name), plugins.PermissionAllow
		}
		if err := w.router.RegisterPermission(perm, def); err != nil {
			logger.Warn("failed to register command permission, command is op-only",
				"plugin", p.Key,
				"command", name,
				"permission", perm,
				"error", err)
		}

		ref := plugins.HandlerRef{Plugin: p.Key, Command: name}
		labels := append([]string{name}, cmd.Aliases...)
		labels = append(labels, plugins.QualifiedLabel(p.Key, name))
		for _, label := range labels {
			if err := w.router.RegisterCommand(label, cmd.Description, perm, ref); err != nil {
				logger.Warn("failed to register command",
					"plugin", p.Key,
					"command", label,
					"error", err)
			}
		}
	}
}

// enableAll enables every Loaded or Disabled plugin in key order.
func (w *Worker) enableAll(ctx context.Context, logger *slog.Logger) Outcomes {
	out := Outcomes{}
	for _, key := range w.registry.Keys() {
		p, _ := w.registry.Get(key)
		if p.Handle == nil {
			continue
		}
		if p.State != plugins.StateLoaded && p.State != plugins.StateDisabled {
			continue
		}

		if err := w.runtime.Enable(ctx, p.Handle); err != nil {
			err = oops.In("actor").
				Code(plugins.CodeEnableFailed).
				With("plugin", key).
				Wrapf(err, "enable plugin")
			logger.Error("plugin enable failed", "plugin", key, "error", err)
			w.transition(key, plugins.StateErrored)
			out[key] = err
			continue
		}
		w.registry.SetListeners(key, w.runtime.Listeners(p.Handle))
		w.transition(key, plugins.StateEnabled)
		out[key] = nil
	}
	return out
}

// disableAll disables every Enabled plugin in key order. A plugin ends up
// Disabled even when the runtime reports a failure.
func (w *Worker) disableAll(ctx context.Context, logger *slog.Logger) Outcomes {
	out := Outcomes{}
	for _, key := range w.registry.Keys() {
		p, _ := w.registry.Get(key)
		if p.Handle == nil || p.State != plugins.StateEnabled {
			continue
		}

		var failure error
		if err := w.runtime.Disable(ctx, p.Handle); err != nil {
			failure = oops.In("actor").
				Code(plugins.CodeDisableFailed).
				With("plugin", key).
				Wrapf(err, "disable plugin")
			logger.Warn("plugin disable failed", "plugin", key, "error", failure)
		}
		w.registry.SetListeners(key, nil)
		w.transition(key, plugins.StateDisabled)
		out[key] = failure
	}
	return out
}
