// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

import (
	"log/slog"
	"maps"
	"slices"
)

// Registry owns every discovered plugin keyed by its normalized name.
//
// Registry is not safe for concurrent use. It has exactly one writer, the
// runtime actor; everything else works from Snapshot copies.
type Registry struct {
	plugins map[string]*Plugin
	logger  *slog.Logger
}

// NewRegistry creates an empty registry that logs to logger.
// A nil logger uses slog.Default().
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		plugins: make(map[string]*Plugin),
		logger:  logger,
	}
}

// Add registers a plugin. A colliding key is rejected and the existing entry
// is left untouched: the first registration wins.
func (r *Registry) Add(p *Plugin) error {
	if existing, ok := r.plugins[p.Key]; ok {
		r.logger.Warn("plugin conflict: rejecting duplicate registration",
			"plugin", p.Key,
			"existing_path", existing.Path,
			"rejected_path", p.Path)
		return ErrDuplicatePlugin(p.Key, existing.Path, p.Path)
	}
	r.plugins[p.Key] = p
	r.logger.Debug("registered plugin",
		"plugin", p.Key,
		"version", p.Version,
		"dialect", p.Dialect.String())
	return nil
}

// Get returns the live entry for key.
func (r *Registry) Get(key string) (*Plugin, bool) {
	p, ok := r.plugins[key]
	return p, ok
}

// Keys returns all registered keys in lexicographic order.
func (r *Registry) Keys() []string {
	return slices.Sorted(maps.Keys(r.plugins))
}

// Len returns the number of registered plugins.
func (r *Registry) Len() int {
	return len(r.plugins)
}

// Transition moves a plugin to a new state. Every transition is accepted;
// the caller decides when a transition is appropriate. It reports false only
// for an unknown key.
func (r *Registry) Transition(key string, to State) bool {
	p, ok := r.plugins[key]
	if !ok {
		return false
	}
	from := p.State
	p.State = to
	r.logger.Debug("plugin state transition",
		"plugin", key,
		"from", from.String(),
		"to", to.String())
	return true
}

// SetHandle records the runtime instance for a plugin.
func (r *Registry) SetHandle(key string, h Handle) bool {
	p, ok := r.plugins[key]
	if !ok {
		return false
	}
	p.Handle = h
	return true
}

// SetListeners replaces a plugin's listener table.
func (r *Registry) SetListeners(key string, listeners map[string]ListenerHandle) bool {
	p, ok := r.plugins[key]
	if !ok {
		return false
	}
	p.Listeners = maps.Clone(listeners)
	if p.Listeners == nil {
		p.Listeners = map[string]ListenerHandle{}
	}
	return true
}

// Snapshot returns deep copies of every plugin ordered by key.
func (r *Registry) Snapshot() []Plugin {
	out := make([]Plugin, 0, len(r.plugins))
	for _, key := range r.Keys() {
		out = append(out, r.plugins[key].Clone())
	}
	return out
}

// Clear removes every plugin regardless of state.
func (r *Registry) Clear() {
	r.plugins = make(map[string]*Plugin)
}
