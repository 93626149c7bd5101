// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package capability decides which host functions a plugin may call.
//
// Capabilities are dotted names such as "kv.read" or "player.abilities.write".
// Grants are gobwas/glob patterns compiled with '.' as the separator:
//   - '*' matches a single segment: "player.*" matches "player.message"
//   - '**' matches any number of segments: "player.**" matches "player.abilities.read"
package capability

import (
	"sync"

	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// Capabilities checked by the host functions.
const (
	KVRead           = "kv.read"
	KVWrite          = "kv.write"
	PlayerMessage    = "player.message"
	AbilitiesRead    = "player.abilities.read"
	AbilitiesWrite   = "player.abilities.write"
	PlayerLocation   = "player.location"
	PlayerSound      = "player.sound"
	WorldRead        = "world.read"
	RegistryRead     = "registry.read"
	EventListen      = "event.listen"
	EventCall        = "event.call"
	CodeInvalidGrant = "INVALID_GRANT"
)

type compiledGrant struct {
	pattern string
	glob    glob.Glob
}

// Enforcer checks plugin capabilities. Plugins without explicit grants fall
// back to the default grants, which are empty until SetDefault is called.
//
// Enforcer is safe for concurrent use. The zero value denies everything.
type Enforcer struct {
	mu       sync.RWMutex
	grants   map[string][]compiledGrant
	defaults []compiledGrant
}

// NewEnforcer creates an enforcer with no grants.
func NewEnforcer() *Enforcer {
	return &Enforcer{grants: make(map[string][]compiledGrant)}
}

// SetGrants replaces the grants of one plugin. Either every pattern compiles
// and the grants are replaced, or nothing changes.
func (e *Enforcer) SetGrants(plugin string, patterns []string) error {
	if plugin == "" {
		return oops.In("capability").Code(CodeInvalidGrant).Errorf("plugin name cannot be empty")
	}
	compiled, err := compile(patterns)
	if err != nil {
		return oops.In("capability").With("plugin", plugin).Wrap(err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.grants == nil {
		e.grants = make(map[string][]compiledGrant)
	}
	e.grants[plugin] = compiled
	return nil
}

// SetDefault replaces the grants used for plugins that have none of their own.
func (e *Enforcer) SetDefault(patterns []string) error {
	compiled, err := compile(patterns)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.defaults = compiled
	return nil
}

// RemoveGrants drops a plugin's own grants; it falls back to the defaults.
func (e *Enforcer) RemoveGrants(plugin string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.grants, plugin)
}

// Grants returns the patterns that apply to plugin.
func (e *Enforcer) Grants(plugin string) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	grants, ok := e.grants[plugin]
	if !ok {
		grants = e.defaults
	}
	patterns := make([]string, len(grants))
	for i, g := range grants {
		patterns[i] = g.pattern
	}
	return patterns
}

// Check reports whether plugin holds capability. Empty names never match.
func (e *Enforcer) Check(plugin, capability string) bool {
	if plugin == "" || capability == "" {
		return false
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	grants, ok := e.grants[plugin]
	if !ok {
		grants = e.defaults
	}
	for _, g := range grants {
		if g.glob.Match(capability) {
			return true
		}
	}
	return false
}

func compile(patterns []string) ([]compiledGrant, error) {
	compiled := make([]compiledGrant, len(patterns))
	for i, pattern := range patterns {
		if pattern == "" {
			return nil, oops.In("capability").Code(CodeInvalidGrant).
				With("index", i).
				Errorf("empty capability pattern")
		}
		g, err := glob.Compile(pattern, '.')
		if err != nil {
			return nil, oops.In("capability").Code(CodeInvalidGrant).
				With("index", i).
				With("pattern", pattern).
				Wrapf(err, "compile capability pattern")
		}
		compiled[i] = compiledGrant{pattern: pattern, glob: g}
	}
	return compiled, nil
}
