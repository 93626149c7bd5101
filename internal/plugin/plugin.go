// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package plugin holds the plugin entity, its lifecycle state machine, the
// registry that owns every discovered plugin, and the loader that turns plugin
// artifacts into registry entries.
package plugin

import (
	"maps"
	"path/filepath"
	"slices"
	"strings"
)

// Dialect identifies which descriptor schema a plugin was declared with.
type Dialect uint8

// Descriptor dialects.
const (
	DialectPrimary Dialect = iota
	DialectLegacy
)

// String returns the dialect name.
func (d Dialect) String() string {
	switch d {
	case DialectPrimary:
		return "primary"
	case DialectLegacy:
		return "legacy"
	default:
		return "unknown"
	}
}

// State is a plugin lifecycle state.
//
//	Registered -> Loaded -> Enabled <-> Disabled
//	Registered | Loaded | Enabled -> Errored
type State uint8

// Lifecycle states.
const (
	StateRegistered State = iota
	StateLoaded
	StateEnabled
	StateDisabled
	StateErrored
)

// String returns the lower-case state name.
func (s State) String() string {
	switch s {
	case StateRegistered:
		return "registered"
	case StateLoaded:
		return "loaded"
	case StateEnabled:
		return "enabled"
	case StateDisabled:
		return "disabled"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Handle is an opaque reference to a plugin instance inside the runtime.
type Handle any

// ListenerHandle is an opaque reference to a registered event listener.
type ListenerHandle any

// CommandSpec describes one command a plugin declares.
type CommandSpec struct {
	Description       string   `yaml:"description,omitempty" json:"description,omitempty"`
	Usage             string   `yaml:"usage,omitempty" json:"usage,omitempty"`
	Permission        string   `yaml:"permission,omitempty" json:"permission,omitempty"`
	PermissionMessage string   `yaml:"permission-message,omitempty" json:"permission-message,omitempty"`
	Aliases           []string `yaml:"aliases,omitempty" json:"aliases,omitempty"`
}

// Set is a set of normalized names.
type Set map[string]struct{}

// NewSet builds a set from names, normalizing each one. Blank names are dropped.
func NewSet(names ...string) Set {
	s := make(Set, len(names))
	for _, n := range names {
		s.Add(n)
	}
	return s
}

// Add normalizes and inserts a name.
func (s Set) Add(name string) {
	if key := NormalizeName(name); key != "" {
		s[key] = struct{}{}
	}
}

// Has reports whether the normalized name is present.
func (s Set) Has(name string) bool {
	_, ok := s[NormalizeName(name)]
	return ok
}

// Sorted returns the members in lexicographic order.
func (s Set) Sorted() []string {
	return slices.Sorted(maps.Keys(s))
}

// NormalizeName returns the registry key for a plugin or dependency name.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// QualifiedLabel returns the "<plugin>:<command>" label a command is always
// reachable by. Runs of whitespace in the key become a single '_', so the
// label stays one token.
func QualifiedLabel(key, command string) string {
	return strings.Join(strings.Fields(key), "_") + ":" + strings.ToLower(strings.TrimSpace(command))
}

// Plugin is one loaded descriptor. Dependency edges are never stored here;
// the resolver derives them on every run.
type Plugin struct {
	Name    string
	Key     string
	Version string
	Main    string
	Dialect Dialect

	Primary *PrimaryDescriptor
	Legacy  *LegacyDescriptor

	Path       string
	DataFolder string

	Provides      Set
	Depends       Set
	SoftDepends   Set
	LoadBefore    Set
	LoadAfter     Set
	ClasspathDeps Set
	// Libraries keep their declared casing and order.
	Libraries []string

	Commands  map[string]CommandSpec
	Listeners map[string]ListenerHandle
	Handle    Handle
	State     State
}

// New creates a Registered plugin with empty dependency metadata.
func New(name, version, main, path string, dialect Dialect) *Plugin {
	return &Plugin{
		Name:          strings.TrimSpace(name),
		Key:           NormalizeName(name),
		Version:       version,
		Main:          main,
		Dialect:       dialect,
		Path:          path,
		DataFolder:    DataFolderFor(path, name),
		Provides:      Set{},
		Depends:       Set{},
		SoftDepends:   Set{},
		LoadBefore:    Set{},
		LoadAfter:     Set{},
		ClasspathDeps: Set{},
		Commands:      map[string]CommandSpec{},
		Listeners:     map[string]ListenerHandle{},
		State:         StateRegistered,
	}
}

// DataFolderFor returns the data directory for a plugin artifact: a sibling
// directory named after the plugin.
func DataFolderFor(path, name string) string {
	if path == "" {
		return ""
	}
	return filepath.Join(filepath.Dir(path), strings.TrimSpace(name))
}

// AddLibrary appends a library coordinate unless an identical one is present.
func (p *Plugin) AddLibrary(coordinate string) {
	coordinate = strings.TrimSpace(coordinate)
	if coordinate == "" || slices.Contains(p.Libraries, coordinate) {
		return
	}
	p.Libraries = append(p.Libraries, coordinate)
}

// Clone returns a deep copy. Descriptors are shared; they are never mutated
// after parsing.
func (p *Plugin) Clone() Plugin {
	c := *p
	c.Provides = maps.Clone(p.Provides)
	c.Depends = maps.Clone(p.Depends)
	c.SoftDepends = maps.Clone(p.SoftDepends)
	c.LoadBefore = maps.Clone(p.LoadBefore)
	c.LoadAfter = maps.Clone(p.LoadAfter)
	c.ClasspathDeps = maps.Clone(p.ClasspathDeps)
	c.Libraries = slices.Clone(p.Libraries)
	c.Commands = maps.Clone(p.Commands)
	c.Listeners = maps.Clone(p.Listeners)
	return c
}
