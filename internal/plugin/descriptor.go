// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

// Descriptor file names inside a plugin artifact.
const (
	PrimaryDescriptorFile = "paper-plugin.yml"
	LegacyDescriptorFile  = "plugin.yml"
)

// LoadOrder is the ordering flag on a primary-dialect dependency, read from
// the dependency's point of view: Before means the dependency loads first.
type LoadOrder string

// Load orders.
const (
	LoadOmit   LoadOrder = "OMIT"
	LoadBefore LoadOrder = "BEFORE"
	LoadAfter  LoadOrder = "AFTER"
)

// UnmarshalYAML accepts the order names case-insensitively.
func (o *LoadOrder) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err //nolint:wrapcheck // yaml reports position
	}
	switch LoadOrder(strings.ToUpper(strings.TrimSpace(raw))) {
	case LoadBefore:
		*o = LoadBefore
	case LoadAfter:
		*o = LoadAfter
	case LoadOmit, "":
		*o = LoadOmit
	default:
		return fmt.Errorf("line %d: load must be BEFORE, AFTER or OMIT, got %q", node.Line, raw)
	}
	return nil
}

// Dependency is one entry of a primary descriptor's dependency map.
type Dependency struct {
	Load          LoadOrder `yaml:"load,omitempty" json:"load,omitempty" jsonschema:"enum=BEFORE,enum=AFTER,enum=OMIT,enum=before,enum=after,enum=omit"`
	Required      *bool     `yaml:"required,omitempty" json:"required,omitempty"`
	JoinClasspath *bool     `yaml:"join-classpath,omitempty" json:"join-classpath,omitempty"`
}

// IsRequired defaults to true.
func (d Dependency) IsRequired() bool { return d.Required == nil || *d.Required }

// JoinsClasspath defaults to true.
func (d Dependency) JoinsClasspath() bool { return d.JoinClasspath == nil || *d.JoinClasspath }

// Dependencies splits primary-dialect dependencies by phase.
type Dependencies struct {
	Bootstrap map[string]Dependency `yaml:"bootstrap,omitempty" json:"bootstrap,omitempty"`
	Server    map[string]Dependency `yaml:"server,omitempty" json:"server,omitempty"`
}

// PrimaryDescriptor is a parsed paper-plugin.yml.
type PrimaryDescriptor struct {
	Name         string        `yaml:"name" json:"name"`
	Version      string        `yaml:"version" json:"version"`
	Main         string        `yaml:"main" json:"main"`
	Description  string        `yaml:"description,omitempty" json:"description,omitempty"`
	Author       string        `yaml:"author,omitempty" json:"author,omitempty"`
	Authors      []string      `yaml:"authors,omitempty" json:"authors,omitempty"`
	Contributors []string      `yaml:"contributors,omitempty" json:"contributors,omitempty"`
	Website      string        `yaml:"website,omitempty" json:"website,omitempty"`
	APIVersion   string        `yaml:"api-version,omitempty" json:"api-version,omitempty"`
	Bootstrapper string        `yaml:"bootstrapper,omitempty" json:"bootstrapper,omitempty"`
	Loader       string        `yaml:"loader,omitempty" json:"loader,omitempty"`
	Dependencies *Dependencies `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	Provides     []string      `yaml:"provides,omitempty" json:"provides,omitempty"`
}

// LegacyDescriptor is a parsed plugin.yml.
type LegacyDescriptor struct {
	Name        string                 `yaml:"name" json:"name"`
	Version     string                 `yaml:"version" json:"version"`
	Main        string                 `yaml:"main" json:"main"`
	Description string                 `yaml:"description,omitempty" json:"description,omitempty"`
	Author      string                 `yaml:"author,omitempty" json:"author,omitempty"`
	Authors     []string               `yaml:"authors,omitempty" json:"authors,omitempty"`
	Website     string                 `yaml:"website,omitempty" json:"website,omitempty"`
	APIVersion  string                 `yaml:"api-version,omitempty" json:"api-version,omitempty"`
	Load        string                 `yaml:"load,omitempty" json:"load,omitempty" jsonschema:"enum=STARTUP,enum=POSTWORLD"`
	Prefix      string                 `yaml:"prefix,omitempty" json:"prefix,omitempty"`
	Depend      []string               `yaml:"depend,omitempty" json:"depend,omitempty"`
	SoftDepend  []string               `yaml:"softdepend,omitempty" json:"softdepend,omitempty"`
	LoadBefore  []string               `yaml:"loadbefore,omitempty" json:"loadbefore,omitempty"`
	Provides    []string               `yaml:"provides,omitempty" json:"provides,omitempty"`
	Libraries   []string               `yaml:"libraries,omitempty" json:"libraries,omitempty"`
	Commands    map[string]CommandSpec `yaml:"commands,omitempty" json:"commands,omitempty"`
}

// Declaration is one dialect-neutral dependency declaration.
type Declaration struct {
	Name          string
	Required      bool
	Load          LoadOrder
	JoinClasspath bool
}

// maxNameLength is the maximum allowed length for plugin names.
const maxNameLength = 64

// namePattern validates plugin names: letters, digits, spaces, underscores,
// dots and hyphens.
var namePattern = regexp.MustCompile(`^[A-Za-z0-9 _.-]+$`)

// mainPattern validates a dotted entry point reference such as com.example.Main.
var mainPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// ParsePrimary parses and validates a paper-plugin.yml document.
func ParsePrimary(data []byte) (*PrimaryDescriptor, error) {
	var d PrimaryDescriptor
	if err := decode(data, &d); err != nil {
		return nil, err
	}
	if err := validateIdentity(d.Name, d.Version, d.Main); err != nil {
		return nil, err
	}
	return &d, nil
}

// ParseLegacy parses and validates a plugin.yml document.
func ParseLegacy(data []byte) (*LegacyDescriptor, error) {
	var d LegacyDescriptor
	if err := decode(data, &d); err != nil {
		return nil, err
	}
	if err := validateIdentity(d.Name, d.Version, d.Main); err != nil {
		return nil, err
	}
	return &d, nil
}

func decode(data []byte, out any) error {
	if len(strings.TrimSpace(string(data))) == 0 {
		return oops.In("plugin").Errorf("descriptor data is empty")
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return oops.In("plugin").Wrapf(err, "invalid YAML")
	}
	return nil
}

func validateIdentity(name, version, main string) error {
	name = strings.TrimSpace(name)
	if name == "" || !namePattern.MatchString(name) {
		return oops.In("plugin").With("name", name).
			Errorf("name %q must contain only letters, digits, spaces, '_', '.' or '-'", name)
	}
	if len(name) > maxNameLength {
		return oops.In("plugin").With("name", name).
			Errorf("name must be %d characters or less, got %d", maxNameLength, len(name))
	}
	if strings.TrimSpace(version) == "" {
		return oops.In("plugin").With("name", name).Errorf("version is required")
	}
	if !mainPattern.MatchString(main) {
		return oops.In("plugin").With("name", name).With("main", main).
			Errorf("main %q must be a dotted identifier", main)
	}
	return nil
}

// Declarations flattens the bootstrap and server dependency maps. A name in
// both phases is merged: required or joined in either phase wins, and an
// explicit order beats OMIT. The result is sorted by name.
func (d *PrimaryDescriptor) Declarations() []Declaration {
	if d.Dependencies == nil {
		return nil
	}
	merged := map[string]Declaration{}
	add := func(phase map[string]Dependency) {
		for name, dep := range phase {
			decl, seen := merged[name]
			if !seen {
				decl = Declaration{Name: name, Load: LoadOmit}
			}
			decl.Required = decl.Required || dep.IsRequired()
			decl.JoinClasspath = decl.JoinClasspath || dep.JoinsClasspath()
			if dep.Load != "" && dep.Load != LoadOmit {
				decl.Load = dep.Load
			}
			merged[name] = decl
		}
	}
	add(d.Dependencies.Bootstrap)
	add(d.Dependencies.Server)

	out := make([]Declaration, 0, len(merged))
	for _, decl := range merged {
		out = append(out, decl)
	}
	slices.SortFunc(out, func(a, b Declaration) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// SkipsLibraries reports whether the plugin resolves its own libraries through
// a custom loader, in which case legacy library declarations are ignored.
func (d *PrimaryDescriptor) SkipsLibraries() bool {
	return d != nil && strings.TrimSpace(d.Loader) != ""
}
