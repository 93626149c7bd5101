// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

import (
	"maps"

	"github.com/samber/oops"
)

// FromDescriptors builds a Registered plugin from one or both parsed
// descriptors of the artifact at path. When both are present the primary
// descriptor supplies identity and dependencies, and the legacy descriptor
// contributes commands and libraries.
func FromDescriptors(path string, primary *PrimaryDescriptor, legacy *LegacyDescriptor) (*Plugin, error) {
	var p *Plugin
	switch {
	case primary != nil:
		p = New(primary.Name, primary.Version, primary.Main, path, DialectPrimary)
		applyPrimary(p, primary)
	case legacy != nil:
		p = New(legacy.Name, legacy.Version, legacy.Main, path, DialectLegacy)
		applyLegacyDependencies(p, legacy)
	default:
		return nil, oops.In("plugin").With("path", path).Errorf("no descriptor supplied")
	}
	p.Primary = primary
	p.Legacy = legacy

	if legacy != nil {
		maps.Copy(p.Commands, legacy.Commands)
		if !primary.SkipsLibraries() {
			for _, lib := range legacy.Libraries {
				p.AddLibrary(lib)
			}
		}
	}
	return p, nil
}

// applyPrimary maps primary declarations onto the dependency sets.
//
//	required            -> Depends
//	optional, not AFTER -> SoftDepends
//	load BEFORE         -> LoadAfter (the dependency goes first)
//	load AFTER          -> LoadBefore
//	join-classpath      -> ClasspathDeps
func applyPrimary(p *Plugin, d *PrimaryDescriptor) {
	for _, name := range d.Provides {
		p.Provides.Add(name)
	}
	for _, decl := range d.Declarations() {
		switch {
		case decl.Required:
			p.Depends.Add(decl.Name)
		case decl.Load != LoadAfter:
			p.SoftDepends.Add(decl.Name)
		}
		switch decl.Load {
		case LoadBefore:
			p.LoadAfter.Add(decl.Name)
		case LoadAfter:
			p.LoadBefore.Add(decl.Name)
		case LoadOmit:
		}
		if decl.JoinClasspath {
			p.ClasspathDeps.Add(decl.Name)
		}
	}
	// A name that is both hard and soft is hard.
	for key := range p.Depends {
		delete(p.SoftDepends, key)
	}
}

func applyLegacyDependencies(p *Plugin, d *LegacyDescriptor) {
	for _, name := range d.Provides {
		p.Provides.Add(name)
	}
	for _, name := range d.Depend {
		p.Depends.Add(name)
		p.ClasspathDeps.Add(name)
	}
	for _, name := range d.SoftDepend {
		p.SoftDepends.Add(name)
		p.ClasspathDeps.Add(name)
	}
	for _, name := range d.LoadBefore {
		p.LoadBefore.Add(name)
	}
	for key := range p.Depends {
		delete(p.SoftDepends, key)
	}
}
