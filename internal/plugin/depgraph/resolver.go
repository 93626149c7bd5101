// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package depgraph computes the plugin load order.
//
// Ordering is derived from hard and soft dependencies plus load-before and
// load-after hints. Edges are rebuilt on every run and discarded when the run
// returns; nothing is written back to the plugins except their state.
//
// A dependency edge takes precedence over an ordering hint that contradicts
// it. When plugin p depends on d and also asks to load before d, the hint is
// dropped and d still loads first.
package depgraph

import (
	"container/heap"
	"log/slog"
	"maps"
	"slices"

	plugins "github.com/holomush/plugbridge/internal/plugin"
)

// Graph is the registry view the resolver works on.
type Graph interface {
	Snapshot() []plugins.Plugin
	Transition(key string, to plugins.State) bool
}

// edge kinds, used only for logging and hint precedence.
const (
	edgeDependency = iota
	edgeHint
)

// resolution is the transient state of one ComputeOrder run.
type resolution struct {
	logger   *slog.Logger
	active   map[string]*plugins.Plugin
	provides map[string]string
	// adj[from][to] records the kind of edge from -> to.
	adj      map[string]map[string]int
	inDegree map[string]int
}

// ComputeOrder returns every active plugin key in load order. Plugins whose
// hard dependencies cannot be resolved are transitioned to Errored and left out.
// Plugins caught in a cycle are appended in lexicographic order after the
// ones that could be ordered. It never fails.
func ComputeOrder(g Graph, logger *slog.Logger) []string {
	if logger == nil {
		logger = slog.Default()
	}

	snapshot := g.Snapshot()
	r := &resolution{
		logger:   logger,
		active:   make(map[string]*plugins.Plugin, len(snapshot)),
		provides: make(map[string]string),
		adj:      make(map[string]map[string]int),
		inDegree: make(map[string]int),
	}
	for i := range snapshot {
		p := &snapshot[i]
		if p.State == plugins.StateErrored {
			continue
		}
		r.active[p.Key] = p
	}

	keys := slices.Sorted(maps.Keys(r.active))
	r.buildProvides(keys)
	keys = r.dropMissingDependencies(g, keys)
	r.buildEdges(keys)
	return r.sort(keys)
}

// buildProvides maps every provided alias to the first plugin, in key order,
// that declares it.
func (r *resolution) buildProvides(keys []string) {
	for _, key := range keys {
		for _, alias := range r.active[key].Provides.Sorted() {
			if owner, taken := r.provides[alias]; taken {
				r.logger.Warn("provided name already claimed, ignoring",
					"plugin", key,
					"provides", alias,
					"owner", owner)
				continue
			}
			r.provides[alias] = key
		}
	}
}

func (r *resolution) resolve(name string) (string, bool) {
	if _, ok := r.active[name]; ok {
		return name, true
	}
	key, ok := r.provides[name]
	if !ok {
		return "", false
	}
	_, ok = r.active[key]
	return key, ok
}

// dropMissingDependencies removes plugins with an unresolvable hard dependency
// and marks them Errored. Resolution is checked against the active set as it
// was before any removal, so failures never cascade within one run.
func (r *resolution) dropMissingDependencies(g Graph, keys []string) []string {
	var missing []string
	for _, key := range keys {
		for _, dep := range r.active[key].Depends.Sorted() {
			if _, ok := r.resolve(dep); ok {
				continue
			}
			r.logger.Error("plugin missing required dependency",
				"plugin", key,
				"dependency", dep,
				"error", plugins.ErrMissingDependency(key, dep))
			missing = append(missing, key)
			break
		}
	}

	for _, key := range missing {
		g.Transition(key, plugins.StateErrored)
		delete(r.active, key)
	}
	return slices.DeleteFunc(keys, func(k string) bool { return slices.Contains(missing, k) })
}

func (r *resolution) buildEdges(keys []string) {
	for _, key := range keys {
		r.inDegree[key] = 0
	}

	// Dependency edges first so hints can be checked against them.
	for _, key := range keys {
		p := r.active[key]
		for _, dep := range p.Depends.Sorted() {
			r.addEdge(dep, key, edgeDependency)
		}
		for _, dep := range p.SoftDepends.Sorted() {
			r.addEdge(dep, key, edgeDependency)
		}
	}
	for _, key := range keys {
		p := r.active[key]
		for _, target := range p.LoadBefore.Sorted() {
			r.addEdge(key, target, edgeHint)
		}
		for _, target := range p.LoadAfter.Sorted() {
			r.addEdge(target, key, edgeHint)
		}
	}
}

// addEdge records from -> to when both names resolve inside the active set.
func (r *resolution) addEdge(fromName, toName string, kind int) {
	from, ok := r.resolve(fromName)
	if !ok {
		return
	}
	to, ok := r.resolve(toName)
	if !ok || from == to {
		return
	}
	if _, exists := r.adj[from][to]; exists {
		return
	}
	if kind == edgeHint {
		if reverse, ok := r.adj[to][from]; ok && reverse == edgeDependency {
			r.logger.Debug("ignoring load hint that contradicts a dependency",
				"before", from,
				"after", to)
			return
		}
	}

	if r.adj[from] == nil {
		r.adj[from] = make(map[string]int)
	}
	r.adj[from][to] = kind
	r.inDegree[to]++
}

// sort runs Kahn's algorithm, always emitting the smallest ready key.
func (r *resolution) sort(keys []string) []string {
	ready := &keyHeap{}
	for _, key := range keys {
		if r.inDegree[key] == 0 {
			heap.Push(ready, key)
		}
	}

	order := make([]string, 0, len(keys))
	emitted := make(map[string]bool, len(keys))
	for ready.Len() > 0 {
		key := heap.Pop(ready).(string) //nolint:forcetypeassert // keyHeap holds strings
		order = append(order, key)
		emitted[key] = true
		for _, next := range slices.Sorted(maps.Keys(r.adj[key])) {
			r.inDegree[next]--
			if r.inDegree[next] == 0 {
				heap.Push(ready, next)
			}
		}
	}

	if len(order) == len(keys) {
		return order
	}

	// keys is sorted, so the remainder is too.
	var stuck []string
	for _, key := range keys {
		if !emitted[key] {
			stuck = append(stuck, key)
		}
	}
	r.logger.Warn("dependency cycle detected, appending remaining plugins in name order",
		"plugins", stuck)
	return append(order, stuck...)
}
