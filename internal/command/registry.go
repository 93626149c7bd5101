// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package command

import (
	"log/slog"
	"slices"
	"strings"
	"sync"
)

// Registry manages command registration and lookup.
// It is thread-safe for concurrent access.
type Registry struct {
	commands map[string]Entry
	mu       sync.RWMutex
	logger   *slog.Logger
}

// NewRegistry creates a new command registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		commands: make(map[string]Entry),
		logger:   logger,
	}
}

// Register adds a command to the registry.
// The first source to register a name keeps it: a registration from a
// different source is logged and rejected with a COMMAND_CONFLICT error.
// The same source may re-register a name to update it.
func (r *Registry) Register(entry Entry) error {
	if err := ValidateCommandName(entry.Name); err != nil {
		return err
	}
	entry.Name = strings.ToLower(strings.TrimSpace(entry.Name))

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.commands[entry.Name]; ok && existing.Source() != entry.Source() {
		r.logger.Warn("command conflict: keeping existing command",
			"command", entry.Name,
			"owner", existing.Source(),
			"rejected_source", entry.Source())
		return ErrCommandConflict(entry.Name, existing.Source(), entry.Source())
	}

	r.commands[entry.Name] = entry
	return nil
}

// Get retrieves a command by name, ignoring case.
func (r *Registry) Get(name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.commands[strings.ToLower(name)]
	return entry, ok
}

// All returns all registered commands sorted by name.
// The returned slice is a copy and safe to modify.
func (r *Registry) All() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]Entry, 0, len(r.commands))
	for _, e := range r.commands {
		entries = append(entries, e)
	}
	slices.SortFunc(entries, func(a, b Entry) int { return strings.Compare(a.Name, b.Name) })
	return entries
}
