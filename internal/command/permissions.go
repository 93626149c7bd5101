// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package command

import (
	"log/slog"
	"sync"

	"github.com/gobwas/glob"
	"github.com/google/uuid"
	"github.com/samber/oops"

	plugins "github.com/holomush/plugbridge/internal/plugin"
	pluginsdk "github.com/holomush/plugbridge/pkg/plugin"
)

// OpChecker reports whether a player is a server operator.
type OpChecker interface {
	IsOp(player uuid.UUID) bool
}

// Permissions decides whether a sender holds a permission.
//
// The console holds every permission. A player holds a permission when one
// of their grants matches it; grants are gobwas/glob patterns with '.' as
// the separator, so "greeter.*" matches "greeter.greet". Otherwise the
// permission's registered default applies. Unregistered permissions
// default to op.
type Permissions struct {
	mu       sync.RWMutex
	defaults map[string]plugins.PermissionDefault
	grants   map[uuid.UUID][]glob.Glob
	ops      OpChecker
	logger   *slog.Logger
}

// NewPermissions creates an empty permission set. ops may be nil, in which
// case no player is an operator.
func NewPermissions(ops OpChecker, logger *slog.Logger) *Permissions {
	if logger == nil {
		logger = slog.Default()
	}
	return &Permissions{
		defaults: make(map[string]plugins.PermissionDefault),
		grants:   make(map[uuid.UUID][]glob.Glob),
		ops:      ops,
		logger:   logger,
	}
}

// Register records a permission and its default. Registering a permission
// again with a different default keeps the first one.
func (p *Permissions) Register(name string, def plugins.PermissionDefault) error {
	if err := ValidatePermissionName(name); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.defaults[name]; ok {
		if existing != def {
			p.logger.Warn("permission already registered with a different default",
				"permission", name,
				"default", existing.String(),
				"ignored", def.String())
		}
		return nil
	}
	p.defaults[name] = def
	return nil
}

// Grant replaces a player's grants. Either every pattern compiles or
// nothing changes.
func (p *Permissions) Grant(player uuid.UUID, patterns ...string) error {
	compiled := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern, '.')
		if err != nil {
			return oops.Code(CodeInvalidPermission).
				With("player", player.String()).
				With("pattern", pattern).
				Wrapf(err, "invalid permission grant")
		}
		compiled = append(compiled, g)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.grants[player] = compiled
	return nil
}

// Has reports whether sender holds the permission. An empty permission is
// held by everyone.
func (p *Permissions) Has(sender pluginsdk.Sender, permission string) bool {
	if sender.IsConsole() || permission == "" {
		return true
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, g := range p.grants[sender.Player] {
		if g.Match(permission) {
			return true
		}
	}

	def, ok := p.defaults[permission]
	if !ok {
		def = plugins.PermissionOp
	}
	switch def {
	case plugins.PermissionAllow:
		return true
	case plugins.PermissionOp:
		return p.ops != nil && p.ops.IsOp(sender.Player)
	default:
		return false
	}
}
