// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	pluginsdk "github.com/holomush/plugbridge/pkg/plugin"
)

// Runtime is the embedded plugin runtime. Implementations are not safe for
// concurrent use: every method must be called from the single goroutine that
// called Attach.
type Runtime interface {
	// Attach prepares the runtime and installs the host callbacks. It is
	// called once, before any other method.
	Attach(ctx context.Context, cb *CallbackContext) error
	// CreateInstance loads one plugin and returns its handle.
	CreateInstance(ctx context.Context, req InstanceRequest) (Handle, error)
	Enable(ctx context.Context, h Handle) error
	Disable(ctx context.Context, h Handle) error
	// Listeners returns the event listeners the plugin has registered so far,
	// keyed by event type name.
	Listeners(h Handle) map[string]ListenerHandle
	// Dispatch runs a command line. It reports whether any plugin owned the command.
	Dispatch(ctx context.Context, sender pluginsdk.Sender, line string, loc *pluginsdk.Location) (bool, error)
	TabComplete(ctx context.Context, sender pluginsdk.Sender, line string, loc *pluginsdk.Location) ([]string, error)
	// FireEvent delivers an event to one plugin's listeners and reports
	// whether a listener cancelled it.
	FireEvent(ctx context.Context, event pluginsdk.Event, plugin string) (bool, error)
	// Detach releases the runtime. No method may be called afterwards.
	Detach(ctx context.Context) error
}

// InstanceRequest is everything the runtime needs to instantiate one plugin.
type InstanceRequest struct {
	Key  string
	Name string
	Path string
	Main string
	// Classpath is the ';'-joined artifact paths of joined dependencies.
	Classpath string
	// Libraries is the '\n'-joined library coordinate list.
	Libraries  string
	DataFolder string
	Commands   map[string]CommandSpec
}

// CallbackContext is built once when the runtime is attached and handed to
// every boundary call site that needs to reach back into the host.
type CallbackContext struct {
	Services Services
	Store    KVStore
	Logger   *slog.Logger
}

// Services are the host operations the embedded runtime may call back into.
// They run on the actor goroutine, so implementations must never wait on the
// actor; slow work is handed off to the host's own goroutines.
type Services interface {
	SendMessage(ctx context.Context, to pluginsdk.Sender, message string)
	Abilities(ctx context.Context, player uuid.UUID) (pluginsdk.Abilities, error)
	SetAbilities(ctx context.Context, player uuid.UUID, abilities pluginsdk.Abilities) error
	Location(ctx context.Context, player uuid.UUID) (pluginsdk.Location, error)
	PlaySound(ctx context.Context, player uuid.UUID, at pluginsdk.Vec3, sound pluginsdk.Sound) error
	PlayEntitySound(ctx context.Context, player, entity uuid.UUID, sound pluginsdk.Sound) error
	// World returns the id of the world an entity is in.
	World(ctx context.Context, entity uuid.UUID) (uuid.UUID, error)
	// Registry returns a named data registry. ok is false for unknown names.
	Registry(ctx context.Context, name string) (registry pluginsdk.Registry, ok bool)
	// Subscribe asks the host to deliver events of kind to plugin.
	Subscribe(plugin string, kind pluginsdk.EventKind, priority pluginsdk.Priority, blocking bool)
	// CallEvent raises an event from plugin code. It returns without waiting
	// for listeners and reports whether any plugin listens for it.
	CallEvent(ctx context.Context, event pluginsdk.Event) bool
}

// KVStore provides namespaced key-value storage for plugins.
type KVStore interface {
	Get(ctx context.Context, namespace, key string) ([]byte, error)
	Set(ctx context.Context, namespace, key string, value []byte) error
	Delete(ctx context.Context, namespace, key string) error
}

// PermissionDefault decides who holds a permission nobody was granted explicitly.
type PermissionDefault uint8

// Permission defaults.
const (
	PermissionAllow PermissionDefault = iota
	PermissionOp
	PermissionDeny
)

// String returns the default's name.
func (d PermissionDefault) String() string {
	switch d {
	case PermissionAllow:
		return "allow"
	case PermissionOp:
		return "op"
	case PermissionDeny:
		return "deny"
	default:
		return "unknown"
	}
}

// HandlerRef names the plugin command a host command routes back to.
type HandlerRef struct {
	Plugin  string
	Command string
}

// CommandRouter is the host-side command system that plugin commands are
// registered with.
type CommandRouter interface {
	RegisterPermission(name string, def PermissionDefault) error
	RegisterCommand(name, description, permission string, handler HandlerRef) error
}
