// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package hostfunc provides the host table that plugin code calls back into.
//
// Every function runs on the runtime actor's goroutine. None of them may wait
// on the actor: host services hand slow work to their own goroutines.
//
//nolint:gocritic // captLocal: L is the idiomatic name for lua.LState
package hostfunc

import (
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	lua "github.com/yuin/gopher-lua"

	plugins "github.com/holomush/plugbridge/internal/plugin"
	"github.com/holomush/plugbridge/internal/plugin/capability"
)

// TableName is the global name plugin code sees the host table under.
const TableName = "host"

// Functions builds per-plugin host tables.
type Functions struct {
	services plugins.Services
	store    plugins.KVStore
	enforcer *capability.Enforcer
	hooks    Hooks
	logger   *slog.Logger
	timeout  time.Duration
}

// Option configures Functions.
type Option func(*Functions)

// WithEnforcer gates host functions behind plugin capabilities. Without an
// enforcer every function is allowed.
func WithEnforcer(e *capability.Enforcer) Option {
	return func(f *Functions) {
		f.enforcer = e
	}
}

// WithHooks sets the receiver of event listener registrations.
func WithHooks(h Hooks) Option {
	return func(f *Functions) {
		f.hooks = h
	}
}

// WithLogger sets the logger that plugin log calls and host failures go to.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Functions) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithCallTimeout bounds each host service call.
func WithCallTimeout(d time.Duration) Option {
	return func(f *Functions) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// New creates host functions over the given services and store. Either may be
// nil; the functions that need them then return an error to plugin code.
func New(services plugins.Services, store plugins.KVStore, opts ...Option) *Functions {
	f := &Functions{
		services: services,
		store:    store,
		logger:   slog.Default(),
		timeout:  defaultCallTimeout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Table builds the host table for one plugin. The plugin key namespaces the
// key-value store and identifies the plugin to the enforcer.
func (f *Functions) Table(L *lua.LState, plugin string) *lua.LTable {
	mod := L.NewTable()
	set := func(name string, fn lua.LGFunction) {
		L.SetField(mod, name, L.NewFunction(fn))
	}

	set("log", f.logFn(plugin))
	set("new_request_id", newRequestIDFn)

	set("send_message", f.wrap(plugin, capability.PlayerMessage, f.sendMessageFn(plugin)))
	set("get_abilities", f.wrap(plugin, capability.AbilitiesRead, f.getAbilitiesFn(plugin)))
	set("set_abilities", f.wrap(plugin, capability.AbilitiesWrite, f.setAbilitiesFn(plugin)))
	set("get_location", f.wrap(plugin, capability.PlayerLocation, f.getLocationFn(plugin)))
	set("play_sound", f.wrap(plugin, capability.PlayerSound, f.playSoundFn(plugin)))
	set("play_entity_sound", f.wrap(plugin, capability.PlayerSound, f.playEntitySoundFn(plugin)))
	set("get_world", f.wrap(plugin, capability.WorldRead, f.getWorldFn(plugin)))
	set("get_registry", f.wrap(plugin, capability.RegistryRead, f.getRegistryFn(plugin)))

	set("register_event", f.wrap(plugin, capability.EventListen, f.registerEventFn(plugin)))
	set("call_event", f.wrap(plugin, capability.EventCall, f.callEventFn(plugin)))

	set("kv_get", f.wrap(plugin, capability.KVRead, f.kvGetFn(plugin)))
	set("kv_set", f.wrap(plugin, capability.KVWrite, f.kvSetFn(plugin)))
	set("kv_delete", f.wrap(plugin, capability.KVWrite, f.kvDeleteFn(plugin)))
	return mod
}

func (f *Functions) wrap(plugin, capName string, fn lua.LGFunction) lua.LGFunction {
	if f.enforcer == nil {
		return fn
	}
	return func(L *lua.LState) int {
		if !f.enforcer.Check(plugin, capName) {
			L.RaiseError("capability denied: %s requires %s", plugin, capName)
			return 0
		}
		return fn(L)
	}
}

func (f *Functions) logFn(plugin string) lua.LGFunction {
	return func(L *lua.LState) int {
		level := L.CheckString(1)
		message := L.CheckString(2)

		logger := f.logger.With("plugin", plugin)
		switch level {
		case "debug":
			logger.Debug(message)
		case "info":
			logger.Info(message)
		case "warn":
			logger.Warn(message)
		case "error":
			logger.Error(message)
		default:
			L.ArgError(1, "level must be one of debug, info, warn, error")
		}
		return 0
	}
}

func newRequestIDFn(L *lua.LState) int {
	L.Push(lua.LString(ulid.Make().String()))
	return 1
}

func (f *Functions) kvGetFn(plugin string) lua.LGFunction {
	return func(L *lua.LState) int {
		key := L.CheckString(1)
		if f.store == nil {
			return pushError(L, "kv store not available")
		}

		ctx, cancel := f.callContext(L)
		defer cancel()
		value, err := f.store.Get(ctx, plugin, key)
		if err != nil {
			return pushError(L, f.sanitize(plugin, "kv_get", err))
		}
		if value == nil {
			return pushSuccess(L, lua.LNil)
		}
		return pushSuccess(L, lua.LString(value))
	}
}

func (f *Functions) kvSetFn(plugin string) lua.LGFunction {
	return func(L *lua.LState) int {
		key := L.CheckString(1)
		value := L.CheckString(2)
		if f.store == nil {
			return pushError(L, "kv store not available")
		}

		ctx, cancel := f.callContext(L)
		defer cancel()
		if err := f.store.Set(ctx, plugin, key, []byte(value)); err != nil {
			return pushError(L, f.sanitize(plugin, "kv_set", err))
		}
		return pushSuccess(L, lua.LTrue)
	}
}

func (f *Functions) kvDeleteFn(plugin string) lua.LGFunction {
	return func(L *lua.LState) int {
		key := L.CheckString(1)
		if f.store == nil {
			return pushError(L, "kv store not available")
		}

		ctx, cancel := f.callContext(L)
		defer cancel()
		if err := f.store.Delete(ctx, plugin, key); err != nil {
			return pushError(L, f.sanitize(plugin, "kv_delete", err))
		}
		return pushSuccess(L, lua.LTrue)
	}
}
