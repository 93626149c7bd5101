// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//nolint:gocritic // captLocal: L is the idiomatic name for lua.LState
package hostfunc

import (
	"github.com/google/uuid"
	lua "github.com/yuin/gopher-lua"

	pluginsdk "github.com/holomush/plugbridge/pkg/plugin"
)

// Listener is one event callback registered by plugin code.
type Listener struct {
	Kind            pluginsdk.EventKind
	Priority        pluginsdk.Priority
	IgnoreCancelled bool
	Fn              *lua.LFunction
}

// Hooks receives listener registrations. The runtime implements it.
type Hooks interface {
	Listen(plugin string, l Listener) error
}

// EventTable renders an event for listeners. Listeners may set "cancelled"
// on cancellable events.
func EventTable(L *lua.LState, ev pluginsdk.Event) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("type", lua.LString(ev.Kind().String()))
	t.RawSetString("cancelled", lua.LFalse)

	var (
		player        uuid.UUID
		name, message string
	)
	switch e := ev.(type) {
	case pluginsdk.PlayerJoin:
		player, name, message = e.Player, e.Name, e.Message
	case pluginsdk.PlayerQuit:
		player, name, message = e.Player, e.Name, e.Message
	case pluginsdk.PlayerChat:
		player, name, message = e.Player, e.Name, e.Message
	default:
		return t
	}
	t.RawSetString("player", lua.LString(player.String()))
	t.RawSetString("name", lua.LString(name))
	t.RawSetString("message", lua.LString(message))
	return t
}

// eventFrom builds an event raised by plugin code.
func eventFrom(kind pluginsdk.EventKind, t *lua.LTable) (pluginsdk.Event, error) {
	var player uuid.UUID
	if raw := str(t, "player"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, err
		}
		player = id
	}
	name, message := str(t, "name"), str(t, "message")

	switch kind {
	case pluginsdk.EventPlayerJoin:
		return pluginsdk.PlayerJoin{Player: player, Name: name, Message: message}, nil
	case pluginsdk.EventPlayerQuit:
		return pluginsdk.PlayerQuit{Player: player, Name: name, Message: message}, nil
	case pluginsdk.EventPlayerChat:
		return pluginsdk.PlayerChat{Player: player, Name: name, Message: message}, nil
	default:
		return pluginsdk.Unsupported{Type: str(t, "type")}, nil
	}
}

// registerEventFn is register_event(type, fn[, priority[, ignore_cancelled]]).
// It returns false for event types the host cannot deliver.
func (f *Functions) registerEventFn(plugin string) lua.LGFunction {
	return func(L *lua.LState) int {
		typeName := L.CheckString(1)
		fn := L.CheckFunction(2)
		priority := pluginsdk.ParsePriority(L.OptString(3, "normal"))
		ignoreCancelled := L.OptBool(4, false)

		kind := pluginsdk.ParseEventKind(typeName)
		if kind == pluginsdk.EventUnsupported {
			f.logger.Warn("plugin registered a listener for an unsupported event",
				"plugin", plugin,
				"event", typeName)
			L.Push(lua.LFalse)
			return 1
		}
		if f.hooks == nil {
			return pushError(L, "event listeners not available")
		}

		l := Listener{Kind: kind, Priority: priority, IgnoreCancelled: ignoreCancelled, Fn: fn}
		if err := f.hooks.Listen(plugin, l); err != nil {
			return pushError(L, f.sanitize(plugin, "register_event", err))
		}
		if f.services != nil {
			f.services.Subscribe(plugin, kind, priority, kind.Cancellable())
		}
		return pushSuccess(L, lua.LTrue)
	}
}

// callEventFn is call_event(type, fields). The host delivers the event later;
// the result only says whether any plugin listens for it.
func (f *Functions) callEventFn(plugin string) lua.LGFunction {
	return func(L *lua.LState) int {
		typeName := L.CheckString(1)
		fields := L.OptTable(2, L.NewTable())
		if f.services == nil {
			return pushError(L, "host services not available")
		}

		kind := pluginsdk.ParseEventKind(typeName)
		if kind == pluginsdk.EventUnsupported {
			f.logger.Warn("plugin raised an unsupported event", "plugin", plugin, "event", typeName)
			return pushSuccess(L, lua.LFalse)
		}
		ev, err := eventFrom(kind, fields)
		if err != nil {
			return pushError(L, "invalid player id: "+err.Error())
		}

		ctx, cancel := f.callContext(L)
		defer cancel()
		return pushSuccess(L, lua.LBool(f.services.CallEvent(ctx, ev)))
	}
}
