// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//nolint:gocritic // captLocal: L is the idiomatic name for lua.LState
package hostfunc

import (
	"strings"

	"github.com/google/uuid"
	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"

	pluginsdk "github.com/holomush/plugbridge/pkg/plugin"
)

// consoleID is how plugin code names the console sender.
const consoleID = "console"

// SenderValue renders a sender for plugin code: "console" or the player UUID.
func SenderValue(s pluginsdk.Sender) lua.LValue {
	if s.IsConsole() {
		return lua.LString(consoleID)
	}
	return lua.LString(s.Player.String())
}

// ParseSender reverses SenderValue.
func ParseSender(raw string) (pluginsdk.Sender, error) {
	if strings.EqualFold(raw, consoleID) {
		return pluginsdk.Console, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return pluginsdk.Sender{}, oops.In("hostfunc").With("sender", raw).Wrapf(err, "parse sender")
	}
	return pluginsdk.PlayerSender(id), nil
}

// LocationTable renders a location as {world, x, y, z[, yaw, pitch]}.
func LocationTable(L *lua.LState, loc pluginsdk.Location) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("world", lua.LString(loc.World.String()))
	t.RawSetString("x", lua.LNumber(loc.Position.X))
	t.RawSetString("y", lua.LNumber(loc.Position.Y))
	t.RawSetString("z", lua.LNumber(loc.Position.Z))
	if loc.Rotation != nil {
		t.RawSetString("yaw", lua.LNumber(loc.Rotation.Yaw))
		t.RawSetString("pitch", lua.LNumber(loc.Rotation.Pitch))
	}
	return t
}

func abilitiesTable(L *lua.LState, a pluginsdk.Abilities) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("invulnerable", lua.LBool(a.Invulnerable))
	t.RawSetString("flying", lua.LBool(a.Flying))
	t.RawSetString("allow_flying", lua.LBool(a.AllowFlying))
	t.RawSetString("creative", lua.LBool(a.Creative))
	t.RawSetString("allow_modify_world", lua.LBool(a.AllowModifyWorld))
	t.RawSetString("fly_speed", lua.LNumber(a.FlySpeed))
	t.RawSetString("walk_speed", lua.LNumber(a.WalkSpeed))
	return t
}

// abilitiesFrom overlays the fields present in t onto base.
func abilitiesFrom(t *lua.LTable, base pluginsdk.Abilities) pluginsdk.Abilities {
	return pluginsdk.Abilities{
		Invulnerable:     boolean(t, "invulnerable", base.Invulnerable),
		Flying:           boolean(t, "flying", base.Flying),
		AllowFlying:      boolean(t, "allow_flying", base.AllowFlying),
		Creative:         boolean(t, "creative", base.Creative),
		AllowModifyWorld: boolean(t, "allow_modify_world", base.AllowModifyWorld),
		FlySpeed:         float32(number(t, "fly_speed", float64(base.FlySpeed))),
		WalkSpeed:        float32(number(t, "walk_speed", float64(base.WalkSpeed))),
	}
}

func soundFrom(t *lua.LTable) pluginsdk.Sound {
	return pluginsdk.Sound{
		Name:     str(t, "name"),
		Category: str(t, "category"),
		Volume:   float32(number(t, "volume", 1)),
		Pitch:    float32(number(t, "pitch", 1)),
	}
}

func (f *Functions) sendMessageFn(_ string) lua.LGFunction {
	return func(L *lua.LState) int {
		to, err := ParseSender(L.CheckString(1))
		message := L.CheckString(2)
		if err != nil {
			return pushError(L, "invalid recipient: "+err.Error())
		}
		if f.services == nil {
			return pushError(L, "host services not available")
		}

		ctx, cancel := f.callContext(L)
		defer cancel()
		f.services.SendMessage(ctx, to, message)
		return pushSuccess(L, lua.LTrue)
	}
}

func (f *Functions) getAbilitiesFn(plugin string) lua.LGFunction {
	return func(L *lua.LState) int {
		id, ok := f.parsePlayer(L, 1, plugin, "get_abilities")
		if !ok {
			return 2
		}
		if f.services == nil {
			return pushError(L, "host services not available")
		}

		ctx, cancel := f.callContext(L)
		defer cancel()
		abilities, err := f.services.Abilities(ctx, id)
		if err != nil {
			return pushError(L, f.sanitize(plugin, "get_abilities", err))
		}
		return pushSuccess(L, abilitiesTable(L, abilities))
	}
}

// setAbilitiesFn applies a partial abilities table over the player's current
// abilities.
func (f *Functions) setAbilitiesFn(plugin string) lua.LGFunction {
	return func(L *lua.LState) int {
		id, ok := f.parsePlayer(L, 1, plugin, "set_abilities")
		if !ok {
			return 2
		}
		patch := L.CheckTable(2)
		if f.services == nil {
			return pushError(L, "host services not available")
		}

		ctx, cancel := f.callContext(L)
		defer cancel()
		current, err := f.services.Abilities(ctx, id)
		if err != nil {
			return pushError(L, f.sanitize(plugin, "set_abilities", err))
		}
		if err := f.services.SetAbilities(ctx, id, abilitiesFrom(patch, current)); err != nil {
			return pushError(L, f.sanitize(plugin, "set_abilities", err))
		}
		return pushSuccess(L, lua.LTrue)
	}
}

func (f *Functions) getLocationFn(plugin string) lua.LGFunction {
	return func(L *lua.LState) int {
		id, ok := f.parsePlayer(L, 1, plugin, "get_location")
		if !ok {
			return 2
		}
		if f.services == nil {
			return pushError(L, "host services not available")
		}

		ctx, cancel := f.callContext(L)
		defer cancel()
		loc, err := f.services.Location(ctx, id)
		if err != nil {
			return pushError(L, f.sanitize(plugin, "get_location", err))
		}
		return pushSuccess(L, LocationTable(L, loc))
	}
}

// playSoundFn is play_sound(player, {x, y, z}, {name, category, volume, pitch}).
func (f *Functions) playSoundFn(plugin string) lua.LGFunction {
	return func(L *lua.LState) int {
		id, ok := f.parsePlayer(L, 1, plugin, "play_sound")
		if !ok {
			return 2
		}
		pos := L.CheckTable(2)
		sound := soundFrom(L.CheckTable(3))
		if f.services == nil {
			return pushError(L, "host services not available")
		}

		at := pluginsdk.Vec3{X: number(pos, "x", 0), Y: number(pos, "y", 0), Z: number(pos, "z", 0)}
		ctx, cancel := f.callContext(L)
		defer cancel()
		if err := f.services.PlaySound(ctx, id, at, sound); err != nil {
			return pushError(L, f.sanitize(plugin, "play_sound", err))
		}
		return pushSuccess(L, lua.LTrue)
	}
}

// playEntitySoundFn is play_entity_sound(player, entity, {name, category, volume, pitch}).
func (f *Functions) playEntitySoundFn(plugin string) lua.LGFunction {
	return func(L *lua.LState) int {
		id, ok := f.parsePlayer(L, 1, plugin, "play_entity_sound")
		if !ok {
			return 2
		}
		entity, ok := f.parsePlayer(L, 2, plugin, "play_entity_sound")
		if !ok {
			return 2
		}
		sound := soundFrom(L.CheckTable(3))
		if f.services == nil {
			return pushError(L, "host services not available")
		}

		ctx, cancel := f.callContext(L)
		defer cancel()
		if err := f.services.PlayEntitySound(ctx, id, entity, sound); err != nil {
			return pushError(L, f.sanitize(plugin, "play_entity_sound", err))
		}
		return pushSuccess(L, lua.LTrue)
	}
}

// getWorldFn is get_world(entity) and returns the world id as a string.
func (f *Functions) getWorldFn(plugin string) lua.LGFunction {
	return func(L *lua.LState) int {
		id, ok := f.parsePlayer(L, 1, plugin, "get_world")
		if !ok {
			return 2
		}
		if f.services == nil {
			return pushError(L, "host services not available")
		}

		ctx, cancel := f.callContext(L)
		defer cancel()
		world, err := f.services.World(ctx, id)
		if err != nil {
			return pushError(L, f.sanitize(plugin, "get_world", err))
		}
		return pushSuccess(L, lua.LString(world.String()))
	}
}

// getRegistryFn is get_registry(name) and returns
// {entries = {{name, id}, ...}, tags = {tag = {name, ...}}}.
func (f *Functions) getRegistryFn(_ string) lua.LGFunction {
	return func(L *lua.LState) int {
		name := L.CheckString(1)
		if f.services == nil {
			return pushError(L, "host services not available")
		}

		ctx, cancel := f.callContext(L)
		defer cancel()
		reg, ok := f.services.Registry(ctx, name)
		if !ok {
			return pushError(L, "unknown registry: "+name)
		}
		return pushSuccess(L, registryTable(L, reg))
	}
}

func registryTable(L *lua.LState, reg pluginsdk.Registry) *lua.LTable {
	entries := L.CreateTable(len(reg.Entries), 0)
	for _, e := range reg.Entries {
		entry := L.CreateTable(0, 2)
		entry.RawSetString("name", lua.LString(e.Name))
		entry.RawSetString("id", lua.LNumber(e.ID))
		entries.Append(entry)
	}
	tags := L.NewTable()
	for tag, names := range reg.Tags {
		list := L.CreateTable(len(names), 0)
		for _, n := range names {
			list.Append(lua.LString(n))
		}
		tags.RawSetString(tag, list)
	}
	t := L.CreateTable(0, 2)
	t.RawSetString("entries", entries)
	t.RawSetString("tags", tags)
	return t
}
