// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package hostfunc_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"

	"github.com/holomush/plugbridge/internal/plugin/capability"
	"github.com/holomush/plugbridge/internal/plugin/hostfunc"
	pluginsdk "github.com/holomush/plugbridge/pkg/plugin"
)

var steve = uuid.MustParse("8667ba71-b85a-4004-af54-457a9734eed7")

// mockServices implements plugins.Services.
type mockServices struct {
	mock.Mock
}

func (m *mockServices) SendMessage(ctx context.Context, to pluginsdk.Sender, message string) {
	m.Called(ctx, to, message)
}

func (m *mockServices) Abilities(ctx context.Context, player uuid.UUID) (pluginsdk.Abilities, error) {
	args := m.Called(ctx, player)
	return args.Get(0).(pluginsdk.Abilities), args.Error(1)
}

func (m *mockServices) SetAbilities(ctx context.Context, player uuid.UUID, abilities pluginsdk.Abilities) error {
	return m.Called(ctx, player, abilities).Error(0)
}

func (m *mockServices) Location(ctx context.Context, player uuid.UUID) (pluginsdk.Location, error) {
	args := m.Called(ctx, player)
	return args.Get(0).(pluginsdk.Location), args.Error(1)
}

func (m *mockServices) PlaySound(ctx context.Context, player uuid.UUID, at pluginsdk.Vec3, sound pluginsdk.Sound) error {
	return m.Called(ctx, player, at, sound).Error(0)
}

func (m *mockServices) PlayEntitySound(ctx context.Context, player, entity uuid.UUID, sound pluginsdk.Sound) error {
	return m.Called(ctx, player, entity, sound).Error(0)
}

func (m *mockServices) World(ctx context.Context, entity uuid.UUID) (uuid.UUID, error) {
	args := m.Called(ctx, entity)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *mockServices) Registry(ctx context.Context, name string) (pluginsdk.Registry, bool) {
	args := m.Called(ctx, name)
	return args.Get(0).(pluginsdk.Registry), args.Bool(1)
}

func (m *mockServices) Subscribe(plugin string, kind pluginsdk.EventKind, priority pluginsdk.Priority, blocking bool) {
	m.Called(plugin, kind, priority, blocking)
}

func (m *mockServices) CallEvent(ctx context.Context, event pluginsdk.Event) bool {
	return m.Called(ctx, event).Bool(0)
}

// mapStore is an in-memory plugins.KVStore.
type mapStore struct {
	mu   sync.Mutex
	data map[string][]byte
	err  error
}

func newMapStore() *mapStore { return &mapStore{data: map[string][]byte{}} }

func (s *mapStore) Get(_ context.Context, namespace, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.data[namespace+"/"+key], nil
}

func (s *mapStore) Set(_ context.Context, namespace, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.data[namespace+"/"+key] = value
	return nil
}

func (s *mapStore) Delete(_ context.Context, namespace, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	delete(s.data, namespace+"/"+key)
	return nil
}

// recordingHooks implements hostfunc.Hooks.
type recordingHooks struct {
	listeners map[string][]hostfunc.Listener
}

func (h *recordingHooks) Listen(plugin string, l hostfunc.Listener) error {
	if h.listeners == nil {
		h.listeners = map[string][]hostfunc.Listener{}
	}
	h.listeners[plugin] = append(h.listeners[plugin], l)
	return nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newState returns a state with the host table for plugin "shop" installed.
func newState(t *testing.T, f *hostfunc.Functions) *lua.LState {
	t.Helper()
	L := lua.NewState()
	t.Cleanup(L.Close)
	L.SetGlobal(hostfunc.TableName, f.Table(L, "shop"))
	return L
}

func TestHostFunctions_Log(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		t.Run(level, func(t *testing.T) {
			L := newState(t, hostfunc.New(nil, nil, hostfunc.WithLogger(discard())))
			require.NoError(t, L.DoString(`host.log("`+level+`", "hello")`))
		})
	}
}

func TestHostFunctions_Log_InvalidLevel(t *testing.T) {
	for _, level := range []string{"warning", "INFO", "trace"} {
		t.Run(level, func(t *testing.T) {
			L := newState(t, hostfunc.New(nil, nil, hostfunc.WithLogger(discard())))
			assert.Error(t, L.DoString(`host.log("`+level+`", "hello")`))
		})
	}
}

func TestHostFunctions_NewRequestID(t *testing.T) {
	L := newState(t, hostfunc.New(nil, nil))
	require.NoError(t, L.DoString(`a = host.new_request_id(); b = host.new_request_id()`))

	a, b := L.GetGlobal("a").String(), L.GetGlobal("b").String()
	assert.Len(t, a, 26)
	assert.NotEqual(t, a, b)
}

func TestHostFunctions_KV(t *testing.T) {
	store := newMapStore()
	L := newState(t, hostfunc.New(nil, store, hostfunc.WithLogger(discard())))

	require.NoError(t, L.DoString(`
		ok, set_err = host.kv_set("balance", "42")
		value, get_err = host.kv_get("balance")
		missing, missing_err = host.kv_get("absent")
		host.kv_delete("balance")
		gone = host.kv_get("balance")
	`))

	assert.Equal(t, lua.LTrue, L.GetGlobal("ok"))
	assert.Equal(t, lua.LNil, L.GetGlobal("set_err"))
	assert.Equal(t, "42", L.GetGlobal("value").String())
	assert.Equal(t, lua.LNil, L.GetGlobal("get_err"))
	assert.Equal(t, lua.LNil, L.GetGlobal("missing"))
	assert.Equal(t, lua.LNil, L.GetGlobal("missing_err"))
	assert.Equal(t, lua.LNil, L.GetGlobal("gone"))
}

func TestHostFunctions_KV_NamespacedByPlugin(t *testing.T) {
	store := newMapStore()
	f := hostfunc.New(nil, store)

	L := lua.NewState()
	defer L.Close()
	L.SetGlobal("shop", f.Table(L, "shop"))
	L.SetGlobal("bank", f.Table(L, "bank"))

	require.NoError(t, L.DoString(`
		shop.kv_set("k", "from shop")
		bank.kv_set("k", "from bank")
		a = shop.kv_get("k")
		b = bank.kv_get("k")
	`))
	assert.Equal(t, "from shop", L.GetGlobal("a").String())
	assert.Equal(t, "from bank", L.GetGlobal("b").String())
	assert.Equal(t, []byte("from shop"), store.data["shop/k"])
}

func TestHostFunctions_KV_Errors(t *testing.T) {
	t.Run("no store", func(t *testing.T) {
		L := newState(t, hostfunc.New(nil, nil))
		require.NoError(t, L.DoString(`v, err = host.kv_get("k")`))
		assert.Equal(t, lua.LNil, L.GetGlobal("v"))
		assert.Equal(t, "kv store not available", L.GetGlobal("err").String())
	})

	t.Run("store failure is sanitized", func(t *testing.T) {
		store := newMapStore()
		store.err = errors.New("FATAL: password authentication failed")
		L := newState(t, hostfunc.New(nil, store, hostfunc.WithLogger(discard())))

		require.NoError(t, L.DoString(`ok, err = host.kv_set("k", "v")`))
		assert.Equal(t, lua.LNil, L.GetGlobal("ok"))
		msg := L.GetGlobal("err").String()
		assert.Contains(t, msg, "internal error (ref: ")
		assert.NotContains(t, msg, "password")
	})
}

func TestHostFunctions_CapabilityDenied(t *testing.T) {
	enforcer := capability.NewEnforcer()
	require.NoError(t, enforcer.SetGrants("shop", []string{capability.KVRead}))
	L := newState(t, hostfunc.New(nil, newMapStore(), hostfunc.WithEnforcer(enforcer)))

	require.NoError(t, L.DoString(`host.kv_get("k")`))
	err := L.DoString(`host.kv_set("k", "v")`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "capability denied: shop requires kv.write")

	require.NoError(t, L.DoString(`host.log("info", "logging needs no capability")`))
}

func TestHostFunctions_SendMessage(t *testing.T) {
	svc := &mockServices{}
	svc.On("SendMessage", mock.Anything, pluginsdk.Console, "to console").Return().Once()
	svc.On("SendMessage", mock.Anything, pluginsdk.PlayerSender(steve), "to steve").Return().Once()
	L := newState(t, hostfunc.New(svc, nil))

	require.NoError(t, L.DoString(`
		host.send_message("console", "to console")
		host.send_message("`+steve.String()+`", "to steve")
		ok, err = host.send_message("nobody", "lost")
	`))
	assert.Equal(t, lua.LNil, L.GetGlobal("ok"))
	assert.Contains(t, L.GetGlobal("err").String(), "invalid recipient")
	svc.AssertExpectations(t)
}

func TestHostFunctions_Abilities(t *testing.T) {
	svc := &mockServices{}
	current := pluginsdk.DefaultAbilities()
	svc.On("Abilities", mock.Anything, steve).Return(current, nil)
	want := current
	want.Flying, want.AllowFlying = true, true
	svc.On("SetAbilities", mock.Anything, steve, want).Return(nil).Once()
	L := newState(t, hostfunc.New(svc, nil))

	require.NoError(t, L.DoString(`
		a = host.get_abilities("`+steve.String()+`")
		walk = a.walk_speed
		modify = a.allow_modify_world
		ok = host.set_abilities("`+steve.String()+`", {flying = true, allow_flying = true})
		bad, bad_err = host.get_abilities("not-a-uuid")
	`))

	assert.InDelta(t, 0.1, float64(L.GetGlobal("walk").(lua.LNumber)), 0.0001)
	assert.Equal(t, lua.LTrue, L.GetGlobal("modify"))
	assert.Equal(t, lua.LTrue, L.GetGlobal("ok"))
	assert.Equal(t, lua.LNil, L.GetGlobal("bad"))
	assert.Contains(t, L.GetGlobal("bad_err").String(), "invalid player id")
	svc.AssertExpectations(t)
}

func TestHostFunctions_Location(t *testing.T) {
	svc := &mockServices{}
	world := uuid.MustParse("0b5f2a3c-1111-4222-8333-444455556666")
	svc.On("Location", mock.Anything, steve).Return(pluginsdk.Location{
		World:    world,
		Position: pluginsdk.Vec3{X: 1.5, Y: 64, Z: -3},
		Rotation: &pluginsdk.Rotation{Yaw: 90},
	}, nil)
	L := newState(t, hostfunc.New(svc, nil))

	require.NoError(t, L.DoString(`loc = host.get_location("`+steve.String()+`")`))
	loc := L.GetGlobal("loc").(*lua.LTable)
	assert.Equal(t, world.String(), loc.RawGetString("world").String())
	assert.Equal(t, lua.LNumber(64), loc.RawGetString("y"))
	assert.Equal(t, lua.LNumber(90), loc.RawGetString("yaw"))
}

func TestHostFunctions_World(t *testing.T) {
	svc := &mockServices{}
	overworld := uuid.MustParse("0b5f2a3c-1111-4222-8333-444455556666")
	missing := uuid.New()
	svc.On("World", mock.Anything, steve).Return(overworld, nil).Once()
	svc.On("World", mock.Anything, missing).Return(uuid.Nil, errors.New("player not found")).Once()
	L := newState(t, hostfunc.New(svc, nil, hostfunc.WithLogger(discard())))

	require.NoError(t, L.DoString(`
		w = host.get_world("`+steve.String()+`")
		gone, gone_err = host.get_world("`+missing.String()+`")
		bad, bad_err = host.get_world("not-a-uuid")
	`))
	assert.Equal(t, overworld.String(), L.GetGlobal("w").String())
	assert.Equal(t, lua.LNil, L.GetGlobal("gone"))
	assert.Contains(t, L.GetGlobal("gone_err").String(), "internal error")
	assert.Equal(t, lua.LNil, L.GetGlobal("bad"))
	assert.NotEqual(t, lua.LNil, L.GetGlobal("bad_err"))
	svc.AssertExpectations(t)
}

func TestHostFunctions_Registry(t *testing.T) {
	svc := &mockServices{}
	svc.On("Registry", mock.Anything, pluginsdk.RegistrySoundEvent).Return(pluginsdk.Registry{
		Entries: []pluginsdk.RegistryEntry{
			{Name: "ambient.cave", ID: 0},
			{Name: "block.note_block.pling", ID: 1},
		},
		Tags: map[string][]string{"notes": {"block.note_block.pling"}},
	}, true).Once()
	svc.On("Registry", mock.Anything, "biome").Return(pluginsdk.Registry{}, false).Once()
	L := newState(t, hostfunc.New(svc, nil))

	require.NoError(t, L.DoString(`
		reg = host.get_registry("sound_event")
		count = #reg.entries
		second_name = reg.entries[2].name
		second_id = reg.entries[2].id
		tagged = reg.tags.notes[1]
		none, none_err = host.get_registry("biome")
	`))
	assert.Equal(t, lua.LNumber(2), L.GetGlobal("count"))
	assert.Equal(t, "block.note_block.pling", L.GetGlobal("second_name").String())
	assert.Equal(t, lua.LNumber(1), L.GetGlobal("second_id"))
	assert.Equal(t, "block.note_block.pling", L.GetGlobal("tagged").String())
	assert.Equal(t, lua.LNil, L.GetGlobal("none"))
	assert.Contains(t, L.GetGlobal("none_err").String(), "unknown registry: biome")
	svc.AssertExpectations(t)
}

func TestHostFunctions_WorldAndRegistryNeedCapabilities(t *testing.T) {
	enforcer := capability.NewEnforcer()
	require.NoError(t, enforcer.SetGrants("shop", []string{capability.PlayerLocation}))
	L := newState(t, hostfunc.New(&mockServices{}, nil, hostfunc.WithEnforcer(enforcer)))

	err := L.DoString(`host.get_world("` + steve.String() + `")`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires world.read")

	err = L.DoString(`host.get_registry("sound_event")`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires registry.read")
}

func TestHostFunctions_Sounds(t *testing.T) {
	svc := &mockServices{}
	other := uuid.New()
	sound := pluginsdk.Sound{Name: "block.note_block.pling", Category: "master", Volume: 1, Pitch: 2}
	svc.On("PlaySound", mock.Anything, steve, pluginsdk.Vec3{X: 1, Y: 2, Z: 3}, sound).Return(nil).Once()
	svc.On("PlayEntitySound", mock.Anything, steve, other, sound).Return(errors.New("entity gone")).Once()
	L := newState(t, hostfunc.New(svc, nil, hostfunc.WithLogger(discard())))

	require.NoError(t, L.DoString(`
		local s = {name = "block.note_block.pling", category = "master", pitch = 2}
		a = host.play_sound("`+steve.String()+`", {x = 1, y = 2, z = 3}, s)
		b, b_err = host.play_entity_sound("`+steve.String()+`", "`+other.String()+`", s)
	`))
	assert.Equal(t, lua.LTrue, L.GetGlobal("a"))
	assert.Equal(t, lua.LNil, L.GetGlobal("b"))
	assert.Contains(t, L.GetGlobal("b_err").String(), "internal error")
	svc.AssertExpectations(t)
}

func TestHostFunctions_RegisterEvent(t *testing.T) {
	svc := &mockServices{}
	svc.On("Subscribe", "shop", pluginsdk.EventPlayerChat, pluginsdk.PriorityHigh, true).Return().Once()
	svc.On("Subscribe", "shop", pluginsdk.EventPlayerJoin, pluginsdk.PriorityNormal, false).Return().Once()
	hooks := &recordingHooks{}
	L := newState(t, hostfunc.New(svc, nil, hostfunc.WithHooks(hooks), hostfunc.WithLogger(discard())))

	require.NoError(t, L.DoString(`
		chat = host.register_event("AsyncPlayerChatEvent", function(e) end, "high", true)
		join = host.register_event("PlayerJoin", function(e) end)
		block = host.register_event("BlockBreakEvent", function(e) end)
	`))

	assert.Equal(t, lua.LTrue, L.GetGlobal("chat"))
	assert.Equal(t, lua.LTrue, L.GetGlobal("join"))
	assert.Equal(t, lua.LFalse, L.GetGlobal("block"))

	got := hooks.listeners["shop"]
	require.Len(t, got, 2)
	assert.Equal(t, pluginsdk.EventPlayerChat, got[0].Kind)
	assert.True(t, got[0].IgnoreCancelled)
	assert.Equal(t, pluginsdk.EventPlayerJoin, got[1].Kind)
	assert.NotNil(t, got[1].Fn)
	svc.AssertExpectations(t)
}

func TestHostFunctions_CallEvent(t *testing.T) {
	svc := &mockServices{}
	svc.On("CallEvent", mock.Anything, pluginsdk.PlayerChat{Player: steve, Name: "Steve", Message: "hi"}).
		Return(true).Once()
	L := newState(t, hostfunc.New(svc, nil, hostfunc.WithLogger(discard())))

	require.NoError(t, L.DoString(`
		heard = host.call_event("PlayerChatEvent", {player = "`+steve.String()+`", name = "Steve", message = "hi"})
		unknown = host.call_event("WeatherChangeEvent", {})
	`))
	assert.Equal(t, lua.LTrue, L.GetGlobal("heard"))
	assert.Equal(t, lua.LFalse, L.GetGlobal("unknown"))
	svc.AssertExpectations(t)
}

func TestEventTable(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	tbl := hostfunc.EventTable(L, pluginsdk.PlayerJoin{Player: steve, Name: "Steve", Message: "Steve joined"})
	assert.Equal(t, "PlayerJoinEvent", tbl.RawGetString("type").String())
	assert.Equal(t, steve.String(), tbl.RawGetString("player").String())
	assert.Equal(t, "Steve joined", tbl.RawGetString("message").String())
	assert.Equal(t, lua.LFalse, tbl.RawGetString("cancelled"))
}

func TestParseSender(t *testing.T) {
	s, err := hostfunc.ParseSender("Console")
	require.NoError(t, err)
	assert.True(t, s.IsConsole())

	s, err = hostfunc.ParseSender(steve.String())
	require.NoError(t, err)
	assert.Equal(t, pluginsdk.PlayerSender(steve), s)
	assert.Equal(t, lua.LString(steve.String()), hostfunc.SenderValue(s))

	_, err = hostfunc.ParseSender("herobrine")
	assert.Error(t, err)
}
