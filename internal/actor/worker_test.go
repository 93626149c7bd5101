// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package actor_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/holomush/plugbridge/internal/actor"
	"github.com/holomush/plugbridge/internal/mailbox"
	plugins "github.com/holomush/plugbridge/internal/plugin"
	"github.com/holomush/plugbridge/pkg/errutil"
	pluginsdk "github.com/holomush/plugbridge/pkg/plugin"
)

// mockRuntime implements plugins.Runtime.
type mockRuntime struct {
	mock.Mock
}

func (m *mockRuntime) Attach(ctx context.Context, cb *plugins.CallbackContext) error {
	return m.Called(ctx, cb).Error(0)
}

func (m *mockRuntime) CreateInstance(ctx context.Context, req plugins.InstanceRequest) (plugins.Handle, error) {
	args := m.Called(ctx, req)
	return args.Get(0), args.Error(1)
}

func (m *mockRuntime) Enable(ctx context.Context, h plugins.Handle) error {
	return m.Called(ctx, h).Error(0)
}

func (m *mockRuntime) Disable(ctx context.Context, h plugins.Handle) error {
	return m.Called(ctx, h).Error(0)
}

func (m *mockRuntime) Listeners(h plugins.Handle) map[string]plugins.ListenerHandle {
	v, _ := m.Called(h).Get(0).(map[string]plugins.ListenerHandle)
	return v
}

func (m *mockRuntime) Dispatch(ctx context.Context, sender pluginsdk.Sender, line string, loc *pluginsdk.Location) (bool, error) {
	args := m.Called(ctx, sender, line, loc)
	return args.Bool(0), args.Error(1)
}

func (m *mockRuntime) TabComplete(ctx context.Context, sender pluginsdk.Sender, line string, loc *pluginsdk.Location) ([]string, error) {
	args := m.Called(ctx, sender, line, loc)
	v, _ := args.Get(0).([]string)
	return v, args.Error(1)
}

func (m *mockRuntime) FireEvent(ctx context.Context, event pluginsdk.Event, plugin string) (bool, error) {
	args := m.Called(ctx, event, plugin)
	return args.Bool(0), args.Error(1)
}

func (m *mockRuntime) Detach(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

var _ plugins.Runtime = (*mockRuntime)(nil)

// recordingRouter captures registrations.
type recordingRouter struct {
	mu          sync.Mutex
	permissions map[string]plugins.PermissionDefault
	commands    map[string]string
	handlers    map[string]plugins.HandlerRef
	reject      map[string]bool // permissions RegisterPermission fails for
}

func newRecordingRouter() *recordingRouter {
	return &recordingRouter{
		permissions: map[string]plugins.PermissionDefault{},
		commands:    map[string]string{},
		handlers:    map[string]plugins.HandlerRef{},
	}
}

func (r *recordingRouter) RegisterPermission(name string, def plugins.PermissionDefault) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reject[name] {
		return errors.New("invalid permission: " + name)
	}
	r.permissions[name] = def
	return nil
}

func (r *recordingRouter) RegisterCommand(name, _, permission string, handler plugins.HandlerRef) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[name] = permission
	r.handlers[name] = handler
	return nil
}

// harness runs a worker for one test.
type harness struct {
	t    *testing.T
	mb   *mailbox.Mailbox[actor.Message]
	rt   *mockRuntime
	done chan error
	stop context.CancelFunc
	once sync.Once
}

func start(t *testing.T, rt *mockRuntime, router plugins.CommandRouter, opts ...actor.Option) *harness {
	t.Helper()
	mb := mailbox.New[actor.Message](16)
	opts = append([]actor.Option{actor.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	w := actor.New(mb, rt, router, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	h := &harness{t: t, mb: mb, rt: rt, done: make(chan error, 1), stop: cancel}
	go func() { h.done <- w.Run(ctx) }()
	t.Cleanup(h.shutdown)
	return h
}

func (h *harness) shutdown() {
	h.once.Do(func() {
		h.stop()
		select {
		case <-h.done:
		case <-time.After(2 * time.Second):
			h.t.Fatal("worker did not exit")
		}
	})
}

func ask[T any](t *testing.T, mb *mailbox.Mailbox[actor.Message], build func(*mailbox.Reply[T]) actor.Message) T {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	reply := mailbox.NewReply[T]()
	require.NoError(t, mb.Send(ctx, build(reply)))
	v, err := reply.Wait(ctx)
	require.NoError(t, err)
	return v
}

func (h *harness) initialize() error {
	return ask(h.t, h.mb, func(r *mailbox.Reply[error]) actor.Message {
		return actor.Initialize{Reply: r}
	})
}

func (h *harness) register(p *plugins.Plugin) error {
	return ask(h.t, h.mb, func(r *mailbox.Reply[error]) actor.Message {
		return actor.Register{Plugin: p, Reply: r}
	})
}

func (h *harness) instantiate(order ...string) actor.Outcomes {
	res := ask(h.t, h.mb, func(r *mailbox.Reply[actor.Result[actor.Outcomes]]) actor.Message {
		return actor.InstantiateAll{Order: order, Reply: r}
	})
	require.NoError(h.t, res.Err)
	return res.Value
}

func (h *harness) enable() actor.Outcomes {
	res := ask(h.t, h.mb, func(r *mailbox.Reply[actor.Result[actor.Outcomes]]) actor.Message {
		return actor.EnableAll{Reply: r}
	})
	require.NoError(h.t, res.Err)
	return res.Value
}

func (h *harness) disable() actor.Outcomes {
	res := ask(h.t, h.mb, func(r *mailbox.Reply[actor.Result[actor.Outcomes]]) actor.Message {
		return actor.DisableAll{Reply: r}
	})
	require.NoError(h.t, res.Err)
	return res.Value
}

func (h *harness) states() map[string]plugins.State {
	res := ask(h.t, h.mb, func(r *mailbox.Reply[actor.Result[[]plugins.Plugin]]) actor.Message {
		return actor.Snapshot{Reply: r}
	})
	require.NoError(h.t, res.Err)
	out := map[string]plugins.State{}
	for _, p := range res.Value {
		out[p.Key] = p.State
	}
	return out
}

func newPlugin(name string) *plugins.Plugin {
	return plugins.New(name, "1.0", "example."+name, "/plugins/"+name+".jar", plugins.DialectLegacy)
}

func forKey(key string) any {
	return mock.MatchedBy(func(req plugins.InstanceRequest) bool { return req.Key == key })
}

func TestWorker_EnableFailureIsIsolated(t *testing.T) {
	defer goleak.VerifyNone(t)

	rt := &mockRuntime{}
	rt.On("Attach", mock.Anything, mock.Anything).Return(nil).Once()
	for _, key := range []string{"w", "x", "y"} {
		rt.On("CreateInstance", mock.Anything, forKey(key)).Return("handle-"+key, nil).Once()
	}
	rt.On("Enable", mock.Anything, "handle-w").Return(nil)
	rt.On("Enable", mock.Anything, "handle-x").Return(errors.New("boom"))
	rt.On("Enable", mock.Anything, "handle-y").Return(nil)
	rt.On("Listeners", mock.Anything).Return(map[string]plugins.ListenerHandle{"PlayerJoinEvent": 1})
	rt.On("Detach", mock.Anything).Return(nil)

	h := start(t, rt, nil)
	for _, name := range []string{"w", "x", "y"} {
		require.NoError(t, h.register(newPlugin(name)))
	}
	require.NoError(t, h.initialize())

	loaded := h.instantiate("w", "x", "y")
	assert.Empty(t, loaded.Failed())

	enabled := h.enable()
	assert.Equal(t, []string{"x"}, enabled.Failed())
	errutil.AssertErrorCode(t, enabled["x"], plugins.CodeEnableFailed)

	assert.Equal(t, map[string]plugins.State{
		"w": plugins.StateEnabled,
		"x": plugins.StateErrored,
		"y": plugins.StateEnabled,
	}, h.states())

	h.shutdown()
	rt.AssertExpectations(t)
}

func TestWorker_InstantiateAll(t *testing.T) {
	rt := &mockRuntime{}
	rt.On("Attach", mock.Anything, mock.Anything).Return(nil)
	rt.On("Detach", mock.Anything).Return(nil)

	var requests []plugins.InstanceRequest
	rt.On("CreateInstance", mock.Anything, forKey("core")).Return("core-handle", nil)
	rt.On("CreateInstance", mock.Anything, forKey("shop")).
		Run(func(args mock.Arguments) {
			requests = append(requests, args.Get(1).(plugins.InstanceRequest))
		}).
		Return("shop-handle", nil)
	rt.On("CreateInstance", mock.Anything, forKey("broken")).Return(nil, errors.New("no main"))

	router := newRecordingRouter()
	h := start(t, rt, router, actor.WithPermissionNamespace("srv"))

	core := newPlugin("Core")
	core.Provides.Add("Vault")
	economy := newPlugin("Economy")
	shop := newPlugin("Shop")
	shop.ClasspathDeps = plugins.NewSet("vault", "economy", "missing")
	shop.Libraries = []string{"com.google.code.gson:gson:2.10.1", "org.Example:Util:1.0"}
	shop.Commands = map[string]plugins.CommandSpec{
		"buy":  {Description: "Buy things", Aliases: []string{"purchase"}},
		"sell": {Description: "Sell things", Permission: "shop.sell"},
	}

	for _, p := range []*plugins.Plugin{core, economy, shop, newPlugin("Broken")} {
		require.NoError(t, h.register(p))
	}
	require.NoError(t, h.initialize())

	out := h.instantiate("core", "shop", "broken", "ghost")

	require.Len(t, requests, 1)
	req := requests[0]
	assert.Equal(t, "/plugins/Economy.jar;/plugins/Core.jar", req.Classpath, "ordered by dependency name")
	assert.Equal(t, "com.google.code.gson:gson:2.10.1\norg.Example:Util:1.0", req.Libraries)
	assert.Equal(t, "example.Shop", req.Main)
	assert.Equal(t, "/plugins/Shop", req.DataFolder)

	assert.NoError(t, out["core"])
	assert.NoError(t, out["shop"])
	errutil.AssertErrorCode(t, out["broken"], plugins.CodeInstantiationFailed)
	errutil.AssertErrorCode(t, out["ghost"], actor.CodeUnknownPlugin)
	assert.NotContains(t, out, "economy", "plugins outside the order are untouched")

	states := h.states()
	assert.Equal(t, plugins.StateLoaded, states["core"])
	assert.Equal(t, plugins.StateLoaded, states["shop"])
	assert.Equal(t, plugins.StateErrored, states["broken"])
	assert.Equal(t, plugins.StateRegistered, states["economy"])

	router.mu.Lock()
	defer router.mu.Unlock()
	assert.Equal(t, plugins.PermissionAllow, router.permissions["srv:buy"])
	assert.Equal(t, plugins.PermissionOp, router.permissions["shop.sell"])
	assert.Equal(t, "srv:buy", router.commands["buy"])
	assert.Equal(t, "srv:buy", router.commands["purchase"])
	assert.Equal(t, "shop.sell", router.commands["sell"])
	assert.Equal(t, "srv:buy", router.commands["shop:buy"])
	assert.Equal(t, plugins.HandlerRef{Plugin: "shop", Command: "buy"}, router.handlers["purchase"])
}

func TestWorker_RejectedPermissionStillRegistersLabels(t *testing.T) {
	rt := &mockRuntime{}
	rt.On("Attach", mock.Anything, mock.Anything).Return(nil)
	rt.On("Detach", mock.Anything).Return(nil)
	rt.On("CreateInstance", mock.Anything, forKey("my plugin")).Return("handle", nil)

	router := newRecordingRouter()
	router.reject = map[string]bool{"bad perm": true}
	h := start(t, rt, router)

	p := newPlugin("My Plugin")
	p.Commands = map[string]plugins.CommandSpec{
		"spawn": {Permission: "bad perm", Aliases: []string{"sp"}},
	}
	require.NoError(t, h.register(p))
	require.NoError(t, h.initialize())
	assert.NoError(t, h.instantiate("my plugin")["my plugin"])

	router.mu.Lock()
	defer router.mu.Unlock()
	assert.NotContains(t, router.permissions, "bad perm")
	for _, label := range []string{"spawn", "sp", "my_plugin:spawn"} {
		assert.Equal(t, "bad perm", router.commands[label], label)
		assert.Equal(t, plugins.HandlerRef{Plugin: "my plugin", Command: "spawn"}, router.handlers[label], label)
	}
}

func TestWorker_InstantiateSkipsAlreadyLoaded(t *testing.T) {
	rt := &mockRuntime{}
	rt.On("Attach", mock.Anything, mock.Anything).Return(nil)
	rt.On("Detach", mock.Anything).Return(nil)
	rt.On("CreateInstance", mock.Anything, forKey("a")).Return("a", nil).Once()

	h := start(t, rt, nil)
	require.NoError(t, h.register(newPlugin("a")))
	require.NoError(t, h.initialize())

	h.instantiate("a")
	second := h.instantiate("a")
	assert.Empty(t, second)
	rt.AssertNumberOfCalls(t, "CreateInstance", 1)
}

func TestWorker_InitializeTwice(t *testing.T) {
	rt := &mockRuntime{}
	rt.On("Attach", mock.Anything, mock.Anything).Return(nil).Once()
	rt.On("Detach", mock.Anything).Return(nil).Once()

	h := start(t, rt, nil)
	require.NoError(t, h.initialize())

	err := h.initialize()
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, actor.CodeAlreadyInitialized)

	h.shutdown()
	rt.AssertNumberOfCalls(t, "Attach", 1)
	rt.AssertNumberOfCalls(t, "Detach", 1)
}

func TestWorker_InitializeFailureCanRetry(t *testing.T) {
	rt := &mockRuntime{}
	rt.On("Attach", mock.Anything, mock.Anything).Return(errors.New("vm unavailable")).Once()
	rt.On("Attach", mock.Anything, mock.Anything).Return(nil).Once()
	rt.On("Detach", mock.Anything).Return(nil)

	h := start(t, rt, nil)
	err := h.initialize()
	errutil.AssertErrorCode(t, err, actor.CodeInitializeFailed)
	require.NoError(t, h.initialize())
}

func TestWorker_AttachReceivesCallbackContext(t *testing.T) {
	rt := &mockRuntime{}
	var got *plugins.CallbackContext
	rt.On("Attach", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { got = args.Get(1).(*plugins.CallbackContext) }).
		Return(nil)
	rt.On("Detach", mock.Anything).Return(nil)

	h := start(t, rt, nil)
	require.NoError(t, ask(t, h.mb, func(r *mailbox.Reply[error]) actor.Message {
		return actor.Initialize{Config: actor.Config{Store: nopStore{}}, Reply: r}
	}))

	require.NotNil(t, got)
	assert.NotNil(t, got.Logger)
	assert.Equal(t, nopStore{}, got.Store)
}

type nopStore struct{}

func (nopStore) Get(context.Context, string, string) ([]byte, error) { return nil, nil }
func (nopStore) Set(context.Context, string, string, []byte) error   { return nil }
func (nopStore) Delete(context.Context, string, string) error        { return nil }

func TestWorker_BeforeInitialize(t *testing.T) {
	rt := &mockRuntime{}
	h := start(t, rt, nil)

	require.NoError(t, h.register(newPlugin("early")), "registration is allowed before initialize")

	dispatched := ask(t, h.mb, func(r *mailbox.Reply[actor.Result[bool]]) actor.Message {
		return actor.DispatchCommand{Line: "hello", Sender: pluginsdk.Console, Reply: r}
	})
	assert.False(t, dispatched.Value)
	errutil.AssertErrorCode(t, dispatched.Err, actor.CodeNotInitialized)

	completed := ask(t, h.mb, func(r *mailbox.Reply[actor.Result[[]string]]) actor.Message {
		return actor.TabComplete{Line: "he", Sender: pluginsdk.Console, Reply: r}
	})
	assert.Empty(t, completed.Value)

	res := ask(t, h.mb, func(r *mailbox.Reply[actor.Result[actor.Outcomes]]) actor.Message {
		return actor.InstantiateAll{Order: []string{"early"}, Reply: r}
	})
	errutil.AssertErrorCode(t, res.Err, actor.CodeNotInitialized)

	rt.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	rt.AssertNotCalled(t, "CreateInstance", mock.Anything, mock.Anything)
}

func TestWorker_DuplicateRegistration(t *testing.T) {
	h := start(t, &mockRuntime{}, nil)

	require.NoError(t, h.register(newPlugin("Foo")))
	err := h.register(plugins.New(" foo ", "2.0", "other.Main", "/elsewhere/foo.jar", plugins.DialectPrimary))
	errutil.AssertErrorCode(t, err, plugins.CodeDuplicatePlugin)

	res := ask(t, h.mb, func(r *mailbox.Reply[actor.Result[[]plugins.Plugin]]) actor.Message {
		return actor.Snapshot{Reply: r}
	})
	require.Len(t, res.Value, 1)
	assert.Equal(t, "1.0", res.Value[0].Version)
}

func TestWorker_ResolveOrder(t *testing.T) {
	var mu sync.Mutex
	transitions := map[string]plugins.State{}
	observer := func(key string, to plugins.State) {
		mu.Lock()
		defer mu.Unlock()
		transitions[key] = to
	}
	h := start(t, &mockRuntime{}, nil, actor.WithStateObserver(observer))

	a := newPlugin("A")
	a.Depends.Add("B")
	e := newPlugin("E")
	e.Depends.Add("F")
	for _, p := range []*plugins.Plugin{a, newPlugin("B"), e} {
		require.NoError(t, h.register(p))
	}

	res := ask(t, h.mb, func(r *mailbox.Reply[actor.Result[[]string]]) actor.Message {
		return actor.ResolveOrder{Reply: r}
	})
	require.NoError(t, res.Err)
	assert.Equal(t, []string{"b", "a"}, res.Value)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, map[string]plugins.State{"e": plugins.StateErrored}, transitions)
}

func TestWorker_DisableAll(t *testing.T) {
	rt := &mockRuntime{}
	rt.On("Attach", mock.Anything, mock.Anything).Return(nil)
	rt.On("Detach", mock.Anything).Return(nil)
	rt.On("CreateInstance", mock.Anything, mock.Anything).Return("h", nil).Once()
	rt.On("CreateInstance", mock.Anything, mock.Anything).Return("i", nil).Once()
	rt.On("Enable", mock.Anything, mock.Anything).Return(nil)
	rt.On("Listeners", mock.Anything).Return(nil)
	rt.On("Disable", mock.Anything, "h").Return(errors.New("stuck"))
	rt.On("Disable", mock.Anything, "i").Return(nil)

	h := start(t, rt, nil)
	require.NoError(t, h.register(newPlugin("a")))
	require.NoError(t, h.register(newPlugin("b")))
	require.NoError(t, h.initialize())
	h.instantiate("a", "b")
	h.enable()

	out := h.disable()
	errutil.AssertErrorCode(t, out["a"], plugins.CodeDisableFailed)
	assert.NoError(t, out["b"])
	assert.Equal(t, map[string]plugins.State{"a": plugins.StateDisabled, "b": plugins.StateDisabled}, h.states())

	assert.Empty(t, h.disable(), "nothing left to disable")
	assert.Len(t, h.enable(), 2, "disabled plugins can be enabled again")
}

func TestWorker_DispatchCommand(t *testing.T) {
	player := pluginsdk.PlayerSender(uuid.New())
	loc := &pluginsdk.Location{World: uuid.New(), Position: pluginsdk.Vec3{X: 1, Y: 64, Z: -3}}

	rt := &mockRuntime{}
	rt.On("Attach", mock.Anything, mock.Anything).Return(nil)
	rt.On("Detach", mock.Anything).Return(nil)
	rt.On("Dispatch", mock.Anything, player, "greet bob", loc).Return(true, nil)
	rt.On("Dispatch", mock.Anything, player, "nothing", (*pluginsdk.Location)(nil)).Return(false, nil)
	rt.On("Dispatch", mock.Anything, player, "explode", (*pluginsdk.Location)(nil)).Return(false, errors.New("lua error"))

	h := start(t, rt, nil)
	require.NoError(t, h.initialize())

	dispatch := func(line string, at *pluginsdk.Location) actor.Result[bool] {
		return ask(t, h.mb, func(r *mailbox.Reply[actor.Result[bool]]) actor.Message {
			return actor.DispatchCommand{Line: line, Sender: player, Location: at, Reply: r}
		})
	}

	assert.Equal(t, actor.Result[bool]{Value: true}, dispatch("greet bob", loc))
	assert.Equal(t, actor.Result[bool]{Value: false}, dispatch("nothing", nil))

	failed := dispatch("explode", nil)
	assert.False(t, failed.Value)
	errutil.AssertErrorCode(t, failed.Err, actor.CodeDispatchFailed)
}

func TestWorker_TabComplete(t *testing.T) {
	rt := &mockRuntime{}
	rt.On("Attach", mock.Anything, mock.Anything).Return(nil)
	rt.On("Detach", mock.Anything).Return(nil)
	rt.On("TabComplete", mock.Anything, pluginsdk.Console, "gr", mock.Anything).Return([]string{"greet", "grow"}, nil)
	rt.On("TabComplete", mock.Anything, pluginsdk.Console, "bad ", mock.Anything).Return(nil, errors.New("boom"))
	rt.On("TabComplete", mock.Anything, pluginsdk.Console, "none", mock.Anything).Return(nil, nil)

	h := start(t, rt, nil)
	require.NoError(t, h.initialize())

	complete := func(line string) actor.Result[[]string] {
		return ask(t, h.mb, func(r *mailbox.Reply[actor.Result[[]string]]) actor.Message {
			return actor.TabComplete{Line: line, Sender: pluginsdk.Console, Reply: r}
		})
	}

	assert.Equal(t, []string{"greet", "grow"}, complete("gr").Value)

	failed := complete("bad ")
	assert.Equal(t, []string{}, failed.Value)
	errutil.AssertErrorCode(t, failed.Err, actor.CodeTabCompleteFailed)

	assert.Equal(t, []string{}, complete("none").Value)
}

func TestWorker_FireEvent(t *testing.T) {
	join := pluginsdk.PlayerJoin{Player: uuid.New(), Name: "steve"}

	rt := &mockRuntime{}
	rt.On("Attach", mock.Anything, mock.Anything).Return(nil)
	rt.On("Detach", mock.Anything).Return(nil)
	rt.On("CreateInstance", mock.Anything, forKey("greeter")).Return("g", nil)
	rt.On("CreateInstance", mock.Anything, forKey("idle")).Return("i", nil)
	rt.On("Enable", mock.Anything, "g").Return(nil)
	rt.On("Enable", mock.Anything, "i").Return(errors.New("nope"))
	rt.On("Listeners", mock.Anything).Return(nil)
	rt.On("FireEvent", mock.Anything, join, "greeter").Return(true, nil).Once()

	h := start(t, rt, nil)
	require.NoError(t, h.register(newPlugin("Greeter")))
	require.NoError(t, h.register(newPlugin("Idle")))
	require.NoError(t, h.initialize())
	h.instantiate("greeter", "idle")
	h.enable()

	fire := func(event pluginsdk.Event, plugin string) actor.Result[bool] {
		return ask(t, h.mb, func(r *mailbox.Reply[actor.Result[bool]]) actor.Message {
			return actor.FireEvent{Event: event, Plugin: plugin, Reply: r}
		})
	}

	assert.Equal(t, actor.Result[bool]{Value: true}, fire(join, "Greeter"))
	assert.Equal(t, actor.Result[bool]{Value: false}, fire(join, "idle"), "errored plugins receive no events")
	assert.Equal(t, actor.Result[bool]{Value: false}, fire(join, "ghost"))
	assert.Equal(t, actor.Result[bool]{Value: false}, fire(pluginsdk.Unsupported{Type: "BlockBreakEvent"}, "greeter"))

	// A notification without a reply is handled like any other message.
	require.NoError(t, h.mb.Send(context.Background(), actor.FireEvent{Event: pluginsdk.Unsupported{Type: "X"}, Plugin: "greeter"}))
	assert.Len(t, h.states(), 2)

	rt.AssertNumberOfCalls(t, "FireEvent", 1)
}

func TestWorker_ProcessesInSubmissionOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	var mu sync.Mutex
	var seen []string

	rt := &mockRuntime{}
	rt.On("Attach", mock.Anything, mock.Anything).Return(nil)
	rt.On("Detach", mock.Anything).Return(nil)
	rt.On("Dispatch", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, args.String(2))
		}).
		Return(true, nil)

	h := start(t, rt, nil)
	require.NoError(t, h.initialize())

	const n = 40
	replies := make([]*mailbox.Reply[actor.Result[bool]], n)
	want := make([]string, n)
	for i := range n {
		want[i] = "cmd " + string(rune('a'+i%26)) + string(rune('0'+i/26))
		replies[i] = mailbox.NewReply[actor.Result[bool]]()
		require.NoError(t, h.mb.Send(context.Background(), actor.DispatchCommand{
			Line: want[i], Sender: pluginsdk.Console, Reply: replies[i],
		}))
	}
	for _, r := range replies {
		res, err := r.Wait(context.Background())
		require.NoError(t, err)
		assert.True(t, res.Value)
	}

	h.shutdown()
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, want, seen)
}

func TestWorker_ShutdownStopsProcessing(t *testing.T) {
	defer goleak.VerifyNone(t)

	rt := &mockRuntime{}
	rt.On("Attach", mock.Anything, mock.Anything).Return(nil)
	rt.On("Detach", mock.Anything).Return(nil).Once()

	mb := mailbox.New[actor.Message](8)
	w := actor.New(mb, rt, nil, actor.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	ctx := context.Background()
	initReply := mailbox.NewReply[error]()
	shutdownReply := mailbox.NewReply[error]()
	lateReply := mailbox.NewReply[actor.Result[bool]]()
	require.NoError(t, mb.Send(ctx, actor.Register{Plugin: newPlugin("p"), Reply: mailbox.NewReply[error]()}))
	require.NoError(t, mb.Send(ctx, actor.Initialize{Reply: initReply}))
	require.NoError(t, mb.Send(ctx, actor.Shutdown{Reply: shutdownReply}))
	require.NoError(t, mb.Send(ctx, actor.DispatchCommand{Line: "late", Sender: pluginsdk.Console, Reply: lateReply}))

	require.NoError(t, w.Run(ctx), "run returns once shutdown is handled")

	err, waitErr := shutdownReply.Wait(ctx)
	require.NoError(t, waitErr)
	require.NoError(t, err)

	late, waitErr := lateReply.Wait(ctx)
	require.NoError(t, waitErr)
	require.ErrorIs(t, late.Err, actor.ErrStopped)

	require.ErrorIs(t, mb.Send(ctx, actor.Snapshot{}), mailbox.ErrClosed)
	rt.AssertExpectations(t)
	rt.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestWorker_ContextCancelDetaches(t *testing.T) {
	defer goleak.VerifyNone(t)

	rt := &mockRuntime{}
	rt.On("Attach", mock.Anything, mock.Anything).Return(nil)
	rt.On("Detach", mock.Anything).Return(nil).Once()

	h := start(t, rt, nil)
	require.NoError(t, h.initialize())
	h.shutdown()

	rt.AssertExpectations(t)
	assert.True(t, h.mb.Closed())
}
