// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package lua

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"

	plugins "github.com/holomush/plugbridge/internal/plugin"
	"github.com/holomush/plugbridge/internal/plugin/capability"
	"github.com/holomush/plugbridge/internal/plugin/hostfunc"
	pluginsdk "github.com/holomush/plugbridge/pkg/plugin"
)

// Error codes for runtime failures.
const (
	CodeNotAttached       = "NOT_ATTACHED"
	CodeAlreadyAttached   = "ALREADY_ATTACHED"
	CodeDuplicateInstance = "DUPLICATE_INSTANCE"
	CodeUnknownHandle     = "UNKNOWN_HANDLE"
	CodeMainNotFound      = "MAIN_NOT_FOUND"
	CodeNoPluginTable     = "NO_PLUGIN_TABLE"
	CodeScriptError       = "SCRIPT_ERROR"
)

// DefaultCallTimeout bounds every call into plugin code.
const DefaultCallTimeout = 5 * time.Second

// Runtime runs Lua plugins. It is not safe for concurrent use: the runtime
// actor is its only caller.
type Runtime struct {
	factory      *StateFactory
	enforcer     *capability.Enforcer
	logger       *slog.Logger
	callTimeout  time.Duration
	librariesDir string

	L         *lua.LState
	services  plugins.Services
	funcs     *hostfunc.Functions
	instances map[string]*instance
	commands  map[string]commandRef
}

// commandRef binds a command label to the plugin command it runs.
type commandRef struct {
	inst *instance
	name string
	spec plugins.CommandSpec
}

var (
	_ plugins.Runtime = (*Runtime)(nil)
	_ hostfunc.Hooks  = (*Runtime)(nil)
)

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the logger used before Attach supplies one.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runtime) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithEnforcer gates host functions behind capabilities.
func WithEnforcer(e *capability.Enforcer) Option {
	return func(r *Runtime) {
		r.enforcer = e
	}
}

// WithCallTimeout bounds each call into plugin code and each host call it makes.
func WithCallTimeout(d time.Duration) Option {
	return func(r *Runtime) {
		if d > 0 {
			r.callTimeout = d
		}
	}
}

// WithLibrariesDir sets where declared libraries are looked up.
func WithLibrariesDir(dir string) Option {
	return func(r *Runtime) {
		r.librariesDir = dir
	}
}

// New creates a detached runtime.
func New(opts ...Option) *Runtime {
	r := &Runtime{
		factory:     NewStateFactory(),
		logger:      slog.Default(),
		callTimeout: DefaultCallTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Attach creates the shared Lua state and the host functions.
func (r *Runtime) Attach(ctx context.Context, cb *plugins.CallbackContext) error {
	if r.L != nil {
		return oops.In("lua").Code(CodeAlreadyAttached).Errorf("runtime already attached")
	}
	L, err := r.factory.NewState(ctx)
	if err != nil {
		return oops.In("lua").Wrapf(err, "create lua state")
	}

	var services plugins.Services
	var store plugins.KVStore
	if cb != nil {
		services, store = cb.Services, cb.Store
		if cb.Logger != nil {
			r.logger = cb.Logger
		}
	}
	r.L = L
	r.services = services
	r.funcs = hostfunc.New(services, store,
		hostfunc.WithEnforcer(r.enforcer),
		hostfunc.WithHooks(r),
		hostfunc.WithLogger(r.logger),
		hostfunc.WithCallTimeout(r.callTimeout),
	)
	r.instances = make(map[string]*instance)
	r.commands = make(map[string]commandRef)
	return nil
}

// Detach closes every artifact and the Lua state.
func (r *Runtime) Detach(_ context.Context) error {
	if r.L == nil {
		return nil
	}
	for _, inst := range r.instances {
		inst.close()
	}
	r.L.Close()
	r.L = nil
	r.instances = nil
	r.commands = nil
	return nil
}

// CreateInstance loads a plugin's main script and binds its commands.
func (r *Runtime) CreateInstance(ctx context.Context, req plugins.InstanceRequest) (plugins.Handle, error) {
	if r.L == nil {
		return nil, errNotAttached()
	}
	if _, dup := r.instances[req.Key]; dup {
		return nil, oops.In("lua").Code(CodeDuplicateInstance).With("plugin", req.Key).
			Errorf("plugin %q already has an instance", req.Key)
	}

	inst, err := r.load(ctx, req)
	if err != nil {
		return nil, err
	}
	r.instances[inst.key] = inst
	r.bindCommands(inst)
	r.logger.Debug("plugin instance created",
		"plugin", inst.key,
		"main", req.Main,
		"search_paths", len(inst.search),
		"libraries", len(inst.libraries))
	return inst, nil
}

// Enable calls the plugin's on_enable.
func (r *Runtime) Enable(ctx context.Context, h plugins.Handle) error {
	inst, err := r.instance(h)
	if err != nil {
		return err
	}
	done := r.guard(ctx)
	defer done()

	if _, _, err := r.callHook(inst, "on_enable"); err != nil {
		inst.listeners = nil
		return scriptError(err, inst.key, "on_enable")
	}
	inst.enabled = true
	return nil
}

// Disable calls the plugin's on_disable. The plugin is disabled and its
// listeners dropped even when on_disable fails.
func (r *Runtime) Disable(ctx context.Context, h plugins.Handle) error {
	inst, err := r.instance(h)
	if err != nil {
		return err
	}
	inst.enabled = false
	inst.listeners = nil

	done := r.guard(ctx)
	defer done()
	if _, _, err := r.callHook(inst, "on_disable"); err != nil {
		return scriptError(err, inst.key, "on_disable")
	}
	return nil
}

// Listeners reports how many listeners the plugin holds per event type name.
func (r *Runtime) Listeners(h plugins.Handle) map[string]plugins.ListenerHandle {
	inst, err := r.instance(h)
	if err != nil {
		return nil
	}
	counts := map[string]int{}
	for _, l := range inst.listeners {
		counts[l.Kind.String()]++
	}
	out := make(map[string]plugins.ListenerHandle, len(counts))
	for name, n := range counts {
		out[name] = n
	}
	return out
}

// Listen records a listener registered from plugin code.
func (r *Runtime) Listen(plugin string, l hostfunc.Listener) error {
	inst, ok := r.instances[plugin]
	if !ok {
		return oops.In("lua").Code(CodeUnknownHandle).With("plugin", plugin).Errorf("unknown plugin %q", plugin)
	}
	inst.listeners = append(inst.listeners, l)
	return nil
}

// Dispatch runs a command line. A line naming no bound command, or a command
// of a plugin that is not enabled, is not handled.
func (r *Runtime) Dispatch(ctx context.Context, sender pluginsdk.Sender, line string, loc *pluginsdk.Location) (bool, error) {
	if r.L == nil {
		return false, errNotAttached()
	}
	label, args := splitCommand(line)
	ref, ok := r.commands[label]
	if !ok || !ref.inst.enabled {
		return false, nil
	}

	done := r.guard(ctx)
	defer done()
	ret, found, err := r.callHook(ref.inst, "on_command", hostfunc.SenderValue(sender), lua.LString(label), r.stringTable(args), r.locationValue(loc))
	if err != nil {
		return false, scriptError(err, ref.inst.key, "on_command", "command", ref.name)
	}
	if (!found || ret == lua.LFalse) && ref.spec.Usage != "" && r.services != nil {
		r.services.SendMessage(ctx, sender, strings.ReplaceAll(ref.spec.Usage, "<command>", label))
	}
	return true, nil
}

// TabComplete completes command labels for a bare prefix, and otherwise asks
// the owning plugin's on_tab_complete.
func (r *Runtime) TabComplete(ctx context.Context, sender pluginsdk.Sender, line string, loc *pluginsdk.Location) ([]string, error) {
	if r.L == nil {
		return nil, errNotAttached()
	}
	trimmed := strings.TrimPrefix(strings.TrimLeft(line, " "), "/")
	if !strings.Contains(trimmed, " ") {
		return r.completeLabels(strings.ToLower(trimmed)), nil
	}

	label, args := splitCommand(trimmed)
	if strings.HasSuffix(trimmed, " ") {
		args = append(args, "")
	}
	ref, ok := r.commands[label]
	if !ok || !ref.inst.enabled {
		return []string{}, nil
	}

	done := r.guard(ctx)
	defer done()
	ret, _, err := r.callHook(ref.inst, "on_tab_complete", hostfunc.SenderValue(sender), lua.LString(label), r.stringTable(args), r.locationValue(loc))
	if err != nil {
		return nil, scriptError(err, ref.inst.key, "on_tab_complete", "command", ref.name)
	}

	out := []string{}
	if tbl, ok := ret.(*lua.LTable); ok {
		for i := 1; i <= tbl.Len(); i++ {
			if s, ok := tbl.RawGetInt(i).(lua.LString); ok {
				out = append(out, string(s))
			}
		}
	}
	return out, nil
}

// FireEvent runs the plugin's listeners for the event in priority order.
// A failing listener is logged and the rest still run.
func (r *Runtime) FireEvent(ctx context.Context, event pluginsdk.Event, plugin string) (bool, error) {
	if r.L == nil {
		return false, errNotAttached()
	}
	inst, ok := r.instances[plugins.NormalizeName(plugin)]
	if !ok || !inst.enabled || event == nil {
		return false, nil
	}
	kind := event.Kind()
	var matched []hostfunc.Listener
	for _, l := range inst.listeners {
		if l.Kind == kind {
			matched = append(matched, l)
		}
	}
	if len(matched) == 0 {
		return false, nil
	}
	slices.SortStableFunc(matched, func(a, b hostfunc.Listener) int {
		return int(a.Priority) - int(b.Priority)
	})

	done := r.guard(ctx)
	defer done()
	tbl := hostfunc.EventTable(r.L, event)
	cancelled := func() bool {
		return kind.Cancellable() && lua.LVAsBool(tbl.RawGetString("cancelled"))
	}
	for _, l := range matched {
		if l.IgnoreCancelled && cancelled() {
			continue
		}
		if err := r.L.CallByParam(lua.P{Fn: l.Fn, NRet: 0, Protect: true}, tbl); err != nil {
			r.logger.Error("event listener failed",
				"plugin", inst.key,
				"event", kind.String(),
				"priority", l.Priority.String(),
				"error", err)
		}
	}
	return cancelled(), nil
}

// locationValue renders an optional location, nil when absent.
func (r *Runtime) locationValue(loc *pluginsdk.Location) lua.LValue {
	if loc == nil {
		return lua.LNil
	}
	return hostfunc.LocationTable(r.L, *loc)
}

// guard bounds plugin code by ctx and the call timeout.
func (r *Runtime) guard(ctx context.Context) func() {
	ctx, cancel := context.WithTimeout(ctx, r.callTimeout)
	r.L.SetContext(ctx)
	return func() {
		r.L.RemoveContext()
		cancel()
	}
}

// callHook calls a method of the plugin table with the table as self. found
// is false when the plugin does not define the method.
func (r *Runtime) callHook(inst *instance, name string, args ...lua.LValue) (ret lua.LValue, found bool, err error) {
	fn, ok := inst.table.RawGetString(name).(*lua.LFunction)
	if !ok {
		return lua.LNil, false, nil
	}
	if err := r.L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, append([]lua.LValue{inst.table}, args...)...); err != nil {
		return lua.LNil, true, err
	}
	ret = r.L.Get(-1)
	r.L.Pop(1)
	return ret, true, nil
}

func (r *Runtime) instance(h plugins.Handle) (*instance, error) {
	if r.L == nil {
		return nil, errNotAttached()
	}
	inst, ok := h.(*instance)
	if !ok || r.instances[inst.key] != inst {
		return nil, oops.In("lua").Code(CodeUnknownHandle).With("handle", h).Errorf("unknown plugin handle")
	}
	return inst, nil
}

// bindCommands binds each command name and alias, plus the always-unique
// "<plugin>:<command>" label. A bare label already bound to another plugin
// keeps its first owner.
func (r *Runtime) bindCommands(inst *instance) {
	for _, name := range slices.Sorted(maps.Keys(inst.commands)) {
		ref := commandRef{inst: inst, name: name, spec: inst.commands[name]}
		for _, label := range append([]string{name}, ref.spec.Aliases...) {
			label = strings.ToLower(strings.TrimSpace(label))
			if owner, taken := r.commands[label]; taken && owner.inst != inst {
				r.logger.Warn("command label already bound to another plugin",
					"label", label,
					"plugin", inst.key,
					"owner", owner.inst.key)
				continue
			}
			r.commands[label] = ref
		}
		r.commands[plugins.QualifiedLabel(inst.key, name)] = ref
	}
}

// completeLabels returns bound labels of enabled plugins starting with
// prefix. Plugin-qualified labels are offered once the prefix holds a colon.
func (r *Runtime) completeLabels(prefix string) []string {
	qualified := strings.Contains(prefix, ":")
	out := []string{}
	for label, ref := range r.commands {
		if !ref.inst.enabled || !strings.HasPrefix(label, prefix) {
			continue
		}
		if strings.Contains(label, ":") && !qualified {
			continue
		}
		out = append(out, label)
	}
	slices.Sort(out)
	return out
}

func (r *Runtime) stringTable(values []string) *lua.LTable {
	t := r.L.CreateTable(len(values), 0)
	for _, v := range values {
		t.Append(lua.LString(v))
	}
	return t
}

// splitCommand returns the lower-cased label and the arguments of a line.
func splitCommand(line string) (string, []string) {
	fields := strings.Fields(strings.TrimPrefix(strings.TrimSpace(line), "/"))
	if len(fields) == 0 {
		return "", nil
	}
	return strings.ToLower(fields[0]), fields[1:]
}

func errNotAttached() error {
	return oops.In("lua").Code(CodeNotAttached).Errorf("runtime not attached")
}

func scriptError(err error, plugin, hook string, kv ...any) error {
	return oops.In("lua").
		Code(CodeScriptError).
		With("plugin", plugin, "hook", hook).
		With(kv...).
		Wrapf(err, "%s failed", hook)
}
