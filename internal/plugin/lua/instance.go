// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//nolint:gocritic // captLocal: L is the idiomatic name for lua.LState
package lua

import (
	"bytes"
	"context"
	"io/fs"
	"maps"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"

	plugins "github.com/holomush/plugbridge/internal/plugin"
	"github.com/holomush/plugbridge/internal/plugin/hostfunc"
)

// instance is one loaded plugin. It is the Handle the runtime hands out.
type instance struct {
	key        string
	name       string
	dataFolder string

	env   *lua.LTable
	table *lua.LTable

	// search is the plugin's own artifact followed by its classpath entries.
	search    []fs.FS
	libraries []plugins.Coordinate
	closers   []func()
	loaded    map[string]lua.LValue

	commands  map[string]plugins.CommandSpec
	listeners []hostfunc.Listener
	enabled   bool
}

func (i *instance) close() {
	for _, c := range i.closers {
		c()
	}
	i.closers = nil
}

// mainPath maps a dotted main name onto a script path: a.b.Main -> a/b/Main.lua.
func mainPath(main string) string {
	return path.Join(strings.Split(main, ".")...) + ".lua"
}

// load opens the artifact and its classpath, runs the main script in a fresh
// environment and keeps the plugin table it yields.
func (r *Runtime) load(ctx context.Context, req plugins.InstanceRequest) (*instance, error) {
	fsys, closeFn, err := plugins.OpenArtifact(req.Path)
	if err != nil {
		return nil, err
	}
	inst := &instance{
		key:        req.Key,
		name:       req.Name,
		dataFolder: req.DataFolder,
		search:     []fs.FS{fsys},
		closers:    []func(){closeFn},
		loaded:     map[string]lua.LValue{},
		commands:   maps.Clone(req.Commands),
	}
	if inst.commands == nil {
		inst.commands = map[string]plugins.CommandSpec{}
	}

	for _, entry := range strings.Split(req.Classpath, ";") {
		if entry == "" {
			continue
		}
		cfs, closeEntry, err := plugins.OpenArtifact(entry)
		if err != nil {
			r.logger.Warn("skipping unreadable classpath entry", "plugin", req.Key, "path", entry, "error", err)
			continue
		}
		inst.search = append(inst.search, cfs)
		inst.closers = append(inst.closers, closeEntry)
	}
	for _, raw := range strings.Split(req.Libraries, "\n") {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		coord, err := plugins.ParseCoordinate(raw)
		if err != nil {
			r.logger.Warn("skipping malformed library", "plugin", req.Key, "library", raw, "error", err)
			continue
		}
		inst.libraries = append(inst.libraries, coord)
	}

	script := mainPath(req.Main)
	src, err := fs.ReadFile(fsys, script)
	if err != nil {
		inst.close()
		return nil, oops.In("lua").Code(CodeMainNotFound).
			With("plugin", req.Key, "main", req.Main, "script", script).
			Wrapf(err, "read main script")
	}

	inst.env = r.newEnv(inst)
	done := r.guard(ctx)
	ret, err := r.run(inst, src, script)
	done()
	if err != nil {
		inst.close()
		return nil, scriptError(err, req.Key, "main", "script", script)
	}

	table, ok := ret.(*lua.LTable)
	if !ok {
		table, ok = inst.env.RawGetString("plugin").(*lua.LTable)
	}
	if !ok {
		inst.close()
		return nil, oops.In("lua").Code(CodeNoPluginTable).
			With("plugin", req.Key, "script", script).
			Errorf("main script neither returned nor defined a plugin table")
	}
	inst.table = table
	return inst, nil
}

// newEnv creates the plugin's global environment. Reads fall through to the
// shared sandbox globals; writes stay in the plugin's table.
func (r *Runtime) newEnv(inst *instance) *lua.LTable {
	L := r.L
	env := L.NewTable()
	meta := L.NewTable()
	meta.RawSetString("__index", L.G.Global)
	L.SetMetatable(env, meta)

	env.RawSetString("_G", env)
	env.RawSetString(hostfunc.TableName, r.funcs.Table(L, inst.key))
	env.RawSetString("require", L.NewFunction(r.requireFn(inst)))
	env.RawSetString("print", L.NewFunction(r.printFn(inst)))
	env.RawSetString("PLUGIN_NAME", lua.LString(inst.name))
	env.RawSetString("DATA_FOLDER", lua.LString(inst.dataFolder))
	return env
}

// run compiles src in the plugin's environment and returns its first result.
func (r *Runtime) run(inst *instance, src []byte, name string) (lua.LValue, error) {
	fn, err := r.L.Load(bytes.NewReader(src), "@"+name)
	if err != nil {
		return lua.LNil, err
	}
	r.L.SetFEnv(fn, inst.env)
	if err := r.L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}); err != nil {
		return lua.LNil, err
	}
	ret := r.L.Get(-1)
	r.L.Pop(1)
	return ret, nil
}

// requireFn loads a module once per plugin, searching the plugin artifact,
// its classpath and then its declared libraries.
func (r *Runtime) requireFn(inst *instance) lua.LGFunction {
	return func(L *lua.LState) int {
		name := L.CheckString(1)
		if v, ok := inst.loaded[name]; ok {
			L.Push(v)
			return 1
		}

		src, origin, ok := r.findModule(inst, name)
		if !ok {
			L.RaiseError("module %q not found", name)
			return 0
		}
		fn, err := L.Load(bytes.NewReader(src), "@"+origin)
		if err != nil {
			L.RaiseError("error loading module %q: %s", name, err.Error())
			return 0
		}
		L.SetFEnv(fn, inst.env)
		L.Push(fn)
		L.Call(0, 1)
		v := L.Get(-1)
		L.Pop(1)
		if v == lua.LNil {
			v = lua.LTrue
		}
		inst.loaded[name] = v
		L.Push(v)
		return 1
	}
}

func (r *Runtime) findModule(inst *instance, name string) ([]byte, string, bool) {
	rel := strings.ReplaceAll(name, ".", "/") + ".lua"
	for _, fsys := range inst.search {
		if src, err := fs.ReadFile(fsys, rel); err == nil {
			return src, rel, true
		}
	}

	if r.librariesDir == "" {
		return nil, "", false
	}
	for _, c := range inst.libraries {
		if name != c.Artifact && name != c.Group+"."+c.Artifact {
			continue
		}
		file := filepath.Join(r.librariesDir, c.FileName()+".lua")
		if src, err := os.ReadFile(file); err == nil { //nolint:gosec // libraries dir is operator configured
			return src, file, true
		}
		r.logger.Warn("declared library missing from libraries directory",
			"plugin", inst.key,
			"library", c.String(),
			"file", file)
	}
	return nil, "", false
}

// printFn sends print output to the log, tagged with the plugin.
func (r *Runtime) printFn(inst *instance) lua.LGFunction {
	return func(L *lua.LState) int {
		parts := make([]string, 0, L.GetTop())
		for i := 1; i <= L.GetTop(); i++ {
			parts = append(parts, L.ToStringMeta(L.Get(i)).String())
		}
		r.logger.Info(strings.Join(parts, "\t"), "plugin", inst.key, "source", "print")
		return 0
	}
}
