// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package lua is the embedded plugin runtime: a single sandboxed gopher-lua
// state shared by every plugin, each plugin running in its own environment.
package lua

import (
	"context"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"
)

// safeLibrary is a library that may be opened in the sandbox.
type safeLibrary struct {
	name string
	fn   lua.LGFunction
}

// defaultSafeLibraries are base, table, string, math and coroutine.
// os, io, debug, channel and package stay closed.
func defaultSafeLibraries() []safeLibrary {
	return []safeLibrary{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
		{lua.CoroutineLibName, lua.OpenCoroutine},
	}
}

// unsafeBaseFunctions reach the file system or compile arbitrary strings.
// The runtime installs its own require per plugin.
var unsafeBaseFunctions = []string{"dofile", "loadfile", "loadstring", "load", "require", "module"}

// StateFactory creates sandboxed Lua states.
type StateFactory struct {
	libraries     []safeLibrary
	callStackSize int
}

// NewStateFactory creates a factory with the default safe libraries.
func NewStateFactory() *StateFactory {
	return &StateFactory{
		libraries:     defaultSafeLibraries(),
		callStackSize: lua.CallStackSize,
	}
}

// NewState creates a state with only the safe libraries loaded and the unsafe
// base functions removed.
func (f *StateFactory) NewState(_ context.Context) (*lua.LState, error) {
	L := lua.NewState(lua.Options{
		SkipOpenLibs:        true,
		CallStackSize:       f.callStackSize,
		IncludeGoStackTrace: false,
	})

	for _, lib := range f.libraries {
		if err := L.CallByParam(lua.P{
			Fn:      L.NewFunction(lib.fn),
			NRet:    0,
			Protect: true,
		}, lua.LString(lib.name)); err != nil {
			L.Close()
			return nil, oops.In("lua").With("library", lib.name).Wrapf(err, "failed to open library %s", lib.name)
		}
	}

	for _, fn := range unsafeBaseFunctions {
		L.SetGlobal(fn, lua.LNil)
	}
	return L, nil
}
