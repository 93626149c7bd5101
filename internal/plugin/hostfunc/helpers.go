// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//nolint:gocritic // captLocal: L is the idiomatic name for lua.LState
package hostfunc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	lua "github.com/yuin/gopher-lua"
)

// defaultCallTimeout bounds a single host service call made from plugin code.
const defaultCallTimeout = 5 * time.Second

// pushError pushes nil followed by an error string and returns 2.
func pushError(L *lua.LState, errMsg string) int {
	L.Push(lua.LNil)
	L.Push(lua.LString(errMsg))
	return 2
}

// pushSuccess pushes a value followed by nil and returns 2.
func pushSuccess(L *lua.LState, value lua.LValue) int {
	L.Push(value)
	L.Push(lua.LNil)
	return 2
}

// callContext derives a bounded context from the one the runtime set on L.
func (f *Functions) callContext(L *lua.LState) (context.Context, context.CancelFunc) {
	parent := L.Context()
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, f.timeout)
}

// parsePlayer reads a player UUID argument. On failure it pushes nil, err
// and reports false.
func (f *Functions) parsePlayer(L *lua.LState, n int, plugin, funcName string) (uuid.UUID, bool) {
	raw := L.CheckString(n)
	id, err := uuid.Parse(raw)
	if err != nil {
		f.logger.Debug(funcName+": invalid player id",
			"plugin", plugin,
			"player", raw,
			"error", err)
		pushError(L, fmt.Sprintf("invalid player id: %s", err.Error()))
		return uuid.Nil, false
	}
	return id, true
}

// sanitize turns a host error into a message safe to hand to plugin code.
// The full error is logged under a correlation id that the message carries.
func (f *Functions) sanitize(plugin, funcName string, err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		f.logger.Warn("host call from plugin timed out",
			"plugin", plugin,
			"function", funcName,
			"timeout", f.timeout)
		return "operation timed out"
	}
	errorID := ulid.Make().String()
	f.logger.Error("host call from plugin failed",
		"error_id", errorID,
		"plugin", plugin,
		"function", funcName,
		"error", err)
	return fmt.Sprintf("internal error (ref: %s)", errorID)
}

func number(t *lua.LTable, field string, def float64) float64 {
	if v, ok := t.RawGetString(field).(lua.LNumber); ok {
		return float64(v)
	}
	return def
}

func boolean(t *lua.LTable, field string, def bool) bool {
	if v, ok := t.RawGetString(field).(lua.LBool); ok {
		return bool(v)
	}
	return def
}

func str(t *lua.LTable, field string) string {
	if v, ok := t.RawGetString(field).(lua.LString); ok {
		return string(v)
	}
	return ""
}
