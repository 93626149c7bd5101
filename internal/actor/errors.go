// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package actor

import (
	"errors"

	"github.com/samber/oops"
)

// Error codes for actor failures.
const (
	CodeAlreadyInitialized = "ALREADY_INITIALIZED"
	CodeNotInitialized     = "NOT_INITIALIZED"
	CodeInitializeFailed   = "INITIALIZE_FAILED"
	CodeUnknownPlugin      = "UNKNOWN_PLUGIN"
	CodeDispatchFailed     = "DISPATCH_FAILED"
	CodeTabCompleteFailed  = "TAB_COMPLETE_FAILED"
	CodeFireEventFailed    = "FIRE_EVENT_FAILED"
)

// ErrStopped resolves every message still queued when the worker exits.
var ErrStopped = errors.New("runtime actor stopped")

// ErrAlreadyInitialized is returned by a second Initialize. The first
// attachment is left untouched.
func ErrAlreadyInitialized() error {
	return oops.In("actor").
		Code(CodeAlreadyInitialized).
		Errorf("runtime already initialized")
}

// ErrNotInitialized is returned for boundary operations issued before Initialize.
func ErrNotInitialized(kind string) error {
	return oops.In("actor").
		Code(CodeNotInitialized).
		With("message", kind).
		Errorf("runtime not initialized")
}

// ErrUnknownPlugin reports a key that is not in the registry.
func ErrUnknownPlugin(key string) error {
	return oops.In("actor").
		Code(CodeUnknownPlugin).
		With("plugin", key).
		Errorf("unknown plugin %q", key)
}
