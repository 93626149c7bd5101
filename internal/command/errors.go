// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package command

import (
	"github.com/samber/oops"
)

// Error codes for command routing failures.
const (
	CodeUnknownCommand    = "UNKNOWN_COMMAND"
	CodePermissionDenied  = "PERMISSION_DENIED"
	CodeEmptyInput        = "EMPTY_INPUT"
	CodeInvalidName       = "INVALID_NAME"
	CodeInvalidPermission = "INVALID_PERMISSION"
	CodeRateLimited       = "RATE_LIMITED"
	CodeNotHandled        = "NOT_HANDLED"
	CodeCommandConflict   = "COMMAND_CONFLICT"
)

// ErrUnknownCommand creates an error for an unknown command.
func ErrUnknownCommand(cmd string) error {
	return oops.Code(CodeUnknownCommand).
		With("command", cmd).
		Errorf("unknown command: %s", cmd)
}

// ErrPermissionDenied creates an error for permission denial.
func ErrPermissionDenied(cmd, permission string) error {
	return oops.Code(CodePermissionDenied).
		With("command", cmd).
		With("permission", permission).
		Errorf("permission denied for command %s", cmd)
}

// ErrRateLimited creates an error for rate limiting.
func ErrRateLimited(cooldownMs int64) error {
	return oops.Code(CodeRateLimited).
		With("cooldown_ms", cooldownMs).
		Errorf("Too many commands. Please slow down.")
}

// ErrNotHandled is returned when the runtime did not run a registered
// command, usually because its plugin is not enabled.
func ErrNotHandled(cmd, plugin string) error {
	return oops.Code(CodeNotHandled).
		With("command", cmd).
		With("plugin", plugin).
		Errorf("command %s was not handled by %s", cmd, plugin)
}

// ErrCommandConflict is returned when a label is already owned by another
// plugin. The existing registration is kept.
func ErrCommandConflict(cmd, owner, rejected string) error {
	return oops.Code(CodeCommandConflict).
		With("command", cmd).
		With("owner", owner).
		With("rejected", rejected).
		Errorf("command %s is already registered by %s", cmd, owner)
}

// PlayerMessage extracts a player-facing message from an error.
func PlayerMessage(err error) string {
	if err == nil {
		return "Something went wrong. Try again."
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return "Something went wrong. Try again."
	}

	switch oopsErr.Code() {
	case CodeUnknownCommand:
		return "Unknown command. Type \"help\" for help."
	case CodePermissionDenied:
		if msg, ok := oopsErr.Context()["message"].(string); ok && msg != "" {
			return msg
		}
		return "I'm sorry, but you do not have permission to perform this command."
	case CodeEmptyInput:
		return "Type a command."
	case CodeRateLimited:
		return "Too many commands. Please slow down."
	case CodeNotHandled:
		return "That command is not available right now."
	default:
		return "Something went wrong. Try again."
	}
}
