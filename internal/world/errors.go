// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package world

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/samber/oops"
)

// Error codes for world operations.
const (
	CodePlayerNotFound = "PLAYER_NOT_FOUND"
	CodePlayerOffline  = "PLAYER_OFFLINE"
	CodeInvalidPlayer  = "INVALID_PLAYER"
)

// ValidationError represents an input validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ErrPlayerNotFound creates an error for an unknown player id.
func ErrPlayerNotFound(id uuid.UUID) error {
	return oops.In("world").Code(CodePlayerNotFound).
		With("player", id.String()).
		Errorf("player %s not found", id)
}

// ErrPlayerOffline creates an error for a player who is not online.
func ErrPlayerOffline(id uuid.UUID) error {
	return oops.In("world").Code(CodePlayerOffline).
		With("player", id.String()).
		Errorf("player %s is offline", id)
}
