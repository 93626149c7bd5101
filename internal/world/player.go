// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package world

import (
	"regexp"

	"github.com/google/uuid"

	pluginsdk "github.com/holomush/plugbridge/pkg/plugin"
)

// Player name limits.
const (
	MinPlayerNameLength = 3
	MaxPlayerNameLength = 16
)

var playerNameRegex = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Player is a connected or previously connected player.
type Player struct {
	ID        uuid.UUID
	Name      string
	Op        bool
	Online    bool
	Location  pluginsdk.Location
	Abilities pluginsdk.Abilities
}

// OfflineID derives the stable id of a player on a server without
// account authentication.
func OfflineID(name string) uuid.UUID {
	return uuid.NewMD5(uuid.Nil, []byte("OfflinePlayer:"+name))
}

// ValidatePlayerName checks that a name has 3-16 letters, digits or underscores.
func ValidatePlayerName(name string) error {
	if len(name) < MinPlayerNameLength || len(name) > MaxPlayerNameLength {
		return &ValidationError{Field: "name", Message: "must be 3 to 16 characters"}
	}
	if !playerNameRegex.MatchString(name) {
		return &ValidationError{Field: "name", Message: "may only contain letters, digits and underscores"}
	}
	return nil
}

// Sender returns the player as a command sender.
func (p Player) Sender() pluginsdk.Sender {
	return pluginsdk.PlayerSender(p.ID)
}
