// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

import (
	"fmt"

	"github.com/google/uuid"
)

// SenderKind distinguishes the console from players.
type SenderKind uint8

// Sender kinds.
const (
	SenderConsole SenderKind = iota
	SenderPlayer
)

// Sender identifies who issued a command.
type Sender struct {
	Kind SenderKind
	// Player is set only for SenderPlayer.
	Player uuid.UUID
}

// Console is the server console sender.
var Console = Sender{Kind: SenderConsole}

// PlayerSender returns a sender for the given player.
func PlayerSender(id uuid.UUID) Sender {
	return Sender{Kind: SenderPlayer, Player: id}
}

// IsConsole reports whether the sender is the console.
func (s Sender) IsConsole() bool { return s.Kind == SenderConsole }

// String returns "console" or "player:<uuid>".
func (s Sender) String() string {
	if s.IsConsole() {
		return "console"
	}
	return "player:" + s.Player.String()
}

// Vec3 is a position in world coordinates.
type Vec3 struct {
	X, Y, Z float64
}

// Rotation is a view direction in degrees.
type Rotation struct {
	Yaw   float32
	Pitch float32
}

// Location is a position inside a specific world. It is attached to a single
// request and never retained by the bridge.
type Location struct {
	World    uuid.UUID
	Position Vec3
	Rotation *Rotation
}

// String renders the location for logs.
func (l Location) String() string {
	s := fmt.Sprintf("%s(%.2f, %.2f, %.2f)", l.World, l.Position.X, l.Position.Y, l.Position.Z)
	if l.Rotation != nil {
		s += fmt.Sprintf(" yaw=%.1f pitch=%.1f", l.Rotation.Yaw, l.Rotation.Pitch)
	}
	return s
}

// Abilities are the player ability flags plugins may read and write.
type Abilities struct {
	Invulnerable     bool
	Flying           bool
	AllowFlying      bool
	Creative         bool
	AllowModifyWorld bool
	FlySpeed         float32
	WalkSpeed        float32
}

// DefaultAbilities returns the abilities of a freshly joined survival player.
func DefaultAbilities() Abilities {
	return Abilities{
		AllowModifyWorld: true,
		FlySpeed:         0.05,
		WalkSpeed:        0.1,
	}
}

// Sound describes a sound to play.
type Sound struct {
	Name     string
	Category string
	Volume   float32
	Pitch    float32
}

// RegistrySoundEvent names the registry of sound events.
const RegistrySoundEvent = "sound_event"

// RegistryEntry is one entry of a host registry. ID is the entry's protocol id.
type RegistryEntry struct {
	Name string
	ID   int
}

// Registry is a read-only view of a host data registry.
type Registry struct {
	Entries []RegistryEntry
	Tags    map[string][]string
}
