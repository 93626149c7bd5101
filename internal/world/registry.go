// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package world

import (
	"context"

	"github.com/google/uuid"

	pluginsdk "github.com/holomush/plugbridge/pkg/plugin"
)

// soundEvents lists the sound events the server knows, in protocol id order.
var soundEvents = []string{
	"ambient.cave",
	"block.anvil.land",
	"block.bell.use",
	"block.chest.close",
	"block.chest.open",
	"block.note_block.bass",
	"block.note_block.bell",
	"block.note_block.chime",
	"block.note_block.harp",
	"block.note_block.pling",
	"entity.experience_orb.pickup",
	"entity.generic.explode",
	"entity.item.pickup",
	"entity.player.levelup",
	"entity.villager.no",
	"entity.villager.yes",
	"ui.button.click",
	"ui.toast.challenge_complete",
}

// World returns the id of the world the player is in.
func (s *Service) World(_ context.Context, entity uuid.UUID) (uuid.UUID, error) {
	p, ok := s.Player(entity)
	if !ok {
		return uuid.Nil, ErrPlayerNotFound(entity)
	}
	return p.Location.World, nil
}

// Registry returns a copy of a named data registry. Only the sound event
// registry exists.
func (s *Service) Registry(_ context.Context, name string) (pluginsdk.Registry, bool) {
	if name != pluginsdk.RegistrySoundEvent {
		return pluginsdk.Registry{}, false
	}
	entries := make([]pluginsdk.RegistryEntry, len(soundEvents))
	for id, sound := range soundEvents {
		entries[id] = pluginsdk.RegistryEntry{Name: sound, ID: id}
	}
	return pluginsdk.Registry{Entries: entries, Tags: map[string][]string{}}, true
}
