// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package world

import (
	"context"

	"github.com/google/uuid"

	pluginsdk "github.com/holomush/plugbridge/pkg/plugin"
)

// SendMessage queues a message for a player or the console. Messages to
// players who are not online are dropped.
func (s *Service) SendMessage(_ context.Context, to pluginsdk.Sender, message string) {
	r, ok := s.recipient(to)
	if !ok {
		s.logger.Debug("dropping message to offline player", "player", to.Player.String())
		return
	}
	if s.out == nil {
		return
	}
	s.async(func() { s.out.Message(r, message) })
}

// Abilities returns a player's abilities.
func (s *Service) Abilities(_ context.Context, player uuid.UUID) (pluginsdk.Abilities, error) {
	p, ok := s.Player(player)
	if !ok {
		return pluginsdk.Abilities{}, ErrPlayerNotFound(player)
	}
	return p.Abilities, nil
}

// SetAbilities replaces a player's abilities.
func (s *Service) SetAbilities(_ context.Context, player uuid.UUID, abilities pluginsdk.Abilities) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[player]
	if !ok {
		return ErrPlayerNotFound(player)
	}
	p.Abilities = abilities
	return nil
}

// Location returns where a player is.
func (s *Service) Location(_ context.Context, player uuid.UUID) (pluginsdk.Location, error) {
	p, ok := s.Player(player)
	if !ok {
		return pluginsdk.Location{}, ErrPlayerNotFound(player)
	}
	return p.Location, nil
}

// PlaySound queues a positional sound for an online player.
func (s *Service) PlaySound(_ context.Context, player uuid.UUID, at pluginsdk.Vec3, sound pluginsdk.Sound) error {
	p, err := s.online(player)
	if err != nil {
		return err
	}
	if s.out != nil {
		r := Recipient{Sender: p.Sender(), Name: p.Name}
		s.async(func() { s.out.Sound(r, sound, at) })
	}
	return nil
}

// PlayEntitySound queues a sound emitted by an entity. Players are the only
// entities the server tracks.
func (s *Service) PlayEntitySound(ctx context.Context, player, entity uuid.UUID, sound pluginsdk.Sound) error {
	source, ok := s.Player(entity)
	if !ok {
		return ErrPlayerNotFound(entity)
	}
	return s.PlaySound(ctx, player, source.Location.Position, sound)
}

// Subscribe records that plugin listens for kind. A plugin subscribes once
// per kind, at the lowest priority it asked for.
func (s *Service) Subscribe(plugin string, kind pluginsdk.EventKind, priority pluginsdk.Priority, blocking bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subs[kind] == nil {
		s.subs[kind] = make(map[string]subscription)
	}
	sub, ok := s.subs[kind][plugin]
	if !ok || priority < sub.priority {
		sub.priority = priority
	}
	sub.plugin = plugin
	sub.blocking = sub.blocking || blocking
	s.subs[kind][plugin] = sub
	s.logger.Debug("plugin subscribed",
		"plugin", plugin,
		"event", kind.String(),
		"priority", sub.priority.String())
}

// Unsubscribe drops every subscription of plugin.
func (s *Service) Unsubscribe(plugin string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, subs := range s.subs {
		delete(subs, plugin)
	}
}

// CallEvent queues ev for every subscribed plugin and reports whether there
// were any.
func (s *Service) CallEvent(ctx context.Context, ev pluginsdk.Event) bool {
	subs := s.subscribers(ev.Kind())
	if len(subs) == 0 || s.sink == nil {
		return false
	}
	ctx = context.WithoutCancel(ctx)
	s.async(func() {
		for _, sub := range subs {
			if err := s.sink.Notify(ctx, ev, sub.plugin); err != nil {
				s.logger.Warn("event delivery failed",
					"plugin", sub.plugin,
					"event", ev.Kind().String(),
					"error", err)
			}
		}
	})
	return true
}
