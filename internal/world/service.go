// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package world is the host server model the bridge plugs into: players,
// their abilities and positions, chat, and the event subscriptions plugins
// hold.
package world

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	plugins "github.com/holomush/plugbridge/internal/plugin"
	pluginsdk "github.com/holomush/plugbridge/pkg/plugin"
)

// EventSink delivers events to one plugin. The bridge implements it.
type EventSink interface {
	// FireEvent waits for the plugin's listeners and reports cancellation.
	FireEvent(ctx context.Context, event pluginsdk.Event, plugin string) bool
	// Notify queues the event without waiting for it.
	Notify(ctx context.Context, event pluginsdk.Event, plugin string) error
}

// DefaultWorld is the id of the world players spawn in.
var DefaultWorld = uuid.NewMD5(uuid.Nil, []byte("world"))

type subscription struct {
	plugin   string
	priority pluginsdk.Priority
	blocking bool
}

// Service is the in-memory server. It is safe for concurrent use.
//
// The plugins.Services methods run on the runtime actor's goroutine. They
// never call the EventSink synchronously; deliveries that would wait on the
// actor are handed to goroutines tracked by Wait.
type Service struct {
	mu      sync.RWMutex
	players map[uuid.UUID]*Player
	subs    map[pluginsdk.EventKind]map[string]subscription

	sink   EventSink
	out    Output
	spawn  pluginsdk.Location
	ops    map[uuid.UUID]bool
	logger *slog.Logger
	wg     sync.WaitGroup
}

var _ plugins.Services = (*Service)(nil)

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSpawn sets where new players appear.
func WithSpawn(loc pluginsdk.Location) Option {
	return func(s *Service) {
		s.spawn = loc
	}
}

// WithOps makes the named players operators when they first join.
func WithOps(names ...string) Option {
	return func(s *Service) {
		for _, name := range names {
			s.ops[OfflineID(name)] = true
		}
	}
}

// New creates a server with no players. sink may be nil, in which case
// events reach no plugin.
func New(sink EventSink, out Output, opts ...Option) *Service {
	s := &Service{
		players: make(map[uuid.UUID]*Player),
		subs:    make(map[pluginsdk.EventKind]map[string]subscription),
		sink:    sink,
		out:     out,
		spawn:   pluginsdk.Location{World: DefaultWorld},
		ops:     make(map[uuid.UUID]bool),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Wait blocks until every queued delivery has run.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Join brings a player online, creating them on first join, and fires
// PlayerJoin to every subscribed plugin.
func (s *Service) Join(ctx context.Context, name string) (Player, error) {
	if err := ValidatePlayerName(name); err != nil {
		return Player{}, err
	}
	id := OfflineID(name)

	s.mu.Lock()
	p, ok := s.players[id]
	if !ok {
		p = &Player{ID: id, Name: name, Op: s.ops[id], Location: s.spawn, Abilities: pluginsdk.DefaultAbilities()}
		s.players[id] = p
	}
	p.Online = true
	joined := *p
	s.mu.Unlock()

	s.logger.Info("player joined", "player", name, "id", id.String())
	msg := name + " joined the game"
	s.fire(ctx, pluginsdk.PlayerJoin{Player: id, Name: name, Message: msg})
	s.broadcast(msg)
	return joined, nil
}

// Quit takes a player offline and fires PlayerQuit.
func (s *Service) Quit(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	p, ok := s.players[id]
	if !ok || !p.Online {
		s.mu.Unlock()
		return ErrPlayerOffline(id)
	}
	p.Online = false
	name := p.Name
	s.mu.Unlock()

	s.logger.Info("player quit", "player", name, "id", id.String())
	msg := name + " left the game"
	s.fire(ctx, pluginsdk.PlayerQuit{Player: id, Name: name, Message: msg})
	s.broadcast(msg)
	return nil
}

// Chat sends a chat message from a player. Subscribed plugins see the
// message first, in priority order; it is broadcast only if none cancels it.
func (s *Service) Chat(ctx context.Context, id uuid.UUID, message string) (bool, error) {
	p, err := s.online(id)
	if err != nil {
		return false, err
	}
	if s.fire(ctx, pluginsdk.PlayerChat{Player: id, Name: p.Name, Message: message}) {
		s.logger.Debug("chat message cancelled by a plugin", "player", p.Name)
		return false, nil
	}
	s.broadcast("<" + p.Name + "> " + message)
	return true, nil
}

// fire delivers ev to each subscriber in priority order and waits for
// them. Delivery stops at the first plugin that cancels a cancellable event.
func (s *Service) fire(ctx context.Context, ev pluginsdk.Event) bool {
	if s.sink == nil {
		return false
	}
	for _, sub := range s.subscribers(ev.Kind()) {
		if s.sink.FireEvent(ctx, ev, sub.plugin) && ev.Kind().Cancellable() {
			return true
		}
	}
	return false
}

func (s *Service) broadcast(text string) {
	if s.out == nil {
		return
	}
	s.out.Message(Recipient{Sender: pluginsdk.Console}, text)
	for _, p := range s.Players() {
		if p.Online {
			s.out.Message(Recipient{Sender: p.Sender(), Name: p.Name}, text)
		}
	}
}

// Players returns copies of every known player sorted by name.
func (s *Service) Players() []Player {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Player, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, *p)
	}
	slices.SortFunc(out, func(a, b Player) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Player returns a copy of one player.
func (s *Service) Player(id uuid.UUID) (Player, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.players[id]
	if !ok {
		return Player{}, false
	}
	return *p, true
}

// PlayerByName finds a player by name, ignoring case.
func (s *Service) PlayerByName(name string) (Player, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.players {
		if strings.EqualFold(p.Name, name) {
			return *p, true
		}
	}
	return Player{}, false
}

// SetOp grants or revokes operator status.
func (s *Service) SetOp(id uuid.UUID, op bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[id]
	if !ok {
		return ErrPlayerNotFound(id)
	}
	p.Op = op
	return nil
}

// IsOp reports whether the player is an operator.
func (s *Service) IsOp(id uuid.UUID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.players[id]
	return ok && p.Op
}

// Teleport moves a player.
func (s *Service) Teleport(id uuid.UUID, loc pluginsdk.Location) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[id]
	if !ok {
		return ErrPlayerNotFound(id)
	}
	p.Location = loc
	return nil
}

// Subscribers returns the plugins subscribed to kind in delivery order.
func (s *Service) Subscribers(kind pluginsdk.EventKind) []string {
	subs := s.subscribers(kind)
	out := make([]string, len(subs))
	for i, sub := range subs {
		out[i] = sub.plugin
	}
	return out
}

func (s *Service) subscribers(kind pluginsdk.EventKind) []subscription {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]subscription, 0, len(s.subs[kind]))
	for _, sub := range s.subs[kind] {
		out = append(out, sub)
	}
	slices.SortFunc(out, func(a, b subscription) int {
		return cmp.Or(cmp.Compare(a.priority, b.priority), strings.Compare(a.plugin, b.plugin))
	})
	return out
}

func (s *Service) online(id uuid.UUID) (Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.players[id]
	if !ok {
		return Player{}, ErrPlayerNotFound(id)
	}
	if !p.Online {
		return Player{}, ErrPlayerOffline(id)
	}
	return *p, nil
}

func (s *Service) recipient(to pluginsdk.Sender) (Recipient, bool) {
	if to.IsConsole() {
		return Recipient{Sender: to}, true
	}
	p, err := s.online(to.Player)
	if err != nil {
		return Recipient{}, false
	}
	return Recipient{Sender: to, Name: p.Name}, true
}

// async runs fn on its own goroutine, tracked by Wait.
func (s *Service) async(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}
