// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package telnet

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/holomush/plugbridge/internal/world"
	pluginsdk "github.com/holomush/plugbridge/pkg/plugin"
)

// outboxSize bounds the lines queued for one slow connection.
const outboxSize = 64

// Hub routes world output to connected players. The console and players
// without a connection are served by the fallback output.
type Hub struct {
	mu       sync.RWMutex
	conns    map[uuid.UUID]chan string
	fallback world.Output
	logger   *slog.Logger
}

var _ world.Output = (*Hub)(nil)

// NewHub creates a hub. fallback may be nil.
func NewHub(fallback world.Output, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{conns: make(map[uuid.UUID]chan string), fallback: fallback, logger: logger}
}

// attach gives player a queue of outgoing lines. It fails if the player is
// already connected. detach closes the queue.
func (h *Hub) attach(player uuid.UUID) (<-chan string, func(), bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[player]; ok {
		return nil, nil, false
	}
	ch := make(chan string, outboxSize)
	h.conns[player] = ch
	var once sync.Once
	detach := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.conns, player)
			close(ch)
		})
	}
	return ch, detach, true
}

// Connected reports whether player has a live connection.
func (h *Hub) Connected(player uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.conns[player]
	return ok
}

// Message implements world.Output.
func (h *Hub) Message(to world.Recipient, text string) {
	if !h.deliver(to, text) && h.fallback != nil {
		h.fallback.Message(to, text)
	}
}

// Sound implements world.Output.
func (h *Hub) Sound(to world.Recipient, sound pluginsdk.Sound, at pluginsdk.Vec3) {
	text := fmt.Sprintf("* %s plays at (%.1f, %.1f, %.1f)", sound.Name, at.X, at.Y, at.Z)
	if !h.deliver(to, text) && h.fallback != nil {
		h.fallback.Sound(to, sound, at)
	}
}

// deliver queues text for a connected player. A full queue drops the line.
func (h *Hub) deliver(to world.Recipient, text string) bool {
	if to.Sender.IsConsole() {
		return false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	ch, ok := h.conns[to.Sender.Player]
	if !ok {
		return false
	}
	select {
	case ch <- text:
	default:
		h.logger.Warn("dropping output for slow connection", "player", to.Name)
	}
	return true
}
