// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package telnet

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/holomush/plugbridge/internal/command"
	"github.com/holomush/plugbridge/internal/world"
	pluginsdk "github.com/holomush/plugbridge/pkg/plugin"
)

// Router runs and completes command lines for a sender.
type Router interface {
	Execute(ctx context.Context, sender pluginsdk.Sender, line string, loc *pluginsdk.Location) error
	Complete(ctx context.Context, sender pluginsdk.Sender, line string, loc *pluginsdk.Location) []string
}

// World is the part of the server a connection drives.
type World interface {
	Join(ctx context.Context, name string) (world.Player, error)
	Quit(ctx context.Context, id uuid.UUID) error
	Chat(ctx context.Context, id uuid.UUID, message string) (bool, error)
	Player(id uuid.UUID) (world.Player, bool)
}

// Deps are shared by every connection.
type Deps struct {
	Router Router
	World  World
	Hub    *Hub
	Logger *slog.Logger
}

// ConnectionHandler serves one player connection.
type ConnectionHandler struct {
	conn     net.Conn
	reader   *bufio.Reader
	deps     Deps
	logger   *slog.Logger
	connID   ulid.ULID
	player   world.Player
	authed   bool
	quitting bool
	outbox   <-chan string
	detach   func()
}

// NewConnectionHandler creates a handler for conn.
func NewConnectionHandler(conn net.Conn, deps Deps) *ConnectionHandler {
	connID := ulid.Make()
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ConnectionHandler{
		conn:   conn,
		reader: bufio.NewReader(conn),
		deps:   deps,
		logger: logger.With("conn_id", connID.String()),
		connID: connID,
	}
}

// Handle serves the connection until the client leaves, the connection
// fails or ctx is cancelled.
func (h *ConnectionHandler) Handle(ctx context.Context) {
	done := make(chan struct{})
	defer func() {
		close(done)
		if h.detach != nil {
			h.detach()
		}
		if err := h.conn.Close(); err != nil {
			h.logger.Debug("error closing connection", "error", err)
		}
	}()

	h.send("Welcome to plugbridge!")
	h.send("Use: connect <name>")

	lineCh := make(chan string)
	errCh := make(chan error, 1)
	go func() {
		for {
			line, err := h.reader.ReadString('\n')
			if err != nil {
				errCh <- err
				return
			}
			select {
			case lineCh <- strings.TrimSpace(line):
			case <-done:
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			h.leave(context.WithoutCancel(ctx))
			return

		case err := <-errCh:
			if !errors.Is(err, io.EOF) {
				h.logger.Debug("connection read error", "error", err)
			}
			h.leave(ctx)
			return

		case line := <-lineCh:
			h.processLine(ctx, line)
			if h.quitting {
				return
			}

		case msg, ok := <-h.outbox:
			if ok {
				h.send(msg)
			}
		}
	}
}

func (h *ConnectionHandler) processLine(ctx context.Context, line string) {
	if line == "" {
		return
	}
	if strings.HasPrefix(line, "/") {
		h.handleCommand(ctx, line)
		return
	}

	verb, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch strings.ToLower(verb) {
	case "connect":
		h.handleConnect(ctx, arg)
	case "tab":
		h.handleTab(ctx, arg)
	case "say":
		h.handleSay(ctx, arg)
	case "quit":
		h.handleQuit(ctx)
	default:
		h.handleSay(ctx, line)
	}
}

func (h *ConnectionHandler) handleConnect(ctx context.Context, name string) {
	if h.authed {
		h.send("Already connected.")
		return
	}
	if name == "" {
		h.send("Usage: connect <name>")
		return
	}
	if err := world.ValidatePlayerName(name); err != nil {
		h.send("Names are 3 to 16 letters, digits or underscores.")
		return
	}

	outbox, detach, ok := h.deps.Hub.attach(world.OfflineID(name))
	if !ok {
		h.send("That player is already connected.")
		return
	}
	player, err := h.deps.World.Join(ctx, name)
	if err != nil {
		detach()
		h.logger.Error("join failed", "player", name, "error", err)
		h.send("Could not join. Please try again.")
		return
	}

	h.player, h.authed = player, true
	h.outbox, h.detach = outbox, detach
	h.logger = h.logger.With("player", player.Name)
	h.send(fmt.Sprintf("Welcome, %s!", player.Name))
}

func (h *ConnectionHandler) handleCommand(ctx context.Context, line string) {
	if !h.authed {
		h.send("You must connect first.")
		return
	}
	if err := h.deps.Router.Execute(ctx, h.player.Sender(), line, h.location()); err != nil {
		h.logger.Debug("command failed", "line", line, "error", err)
		h.send(command.PlayerMessage(err))
	}
}

func (h *ConnectionHandler) handleTab(ctx context.Context, partial string) {
	if !h.authed {
		h.send("You must connect first.")
		return
	}
	suggestions := h.deps.Router.Complete(ctx, h.player.Sender(), partial, h.location())
	if len(suggestions) == 0 {
		h.send("No suggestions.")
		return
	}
	h.send(strings.Join(suggestions, " "))
}

func (h *ConnectionHandler) handleSay(ctx context.Context, message string) {
	if !h.authed {
		h.send("You must connect first.")
		return
	}
	if message == "" {
		h.send("Say what?")
		return
	}
	if _, err := h.deps.World.Chat(ctx, h.player.ID, message); err != nil {
		h.logger.Error("chat failed", "error", err)
		h.send("Your message could not be sent.")
	}
}

func (h *ConnectionHandler) handleQuit(ctx context.Context) {
	h.send("Goodbye!")
	h.leave(ctx)
	h.quitting = true
}

// leave takes the player offline once.
func (h *ConnectionHandler) leave(ctx context.Context) {
	if !h.authed {
		return
	}
	h.authed = false
	if err := h.deps.World.Quit(ctx, h.player.ID); err != nil {
		h.logger.Debug("quit failed", "error", err)
	}
}

// location is the player's current position, or nil if unknown.
func (h *ConnectionHandler) location() *pluginsdk.Location {
	p, ok := h.deps.World.Player(h.player.ID)
	if !ok {
		return nil
	}
	return &p.Location
}

func (h *ConnectionHandler) send(msg string) {
	if _, err := fmt.Fprintln(h.conn, msg); err != nil {
		h.logger.Debug("failed to send message to client", "error", err)
	}
}
