// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package telnet

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/holomush/plugbridge/internal/command"
	"github.com/holomush/plugbridge/internal/world"
	pluginsdk "github.com/holomush/plugbridge/pkg/plugin"
)

// Roster is what the console needs to manage players.
type Roster interface {
	Players() []world.Player
	PlayerByName(name string) (world.Player, bool)
	SetOp(id uuid.UUID, op bool) error
}

// Console runs operator input as the console sender. Lines need no leading
// slash. A few verbs are handled by the console itself:
//
//	stop            end the console
//	players         list known players
//	op <name>       grant operator status
//	deop <name>     revoke operator status
//	tab <line>      show completions
type Console struct {
	router Router
	roster Roster
	out    io.Writer
	logger *slog.Logger
}

// NewConsole creates a console writing replies to out.
func NewConsole(router Router, roster Roster, out io.Writer, logger *slog.Logger) *Console {
	if logger == nil {
		logger = slog.Default()
	}
	return &Console{router: router, roster: roster, out: out, logger: logger}
}

// Run reads lines from in until it ends, "stop" is entered or ctx is
// cancelled. A read blocked on in is abandoned on cancellation.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimSpace(scanner.Text()):
			case <-done:
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			return err
		case line := <-lines:
			if c.process(ctx, line) {
				return nil
			}
		}
	}
}

// process handles one line and reports whether the console should stop.
func (c *Console) process(ctx context.Context, line string) bool {
	if line == "" {
		return false
	}
	verb, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(verb) {
	case "stop":
		c.println("Stopping.")
		return true
	case "players":
		c.listPlayers()
	case "op", "deop":
		c.setOp(arg, strings.EqualFold(verb, "op"))
	case "tab":
		c.println(strings.Join(c.router.Complete(ctx, pluginsdk.Console, arg, nil), " "))
	default:
		if err := c.router.Execute(ctx, pluginsdk.Console, line, nil); err != nil {
			c.logger.Debug("console command failed", "line", line, "error", err)
			c.println(command.PlayerMessage(err))
		}
	}
	return false
}

func (c *Console) listPlayers() {
	players := c.roster.Players()
	if len(players) == 0 {
		c.println("No players.")
		return
	}
	for _, p := range players {
		state := "offline"
		if p.Online {
			state = "online"
		}
		if p.Op {
			state += ", op"
		}
		c.println(fmt.Sprintf("%s (%s)", p.Name, state))
	}
}

func (c *Console) setOp(name string, op bool) {
	p, ok := c.roster.PlayerByName(name)
	if !ok {
		c.println("No player named " + name + ".")
		return
	}
	if err := c.roster.SetOp(p.ID, op); err != nil {
		c.println(command.PlayerMessage(err))
		return
	}
	if op {
		c.println("Made " + p.Name + " a server operator.")
	} else {
		c.println("Made " + p.Name + " no longer a server operator.")
	}
}

func (c *Console) println(s string) {
	if _, err := fmt.Fprintln(c.out, s); err != nil {
		c.logger.Debug("console write failed", "error", err)
	}
}
