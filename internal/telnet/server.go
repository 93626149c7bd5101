// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package telnet serves the line-based interfaces to the host server:
// player connections over TCP and the operator console.
package telnet

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"

	"github.com/samber/oops"
)

// Server accepts player connections.
type Server struct {
	addr     string
	deps     Deps
	listener net.Listener
	mu       sync.RWMutex
	conns    sync.WaitGroup
}

// NewServer creates a server listening on addr.
func NewServer(addr string, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Server{addr: addr, deps: deps}
}

// Addr returns the listening address, or "" before Run has bound it.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run accepts connections until ctx is cancelled, then waits for every
// connection to finish.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return oops.In("telnet").With("addr", s.addr).Wrapf(err, "listen")
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.deps.Logger.Info("telnet server started", "addr", listener.Addr().String())

	stop := context.AfterFunc(ctx, func() {
		if err := listener.Close(); err != nil {
			s.deps.Logger.Debug("error closing listener", "error", err)
		}
	})
	defer stop()
	defer s.conns.Wait()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.deps.Logger.Error("accept failed", "error", err)
			continue
		}
		handler := NewConnectionHandler(conn, s.deps)
		s.conns.Go(func() { handler.Handle(ctx) })
	}
}
