// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package control exposes plugin health over gRPC on a local socket.
//
// The server speaks the standard grpc.health.v1 protocol. The empty service
// name is the bridge itself; each plugin is the service "plugin/<key>" and
// is SERVING while enabled.
package control

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/samber/oops"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	plugins "github.com/holomush/plugbridge/internal/plugin"
	"github.com/holomush/plugbridge/internal/xdg"
)

// PluginService is the health service name prefix for plugins.
const PluginService = "plugin/"

// ServiceName returns the health service name of a plugin.
func ServiceName(key string) string {
	return PluginService + key
}

// PluginKey reverses ServiceName.
func PluginKey(service string) (string, bool) {
	return strings.CutPrefix(service, PluginService)
}

// Server is the control gRPC server.
type Server struct {
	health   *health.Server
	grpc     *grpc.Server
	logger   *slog.Logger
	path     string
	serving  atomic.Bool
}

// NewServer creates a server that reports the bridge as NOT_SERVING until
// SetReady is called.
func NewServer(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		health: health.NewServer(),
		grpc:   grpc.NewServer(),
		logger: logger,
	}
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(s.grpc, s.health)
	return s
}

// SetReady marks the bridge itself as serving or not.
func (s *Server) SetReady(ready bool) {
	s.serving.Store(ready)
	s.health.SetServingStatus("", status(ready))
}

// Ready reports the last value given to SetReady.
func (s *Server) Ready() bool {
	return s.serving.Load()
}

// SetPluginState records a plugin lifecycle transition. It has the shape of
// an actor state observer.
func (s *Server) SetPluginState(key string, state plugins.State) {
	s.health.SetServingStatus(ServiceName(key), status(state == plugins.StateEnabled))
}

func status(ok bool) healthpb.HealthCheckResponse_ServingStatus {
	if ok {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}

// Listen opens the unix socket at path, replacing a stale one, and
// restricts it to the current user.
func (s *Server) Listen(path string) (net.Listener, error) {
	if err := xdg.EnsureDir(filepath.Dir(path)); err != nil {
		return nil, err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, oops.In("control").With("path", path).Wrapf(err, "remove stale socket")
	}
	lis, err := net.Listen("unix", path)
	if err != nil {
		return nil, oops.In("control").With("path", path).Wrapf(err, "listen")
	}
	if err := os.Chmod(path, 0o600); err != nil {
		_ = lis.Close() //nolint:errcheck // chmod error takes precedence
		return nil, oops.In("control").With("path", path).Wrapf(err, "restrict socket")
	}
	s.path = path
	return lis, nil
}

// Serve blocks serving lis until Stop.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info("control server started", "addr", lis.Addr().String())
	if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return oops.In("control").Wrapf(err, "serve")
	}
	return nil
}

// Stop reports every service as NOT_SERVING, drains open calls and removes
// the socket file.
func (s *Server) Stop(_ context.Context) {
	s.health.Shutdown()
	s.grpc.GracefulStop()
	if s.path != "" {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("failed to remove control socket", "path", s.path, "error", err)
		}
	}
	s.logger.Info("control server stopped")
}
