// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package observability

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T, ready ReadinessChecker, regs ...Registration) *Server {
	t.Helper()
	s := NewServer("127.0.0.1:0", "1.2.3", ready, regs...)
	_, err := s.Start()
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, s.Stop(ctx))
	})
	return s
}

func get(t *testing.T, s *Server, path string) (int, string) {
	t.Helper()
	resp, err := http.Get("http://" + s.Addr() + path)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestMetricsEndpoint(t *testing.T) {
	depth := prometheus.NewGauge(prometheus.GaugeOpts{Name: "plugbridge_test_depth", Help: "test"})
	depth.Set(3)
	s := startServer(t, nil, func(reg prometheus.Registerer) { reg.MustRegister(depth) })

	code, body := get(t, s, "/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "go_goroutines")
	assert.Contains(t, body, "process_")
	assert.Contains(t, body, `plugbridge_build_info{version="1.2.3"} 1`)
	assert.Contains(t, body, "plugbridge_test_depth 3")
}

func TestHealthProbes(t *testing.T) {
	tests := []struct {
		name  string
		ready ReadinessChecker
		code  int
		body  string
	}{
		{"no checker", nil, http.StatusOK, "ok\n"},
		{"ready", func() bool { return true }, http.StatusOK, "ok\n"},
		{"not ready", func() bool { return false }, http.StatusServiceUnavailable, "not ready\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := startServer(t, tt.ready)

			code, body := get(t, s, "/healthz/liveness")
			assert.Equal(t, http.StatusOK, code)
			assert.Equal(t, "ok\n", body)

			code, body = get(t, s, "/healthz/readiness")
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.body, body)
		})
	}
}

func TestStartStop(t *testing.T) {
	s := NewServer("127.0.0.1:0", "dev", nil)
	assert.Empty(t, s.Addr())

	errCh, err := s.Start()
	require.NoError(t, err)

	_, err = s.Start()
	assert.Error(t, err, "double start")

	require.NoError(t, s.Stop(context.Background()))
	require.NoError(t, s.Stop(context.Background()), "second stop")

	_, open := <-errCh
	assert.False(t, open, "error channel closes on clean shutdown")
}

func TestStartListenFailure(t *testing.T) {
	s := NewServer("127.0.0.1:99999", "dev", nil)
	_, err := s.Start()
	require.Error(t, err)

	_, err = s.Start()
	require.Error(t, err, "failed start leaves the server startable")
}
