// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package control

import (
	"context"

	"github.com/samber/oops"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	grpcstatus "google.golang.org/grpc/status"
)

// Status of one health service.
type Status struct {
	Service string
	Serving bool
	// Known is false when the server has never heard of the service.
	Known bool
}

// Client queries a control server.
type Client struct {
	conn   *grpc.ClientConn
	health healthpb.HealthClient
}

// Dial connects to the control socket at path.
func Dial(path string, opts ...grpc.DialOption) (*Client, error) {
	return DialTarget("unix://"+path, opts...)
}

// DialTarget connects to any gRPC target. Dial covers the usual case.
func DialTarget(target string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, oops.In("control").Code("CONTROL_DIAL_FAILED").With("target", target).Wrap(err)
	}
	return &Client{conn: conn, health: healthpb.NewHealthClient(conn)}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	if err := c.conn.Close(); err != nil {
		return oops.In("control").Wrap(err)
	}
	return nil
}

// Check returns the status of one service. "" is the bridge itself.
func (c *Client) Check(ctx context.Context, service string) (Status, error) {
	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if grpcstatus.Code(err) == codes.NotFound {
		return Status{Service: service}, nil
	}
	if err != nil {
		return Status{}, oops.In("control").Code("CONTROL_UNAVAILABLE").With("service", service).Wrap(err)
	}
	return Status{
		Service: service,
		Serving: resp.GetStatus() == healthpb.HealthCheckResponse_SERVING,
		Known:   true,
	}, nil
}

// Plugins checks each plugin key.
func (c *Client) Plugins(ctx context.Context, keys ...string) ([]Status, error) {
	out := make([]Status, 0, len(keys))
	for _, key := range keys {
		st, err := c.Check(ctx, ServiceName(key))
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}
