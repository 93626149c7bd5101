// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package bridge is the many-caller front end of the runtime actor. Every
// call becomes one mailbox message with a fresh reply slot; the caller waits
// for that reply. Interactive calls degrade to "unhandled" or "no
// suggestions" instead of returning errors.
package bridge

import (
	"context"
	"errors"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"

	"github.com/holomush/plugbridge/internal/actor"
	"github.com/holomush/plugbridge/internal/mailbox"
	plugins "github.com/holomush/plugbridge/internal/plugin"
	pluginsdk "github.com/holomush/plugbridge/pkg/plugin"
)

// ErrBridgeClosed is the cause of every wait abandoned by Close.
var ErrBridgeClosed = errors.New("bridge closed")

// Degraded counts interactive calls that fell back to their default answer.
// Use RegisterMetrics to register this with a Prometheus registry.
var Degraded = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "plugbridge_bridge_degraded_total",
		Help: "Interactive bridge calls answered with a fallback value",
	},
	[]string{"operation"},
)

// RegisterMetrics registers bridge metrics with the given Prometheus registry.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(Degraded)
}

// Bridge submits requests to the runtime actor. It is safe for concurrent use.
type Bridge struct {
	mb     *mailbox.Mailbox[actor.Message]
	logger *slog.Logger

	closed context.Context
	close  context.CancelCauseFunc
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the bridge's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// New creates a bridge that submits to mb.
func New(mb *mailbox.Mailbox[actor.Message], opts ...Option) *Bridge {
	closed, closeFn := context.WithCancelCause(context.Background())
	b := &Bridge{
		mb:     mb,
		logger: slog.Default(),
		closed: closed,
		close:  closeFn,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Close abandons every pending wait with ErrBridgeClosed. Messages already
// handed to the actor still run; only their results go unobserved.
func (b *Bridge) Close() {
	b.close(ErrBridgeClosed)
}

// scope derives a context that also ends when the bridge is closed.
func (b *Bridge) scope(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancelCause(ctx)
	stop := context.AfterFunc(b.closed, func() { cancel(context.Cause(b.closed)) })
	return ctx, func() {
		stop()
		cancel(nil)
	}
}

// call sends one message and waits for its reply.
func call[T any](ctx context.Context, b *Bridge, build func(*mailbox.Reply[T]) actor.Message) (T, error) {
	var zero T
	if b.closed.Err() != nil {
		return zero, ErrBridgeClosed
	}

	ctx, done := b.scope(ctx)
	defer done()

	reply := mailbox.NewReply[T]()
	msg := build(reply)
	if err := b.mb.Send(ctx, msg); err != nil {
		if ctx.Err() != nil {
			err = context.Cause(ctx)
		}
		return zero, oops.In("bridge").Wrapf(err, "submit request")
	}
	v, err := reply.Wait(ctx)
	if err != nil {
		return zero, oops.In("bridge").Wrapf(err, "await reply")
	}
	return v, nil
}

// Initialize attaches the runtime.
func (b *Bridge) Initialize(ctx context.Context, cfg actor.Config) error {
	res, err := call(ctx, b, func(r *mailbox.Reply[error]) actor.Message {
		return actor.Initialize{Config: cfg, Reply: r}
	})
	if err != nil {
		return err
	}
	return res
}

// Register hands a parsed plugin to the registry.
func (b *Bridge) Register(ctx context.Context, p *plugins.Plugin) error {
	res, err := call(ctx, b, func(r *mailbox.Reply[error]) actor.Message {
		return actor.Register{Plugin: p, Reply: r}
	})
	if err != nil {
		return err
	}
	return res
}

// ResolveOrder computes the load order.
func (b *Bridge) ResolveOrder(ctx context.Context) ([]string, error) {
	return unwrap(call(ctx, b, func(r *mailbox.Reply[actor.Result[[]string]]) actor.Message {
		return actor.ResolveOrder{Reply: r}
	}))
}

// InstantiateAll creates runtime instances for order.
func (b *Bridge) InstantiateAll(ctx context.Context, order []string) (actor.Outcomes, error) {
	return unwrap(call(ctx, b, func(r *mailbox.Reply[actor.Result[actor.Outcomes]]) actor.Message {
		return actor.InstantiateAll{Order: order, Reply: r}
	}))
}

// EnableAll enables every instantiated plugin.
func (b *Bridge) EnableAll(ctx context.Context) (actor.Outcomes, error) {
	return unwrap(call(ctx, b, func(r *mailbox.Reply[actor.Result[actor.Outcomes]]) actor.Message {
		return actor.EnableAll{Reply: r}
	}))
}

// DisableAll disables every enabled plugin.
func (b *Bridge) DisableAll(ctx context.Context) (actor.Outcomes, error) {
	return unwrap(call(ctx, b, func(r *mailbox.Reply[actor.Result[actor.Outcomes]]) actor.Message {
		return actor.DisableAll{Reply: r}
	}))
}

// Shutdown detaches the runtime and stops the actor.
func (b *Bridge) Shutdown(ctx context.Context) error {
	res, err := call(ctx, b, func(r *mailbox.Reply[error]) actor.Message {
		return actor.Shutdown{Reply: r}
	})
	if err != nil {
		return err
	}
	return res
}

// Snapshot returns copies of every registered plugin.
func (b *Bridge) Snapshot(ctx context.Context) ([]plugins.Plugin, error) {
	return unwrap(call(ctx, b, func(r *mailbox.Reply[actor.Result[[]plugins.Plugin]]) actor.Message {
		return actor.Snapshot{Reply: r}
	}))
}

// DispatchCommand runs a command line and reports whether a plugin handled
// it. Any failure reports false.
func (b *Bridge) DispatchCommand(ctx context.Context, line string, sender pluginsdk.Sender, loc *pluginsdk.Location) bool {
	handled, err := unwrap(call(ctx, b, func(r *mailbox.Reply[actor.Result[bool]]) actor.Message {
		return actor.DispatchCommand{Line: line, Sender: sender, Location: loc, Reply: r}
	}))
	if err != nil {
		b.degraded("dispatch_command", err, "sender", sender.String())
		return false
	}
	return handled
}

// TabComplete returns suggestions for a partial command line. Any failure
// returns an empty list.
func (b *Bridge) TabComplete(ctx context.Context, line string, sender pluginsdk.Sender, loc *pluginsdk.Location) []string {
	suggestions, err := unwrap(call(ctx, b, func(r *mailbox.Reply[actor.Result[[]string]]) actor.Message {
		return actor.TabComplete{Line: line, Sender: sender, Location: loc, Reply: r}
	}))
	if err != nil || suggestions == nil {
		if err != nil {
			b.degraded("tab_complete", err, "sender", sender.String())
		}
		return []string{}
	}
	return suggestions
}

// FireEvent delivers an event to one plugin and reports whether a listener
// cancelled it. Any failure reports false.
func (b *Bridge) FireEvent(ctx context.Context, event pluginsdk.Event, plugin string) bool {
	cancelled, err := unwrap(call(ctx, b, func(r *mailbox.Reply[actor.Result[bool]]) actor.Message {
		return actor.FireEvent{Event: event, Plugin: plugin, Reply: r}
	}))
	if err != nil {
		b.degraded("fire_event", err, "plugin", plugin)
		return false
	}
	return cancelled
}

// Notify queues an event for one plugin without waiting for listeners.
func (b *Bridge) Notify(ctx context.Context, event pluginsdk.Event, plugin string) error {
	if b.closed.Err() != nil {
		return ErrBridgeClosed
	}
	ctx, done := b.scope(ctx)
	defer done()

	if err := b.mb.Send(ctx, actor.FireEvent{Event: event, Plugin: plugin}); err != nil {
		if ctx.Err() != nil {
			err = context.Cause(ctx)
		}
		return oops.In("bridge").With("plugin", plugin).Wrapf(err, "queue event")
	}
	return nil
}

func (b *Bridge) degraded(op string, err error, attrs ...any) {
	Degraded.WithLabelValues(op).Inc()
	b.logger.Debug("bridge call degraded",
		append([]any{"operation", op, "error", err}, attrs...)...)
}

func unwrap[T any](res actor.Result[T], err error) (T, error) {
	if err != nil {
		return res.Value, err
	}
	return res.Value, res.Err
}
