// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package actor implements the runtime actor: the one goroutine that owns
// the embedded runtime and the plugin registry. Every boundary call is made
// from Worker.Run while it drains the mailbox, one message at a time, in
// arrival order.
package actor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/holomush/plugbridge/internal/mailbox"
	plugins "github.com/holomush/plugbridge/internal/plugin"
	"github.com/holomush/plugbridge/internal/plugin/depgraph"
)

var tracer = otel.Tracer("plugbridge/actor")

// DefaultPermissionNamespace prefixes generated command permissions.
const DefaultPermissionNamespace = "plugbridge"

// Worker owns the runtime attachment and the registry.
type Worker struct {
	mb       *mailbox.Mailbox[Message]
	runtime  plugins.Runtime
	router   plugins.CommandRouter
	registry *plugins.Registry
	logger   *slog.Logger

	namespace   string
	initialized bool
	stopped     bool
	onStateFn   func(key string, to plugins.State)
}

// Option configures a Worker.
type Option func(*Worker)

// WithLogger sets the worker's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithPermissionNamespace sets the prefix of generated command permissions.
func WithPermissionNamespace(ns string) Option {
	return func(w *Worker) {
		if ns != "" {
			w.namespace = ns
		}
	}
}

// WithStateObserver registers a function called after every lifecycle
// transition the worker makes. It runs on the worker goroutine and must not
// block or send to the mailbox.
func WithStateObserver(fn func(key string, to plugins.State)) Option {
	return func(w *Worker) {
		w.onStateFn = fn
	}
}

// New creates a worker that drains mb and drives runtime. router may be nil,
// in which case plugin commands are not registered with the host.
func New(mb *mailbox.Mailbox[Message], runtime plugins.Runtime, router plugins.CommandRouter, opts ...Option) *Worker {
	w := &Worker{
		mb:        mb,
		runtime:   runtime,
		router:    router,
		logger:    slog.Default(),
		namespace: DefaultPermissionNamespace,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.registry = plugins.NewRegistry(w.logger)
	return w
}

// Run drains the mailbox until a Shutdown is handled, the mailbox is closed,
// or ctx ends. On exit the runtime is detached if it was attached, the mailbox
// is closed and every message still queued is failed with ErrStopped.
func (w *Worker) Run(ctx context.Context) error {
	defer w.stop(ctx)

	for !w.stopped {
		msg, err := w.mb.Receive(ctx)
		if err != nil {
			if errors.Is(err, mailbox.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		MailboxDepth.Set(float64(w.mb.Len()))
		w.handle(ctx, msg)
	}
	return nil
}

func (w *Worker) stop(ctx context.Context) {
	if w.initialized {
		if err := w.runtime.Detach(context.WithoutCancel(ctx)); err != nil {
			w.logger.Warn("runtime detach failed", "error", err)
		}
		w.initialized = false
	}
	w.stopped = true
	w.mb.Close()

	pending := w.mb.Drain()
	for _, msg := range pending {
		msg.fail(ErrStopped)
	}
	if len(pending) > 0 {
		w.logger.Info("runtime actor stopped with pending messages", "pending", len(pending))
	}
	MailboxDepth.Set(0)
}

// handle runs one message. Boundary calls use a context that is not canceled
// with the worker's: an operation that has started always runs to completion.
func (w *Worker) handle(ctx context.Context, msg Message) {
	requestID := ulid.Make().String()
	kind := msg.kind()
	logger := w.logger.With("request_id", requestID, "message", kind)

	opCtx, span := tracer.Start(context.WithoutCancel(ctx), "actor."+kind,
		trace.WithAttributes(
			attribute.String("actor.request_id", requestID),
			attribute.String("actor.message", kind),
		),
	)
	defer span.End()

	start := time.Now()
	err := w.dispatch(opCtx, logger, msg)

	status := StatusSuccess
	if err != nil {
		status = StatusError
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	recordMessage(kind, status, time.Since(start))
}

func (w *Worker) dispatch(ctx context.Context, logger *slog.Logger, msg Message) error {
	switch m := msg.(type) {
	case Initialize:
		err := w.initialize(ctx, m.Config)
		m.Reply.Resolve(err)
		return err
	case Register:
		err := w.registry.Add(m.Plugin)
		m.Reply.Resolve(err)
		return err
	case ResolveOrder:
		m.Reply.Resolve(Result[[]string]{Value: w.resolveOrder(logger)})
		return nil
	case Snapshot:
		m.Reply.Resolve(Result[[]plugins.Plugin]{Value: w.registry.Snapshot()})
		return nil
	case Shutdown:
		w.shutdown(ctx, logger)
		m.Reply.Resolve(nil)
		return nil
	}

	if !w.initialized {
		err := ErrNotInitialized(msg.kind())
		logger.Warn("rejecting message before initialize")
		msg.fail(err)
		return err
	}

	switch m := msg.(type) {
	case InstantiateAll:
		out := w.instantiateAll(ctx, logger, m.Order)
		m.Reply.Resolve(Result[Outcomes]{Value: out})
		return nil
	case EnableAll:
		out := w.enableAll(ctx, logger)
		m.Reply.Resolve(Result[Outcomes]{Value: out})
		return nil
	case DisableAll:
		out := w.disableAll(ctx, logger)
		m.Reply.Resolve(Result[Outcomes]{Value: out})
		return nil
	case DispatchCommand:
		handled, err := w.dispatchCommand(ctx, logger, m)
		m.Reply.Resolve(Result[bool]{Value: handled, Err: err})
		return err
	case TabComplete:
		suggestions, err := w.tabComplete(ctx, logger, m)
		m.Reply.Resolve(Result[[]string]{Value: suggestions, Err: err})
		return err
	case FireEvent:
		cancelled, err := w.fireEvent(ctx, logger, m)
		m.Reply.Resolve(Result[bool]{Value: cancelled, Err: err})
		return err
	default:
		logger.Error("unhandled message type")
		return nil
	}
}

func (w *Worker) initialize(ctx context.Context, cfg Config) error {
	if w.initialized {
		w.logger.Warn("ignoring repeated initialize")
		return ErrAlreadyInitialized()
	}
	cb := &plugins.CallbackContext{
		Services: cfg.Services,
		Store:    cfg.Store,
		Logger:   w.logger.With("component", "runtime"),
	}
	if err := w.runtime.Attach(ctx, cb); err != nil {
		return oops.In("actor").Code(CodeInitializeFailed).Wrapf(err, "attach runtime")
	}
	w.initialized = true
	w.logger.Info("runtime attached")
	return nil
}

func (w *Worker) resolveOrder(logger *slog.Logger) []string {
	order := depgraph.ComputeOrder(graphView{w}, logger)
	logger.Info("resolved plugin load order", "order", order)
	return order
}

func (w *Worker) shutdown(ctx context.Context, logger *slog.Logger) {
	if w.initialized {
		if err := w.runtime.Detach(ctx); err != nil {
			logger.Warn("runtime detach failed", "error", err)
		}
		w.initialized = false
	}
	w.registry.Clear()
	w.stopped = true
	logger.Info("runtime actor shut down")
}

func (w *Worker) transition(key string, to plugins.State) bool {
	if !w.registry.Transition(key, to) {
		return false
	}
	PluginTransitions.WithLabelValues(to.String()).Inc()
	if w.onStateFn != nil {
		w.onStateFn(key, to)
	}
	return true
}

// graphView lets the resolver mark plugins Errored through the worker.
type graphView struct{ w *Worker }

func (g graphView) Snapshot() []plugins.Plugin { return g.w.registry.Snapshot() }

func (g graphView) Transition(key string, to plugins.State) bool { return g.w.transition(key, to) }
