// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package command

import (
	"context"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	plugins "github.com/holomush/plugbridge/internal/plugin"
	pluginsdk "github.com/holomush/plugbridge/pkg/plugin"
)

var tracer = otel.Tracer("plugbridge/command")

// Router is the host command system. Plugin commands are registered with it
// during instantiation; Execute checks permissions and routes the line back
// into the runtime through the Dispatcher.
type Router struct {
	registry    *Registry
	perms       *Permissions
	dispatcher  Dispatcher
	rateLimiter *RateLimiter // optional, can be nil
	logger      *slog.Logger
}

var _ plugins.CommandRouter = (*Router)(nil)

// RouterOption configures a Router during construction.
type RouterOption func(*Router)

// WithRateLimiter enables per-sender rate limiting. The console and players
// holding PermissionRateLimitBypass are exempt.
func WithRateLimiter(rl *RateLimiter) RouterOption {
	return func(r *Router) {
		r.rateLimiter = rl
	}
}

// WithLogger sets the router's logger.
func WithLogger(logger *slog.Logger) RouterOption {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRouter creates a router that runs commands through dispatcher.
func NewRouter(dispatcher Dispatcher, perms *Permissions, opts ...RouterOption) *Router {
	r := &Router{
		dispatcher: dispatcher,
		perms:      perms,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.perms == nil {
		r.perms = NewPermissions(nil, r.logger)
	}
	r.registry = NewRegistry(r.logger)
	return r
}

// RegisterPermission implements plugins.CommandRouter.
func (r *Router) RegisterPermission(name string, def plugins.PermissionDefault) error {
	return r.perms.Register(name, def)
}

// RegisterCommand implements plugins.CommandRouter. A label stays with the
// first plugin that registers it.
func (r *Router) RegisterCommand(name, description, permission string, handler plugins.HandlerRef) error {
	return r.registry.Register(Entry{
		Name:        name,
		Description: description,
		Permission:  permission,
		Handler:     handler,
	})
}

// Commands returns every registered command sorted by label.
func (r *Router) Commands() []Entry {
	return r.registry.All()
}

// Execute runs a command line for sender.
func (r *Router) Execute(ctx context.Context, sender pluginsdk.Sender, line string, loc *pluginsdk.Location) (err error) {
	rec := newMetricsRecorder()
	defer rec.record()

	parsed, err := Parse(line)
	if err != nil {
		return err
	}

	ctx, span := tracer.Start(ctx, "command.execute",
		trace.WithAttributes(
			attribute.String("command.name", parsed.Name),
			attribute.String("command.sender", sender.String()),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	entry, ok := r.registry.Get(parsed.Name)
	if !ok {
		rec.command, rec.source, rec.status = "unknown", "", StatusNotFound
		return ErrUnknownCommand(parsed.Name)
	}
	rec.command, rec.source = entry.Name, entry.Source()
	span.SetAttributes(attribute.String("command.source", entry.Source()))

	if err := r.allow(sender, span); err != nil {
		rec.status = StatusRateLimited
		return err
	}

	if !r.perms.Has(sender, entry.Permission) {
		rec.status = StatusPermissionDenied
		return ErrPermissionDenied(entry.Name, entry.Permission)
	}

	if !r.dispatcher.DispatchCommand(ctx, line, sender, loc) {
		rec.status = StatusNotHandled
		r.logger.WarnContext(ctx, "registered command was not handled",
			"command", entry.Name,
			"plugin", entry.Handler.Plugin,
			"sender", sender.String())
		return ErrNotHandled(entry.Name, entry.Handler.Plugin)
	}
	rec.status = StatusSuccess
	return nil
}

func (r *Router) allow(sender pluginsdk.Sender, span trace.Span) error {
	if r.rateLimiter == nil || sender.IsConsole() || r.perms.Has(sender, PermissionRateLimitBypass) {
		return nil
	}
	allowed, cooldownMs := r.rateLimiter.Allow(sender.String())
	if allowed {
		return nil
	}
	span.SetAttributes(
		attribute.Bool("command.rate_limited", true),
		attribute.Int64("command.cooldown_ms", cooldownMs),
	)
	return ErrRateLimited(cooldownMs)
}

// Complete returns completions for a partial line. A line without a space
// completes the labels sender may run; plugin-qualified labels are offered
// once the prefix holds a ':'. Otherwise the owning plugin is asked.
func (r *Router) Complete(ctx context.Context, sender pluginsdk.Sender, line string, loc *pluginsdk.Location) []string {
	trimmed := strings.TrimPrefix(strings.TrimLeft(line, " "), "/")
	if !strings.Contains(trimmed, " ") {
		prefix := strings.ToLower(trimmed)
		qualified := strings.Contains(prefix, ":")
		out := []string{}
		for _, e := range r.registry.All() {
			if !strings.HasPrefix(e.Name, prefix) || (!qualified && strings.Contains(e.Name, ":")) {
				continue
			}
			if r.perms.Has(sender, e.Permission) {
				out = append(out, e.Name)
			}
		}
		return out
	}

	parsed, err := Parse(trimmed)
	if err != nil {
		return []string{}
	}
	entry, ok := r.registry.Get(parsed.Name)
	if !ok || !r.perms.Has(sender, entry.Permission) {
		return []string{}
	}
	return r.dispatcher.TabComplete(ctx, line, sender, loc)
}
