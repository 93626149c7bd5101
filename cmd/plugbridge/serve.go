// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/holomush/plugbridge/internal/actor"
	"github.com/holomush/plugbridge/internal/bridge"
	"github.com/holomush/plugbridge/internal/command"
	"github.com/holomush/plugbridge/internal/config"
	"github.com/holomush/plugbridge/internal/control"
	"github.com/holomush/plugbridge/internal/mailbox"
	"github.com/holomush/plugbridge/internal/observability"
	plugins "github.com/holomush/plugbridge/internal/plugin"
	"github.com/holomush/plugbridge/internal/plugin/capability"
	pluginlua "github.com/holomush/plugbridge/internal/plugin/lua"
	"github.com/holomush/plugbridge/internal/store"
	"github.com/holomush/plugbridge/internal/telnet"
	"github.com/holomush/plugbridge/internal/world"
)

// stopTimeout bounds disabling plugins and stopping servers on shutdown.
const stopTimeout = 30 * time.Second

// serveOptions holds flags local to the serve command.
type serveOptions struct {
	console bool
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the server with its plugins",
		Long: `Load every plugin artifact, enable the plugins in dependency order
and serve players over telnet until interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var in io.Reader
			if opts.console {
				in = cmd.InOrStdin()
			}
			return runServe(ctx, cfg, logger, in, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&opts.console, "console", true, "read operator commands from stdin; the server stops when input ends")

	return cmd
}

// runServe builds the host and runs it until ctx ends or the console stops.
func runServe(ctx context.Context, cfg config.Config, logger *slog.Logger, in io.Reader, out io.Writer) error {
	h, err := newHost(ctx, cfg, logger, out)
	if err != nil {
		return err
	}
	defer h.close()
	return h.run(ctx, in)
}

// host is one running server: the runtime actor, the bridge in front of it
// and the surfaces that feed it.
type host struct {
	cfg    config.Config
	logger *slog.Logger
	out    io.Writer

	loaded  []*plugins.Plugin
	kv      plugins.KVStore
	closeKV func()

	bridge  *bridge.Bridge
	worker  *actor.Worker
	world   *world.Service
	hub     *telnet.Hub
	router  *command.Router
	limiter *command.RateLimiter
	control *control.Server
}

func newHost(ctx context.Context, cfg config.Config, logger *slog.Logger, out io.Writer) (*host, error) {
	h := &host{cfg: cfg, logger: logger, out: out, closeKV: func() {}}

	var err error
	if h.loaded, err = discover(ctx, cfg, logger); err != nil {
		return nil, err
	}

	if h.kv, h.closeKV, err = openStore(ctx, cfg.Store); err != nil {
		return nil, err
	}

	enforcer, err := newEnforcer(cfg)
	if err != nil {
		h.closeKV()
		return nil, err
	}

	mb := mailbox.New[actor.Message](cfg.Runtime.MailboxCapacity)
	h.bridge = bridge.New(mb, bridge.WithLogger(logger))
	h.hub = telnet.NewHub(world.NewWriterOutput(out), logger)
	h.world = world.New(h.bridge, h.hub, world.WithLogger(logger), world.WithOps(cfg.Ops...))

	perms := command.NewPermissions(h.world, logger)
	for name, patterns := range cfg.Permissions {
		if err := perms.Grant(world.OfflineID(name), patterns...); err != nil {
			h.closeKV()
			return nil, oops.With("player", name).Wrap(err)
		}
	}

	routerOpts := []command.RouterOption{command.WithLogger(logger)}
	if rl := cfg.Commands.RateLimit; rl.Burst > 0 {
		h.limiter = command.NewRateLimiter(command.RateLimiterConfig{
			BurstCapacity: rl.Burst,
			SustainedRate: rl.PerSecond,
		})
		routerOpts = append(routerOpts, command.WithRateLimiter(h.limiter))
	}
	h.router = command.NewRouter(h.bridge, perms, routerOpts...)

	runtime := pluginlua.New(
		pluginlua.WithLogger(logger),
		pluginlua.WithEnforcer(enforcer),
		pluginlua.WithCallTimeout(cfg.Runtime.CallTimeout),
		pluginlua.WithLibrariesDir(cfg.Runtime.LibrariesDir),
	)

	h.control = control.NewServer(logger)
	h.worker = actor.New(mb, runtime, h.router,
		actor.WithLogger(logger),
		actor.WithPermissionNamespace(cfg.Runtime.PermissionNamespace),
		actor.WithStateObserver(h.pluginStateChanged),
	)
	return h, nil
}

// discover applies staged updates and returns every plugin that loaded.
func discover(ctx context.Context, cfg config.Config, logger *slog.Logger) ([]*plugins.Plugin, error) {
	loader, err := newLoader(cfg, logger)
	if err != nil {
		return nil, err
	}
	updated, err := loader.ApplyUpdates(ctx)
	if err != nil {
		return nil, err
	}
	if len(updated) > 0 {
		logger.Info("applied plugin updates", "artifacts", updated)
	}
	return loadPlugins(ctx, loader, logger)
}

func newLoader(cfg config.Config, logger *slog.Logger) (*plugins.Loader, error) {
	return plugins.NewLoader(cfg.Plugins.Dir,
		plugins.WithPatterns(cfg.Plugins.Patterns...),
		plugins.WithAPIVersion(cfg.Plugins.APIVersion, cfg.Plugins.StrictAPIVersion),
		plugins.WithLoaderLogger(logger),
	)
}

// loadPlugins returns the plugins whose artifacts loaded. Artifacts that
// failed have already been logged by the loader.
func loadPlugins(ctx context.Context, loader *plugins.Loader, logger *slog.Logger) ([]*plugins.Plugin, error) {
	found, err := loader.Discover(ctx)
	if err != nil {
		return nil, err
	}
	var loaded []*plugins.Plugin
	for _, d := range found {
		if d.Outcome.Loaded() {
			loaded = append(loaded, d.Plugin)
		}
	}
	logger.Info("plugins discovered", "dir", loader.PluginsDir(), "artifacts", len(found), "loaded", len(loaded))
	return loaded, nil
}

// openStore returns the plugin data store. Without a database URL data is
// kept in memory.
func openStore(ctx context.Context, cfg config.Store) (plugins.KVStore, func(), error) {
	if cfg.DatabaseURL == "" {
		return store.NewMemoryStore(), func() {}, nil
	}
	pool, err := store.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	return store.NewPostgresStore(pool), pool.Close, nil
}

func newEnforcer(cfg config.Config) (*capability.Enforcer, error) {
	e := capability.NewEnforcer()
	if err := e.SetDefault(cfg.CapabilityDefaults()); err != nil {
		return nil, err
	}
	for key, grants := range cfg.Capabilities {
		if key == "*" {
			continue
		}
		if err := e.SetGrants(plugins.NormalizeName(key), grants); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// pluginStateChanged runs on the actor goroutine after every transition.
func (h *host) pluginStateChanged(key string, to plugins.State) {
	h.control.SetPluginState(key, to)
	if to == plugins.StateDisabled || to == plugins.StateErrored {
		h.world.Unsubscribe(key)
	}
}

// run starts the actor, brings the plugins up and serves until ctx ends or
// the console stops. Plugins are disabled after every surface has stopped.
func (h *host) run(ctx context.Context, in io.Reader) error {
	// The actor outlives ctx so that shutdown messages are still handled.
	workerCtx, cancelWorker := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelWorker()
	var actorGroup errgroup.Group
	actorGroup.Go(func() error { return h.worker.Run(workerCtx) })

	err := h.startPlugins(ctx)
	if err == nil {
		err = h.serve(ctx, in)
	}

	h.world.Wait()
	h.stopPlugins()
	h.world.Wait()
	h.bridge.Close()
	cancelWorker()
	if werr := actorGroup.Wait(); werr != nil && err == nil {
		err = werr
	}
	return err
}

func (h *host) startPlugins(ctx context.Context) error {
	if err := h.bridge.Initialize(ctx, actor.Config{Services: h.world, Store: h.kv}); err != nil {
		return err
	}
	for _, p := range h.loaded {
		if err := h.bridge.Register(ctx, p); err != nil {
			h.logger.Warn("plugin not registered", "plugin", p.Name, "path", p.Path, "error", err)
		}
	}

	order, err := h.bridge.ResolveOrder(ctx)
	if err != nil {
		return err
	}
	outcomes, err := h.bridge.InstantiateAll(ctx, order)
	if err != nil {
		return err
	}
	h.logFailures("instantiate", outcomes)
	if outcomes, err = h.bridge.EnableAll(ctx); err != nil {
		return err
	}
	h.logFailures("enable", outcomes)

	h.control.SetReady(true)
	h.logger.Info("plugins started", "order", order)
	return nil
}

func (h *host) stopPlugins() {
	h.control.SetReady(false)
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	outcomes, err := h.bridge.DisableAll(ctx)
	if err != nil {
		h.logger.Debug("disable skipped", "error", err)
	}
	h.logFailures("disable", outcomes)
	if err := h.bridge.Shutdown(ctx); err != nil {
		h.logger.Warn("runtime shutdown failed", "error", err)
	}
}

func (h *host) logFailures(phase string, outcomes actor.Outcomes) {
	for _, key := range outcomes.Failed() {
		h.logger.Warn("plugin "+phase+" failed", "plugin", key, "error", outcomes[key])
	}
}

// serve runs the control socket, the observability server, the telnet
// listener and the console until ctx ends or one of them stops.
func (h *host) serve(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		return nil
	})

	if path := h.cfg.Control.Socket; path != "" {
		lis, err := h.control.Listen(path)
		if err != nil {
			return err
		}
		g.Go(func() error { return h.control.Serve(lis) })
		g.Go(func() error {
			<-ctx.Done()
			h.control.Stop(context.WithoutCancel(ctx))
			return nil
		})
	}

	if addr := h.cfg.Metrics.Addr; addr != "" {
		obs := observability.NewServer(addr, version, h.control.Ready,
			actor.RegisterMetrics,
			bridge.RegisterMetrics,
			command.RegisterMetrics,
		)
		errCh, err := obs.Start()
		if err != nil {
			cancel()
			_ = g.Wait()
			return err
		}
		g.Go(func() error {
			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}
			stopCtx, stopCancel := context.WithTimeout(context.WithoutCancel(ctx), stopTimeout)
			defer stopCancel()
			return obs.Stop(stopCtx)
		})
	}

	if addr := h.cfg.Telnet.Addr; addr != "" {
		srv := telnet.NewServer(addr, telnet.Deps{
			Router: h.router,
			World:  h.world,
			Hub:    h.hub,
			Logger: h.logger,
		})
		g.Go(func() error { return srv.Run(ctx) })
	}

	if in != nil {
		console := telnet.NewConsole(h.router, h.world, h.out, h.logger)
		g.Go(func() error {
			defer cancel()
			return console.Run(ctx, in)
		})
	}

	h.logger.Info("server ready")
	return g.Wait()
}

func (h *host) close() {
	if h.limiter != nil {
		h.limiter.Close()
	}
	h.closeKV()
}
