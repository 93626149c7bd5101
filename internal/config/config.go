// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads plugbridge settings. Values come from built-in
// defaults, then an optional YAML file, then command-line flags.
package config

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/plugbridge/internal/logging"
	"github.com/holomush/plugbridge/internal/xdg"
)

// Config is the full set of settings.
type Config struct {
	Plugins Plugins `koanf:"plugins"`
	Runtime Runtime `koanf:"runtime"`
	// Capabilities maps plugin keys to capability grants. The "*" entry
	// applies to plugins without their own.
	Capabilities map[string][]string `koanf:"capabilities"`
	// Permissions maps player names to the permission patterns they hold.
	Permissions map[string][]string `koanf:"permissions"`
	// Ops lists the players with operator status.
	Ops      []string `koanf:"ops"`
	Commands Commands `koanf:"commands"`
	Log      Log      `koanf:"log"`
	Metrics  Metrics  `koanf:"metrics"`
	Control  Control  `koanf:"control"`
	Telnet   Telnet   `koanf:"telnet"`
	Store    Store    `koanf:"store"`
}

// Plugins controls artifact discovery.
type Plugins struct {
	Dir              string   `koanf:"dir"`
	Patterns         []string `koanf:"patterns"`
	APIVersion       string   `koanf:"api_version"`
	StrictAPIVersion bool     `koanf:"strict_api_version"`
}

// Runtime controls the runtime actor.
type Runtime struct {
	MailboxCapacity     int           `koanf:"mailbox_capacity"`
	CallTimeout         time.Duration `koanf:"call_timeout"`
	LibrariesDir        string        `koanf:"libraries_dir"`
	PermissionNamespace string        `koanf:"permission_namespace"`
}

// Commands controls the host command router.
type Commands struct {
	RateLimit RateLimit `koanf:"rate_limit"`
}

// RateLimit configures the per-sender token bucket. A zero burst disables it.
type RateLimit struct {
	Burst     int     `koanf:"burst"`
	PerSecond float64 `koanf:"per_second"`
}

// Log controls the process logger.
type Log struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// Metrics controls the observability server. An empty address disables it.
type Metrics struct {
	Addr string `koanf:"addr"`
}

// Control controls the gRPC health socket. An empty path disables it.
type Control struct {
	Socket string `koanf:"socket"`
}

// Telnet controls the player listener. An empty address disables it.
type Telnet struct {
	Addr string `koanf:"addr"`
}

// Store selects plugin data storage. An empty URL keeps data in memory.
type Store struct {
	DatabaseURL string `koanf:"database_url"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Plugins: Plugins{
			Dir:        xdg.PluginsDir(),
			Patterns:   []string{"*.jar", "*.zip"},
			APIVersion: ">= 1.13",
		},
		Runtime: Runtime{
			MailboxCapacity:     64,
			CallTimeout:         5 * time.Second,
			LibrariesDir:        xdg.LibrariesDir(),
			PermissionNamespace: "plugbridge",
		},
		Capabilities: map[string][]string{"*": {"**"}},
		Commands:     Commands{RateLimit: RateLimit{Burst: 10, PerSecond: 2}},
		Log:          Log{Format: "json", Level: "info"},
		Control:      Control{Socket: filepath.Join(xdg.RuntimeDir(), "plugbridge.sock")},
		Telnet:       Telnet{Addr: "127.0.0.1:4201"},
	}
}

// DefaultPath is where Load looks when no file is named.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigDir(), "config.yaml")
}

// flagKeys maps command-line flags onto config keys.
var flagKeys = map[string]string{
	"plugins-dir":          "plugins.dir",
	"api-version":          "plugins.api_version",
	"strict-api-version":   "plugins.strict_api_version",
	"mailbox-capacity":     "runtime.mailbox_capacity",
	"call-timeout":         "runtime.call_timeout",
	"libraries-dir":        "runtime.libraries_dir",
	"permission-namespace": "runtime.permission_namespace",
	"log-format":           "log.format",
	"log-level":            "log.level",
	"metrics-addr":         "metrics.addr",
	"control-socket":       "control.socket",
	"telnet-addr":          "telnet.addr",
	"database-url":         "store.database_url",
}

// RegisterFlags adds the overridable settings to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("config", "", "config file (default "+DefaultPath()+")")
	fs.String("plugins-dir", d.Plugins.Dir, "directory scanned for plugin artifacts")
	fs.String("api-version", d.Plugins.APIVersion, "supported plugin api-version constraint")
	fs.Bool("strict-api-version", d.Plugins.StrictAPIVersion, "reject plugins that declare no api-version")
	fs.Int("mailbox-capacity", d.Runtime.MailboxCapacity, "runtime actor mailbox capacity")
	fs.Duration("call-timeout", d.Runtime.CallTimeout, "limit on a single plugin call")
	fs.String("libraries-dir", d.Runtime.LibrariesDir, "directory declared libraries resolve in")
	fs.String("permission-namespace", d.Runtime.PermissionNamespace, "namespace for plugin command permissions")
	fs.String("log-format", d.Log.Format, "log format (json or text)")
	fs.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
	fs.String("metrics-addr", d.Metrics.Addr, "observability listen address, empty to disable")
	fs.String("control-socket", d.Control.Socket, "control socket path, empty to disable")
	fs.String("telnet-addr", d.Telnet.Addr, "telnet listen address, empty to disable")
	fs.String("database-url", d.Store.DatabaseURL, "PostgreSQL URL for plugin data, empty for memory")
}

// Load builds the configuration. An explicitly named file must exist; the
// default file is optional. Only flags set on the command line override the
// file.
func Load(flags *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")
	if err := loadDefaults(k); err != nil {
		return Config{}, err
	}

	path, explicit := DefaultPath(), false
	if flags != nil {
		if f := flags.Lookup("config"); f != nil && f.Value.String() != "" {
			path, explicit = f.Value.String(), true
		}
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return Config{}, oops.In("config").Code("CONFIG_PARSE").With("path", path).Wrapf(err, "load config file")
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return Config{}, oops.In("config").Code("CONFIG_PARSE").Wrapf(err, "load flags")
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, oops.In("config").Code("CONFIG_PARSE").Wrapf(err, "decode config")
	}
	return cfg, cfg.Validate()
}

func loadDefaults(k *koanf.Koanf) error {
	d := Default()
	defaults := map[string]any{
		"plugins.dir":                    d.Plugins.Dir,
		"plugins.patterns":               d.Plugins.Patterns,
		"plugins.api_version":            d.Plugins.APIVersion,
		"plugins.strict_api_version":     d.Plugins.StrictAPIVersion,
		"runtime.mailbox_capacity":       d.Runtime.MailboxCapacity,
		"runtime.call_timeout":           d.Runtime.CallTimeout,
		"runtime.libraries_dir":          d.Runtime.LibrariesDir,
		"runtime.permission_namespace":   d.Runtime.PermissionNamespace,
		"capabilities":                   d.Capabilities,
		"commands.rate_limit.burst":      d.Commands.RateLimit.Burst,
		"commands.rate_limit.per_second": d.Commands.RateLimit.PerSecond,
		"log.format":                     d.Log.Format,
		"log.level":                      d.Log.Level,
		"metrics.addr":                   d.Metrics.Addr,
		"control.socket":                 d.Control.Socket,
		"telnet.addr":                    d.Telnet.Addr,
		"store.database_url":             d.Store.DatabaseURL,
	}
	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return oops.In("config").Code("CONFIG_PARSE").With("key", key).Wrap(err)
		}
	}
	return nil
}

// Validate checks values that would otherwise fail later.
func (c Config) Validate() error {
	var errs []error
	invalid := func(key string, format string, args ...any) {
		errs = append(errs, oops.In("config").Code("INVALID_CONFIG").With("key", key).Errorf(format, args...))
	}

	if c.Runtime.MailboxCapacity < 1 {
		invalid("runtime.mailbox_capacity", "mailbox capacity must be at least 1, got %d", c.Runtime.MailboxCapacity)
	}
	if c.Runtime.CallTimeout < 0 {
		invalid("runtime.call_timeout", "call timeout must not be negative, got %s", c.Runtime.CallTimeout)
	}
	if strings.TrimSpace(c.Plugins.Dir) == "" {
		invalid("plugins.dir", "plugins directory must be set")
	}
	if len(c.Plugins.Patterns) == 0 {
		invalid("plugins.patterns", "at least one artifact pattern is required")
	}
	if strings.TrimSpace(c.Runtime.PermissionNamespace) == "" {
		invalid("runtime.permission_namespace", "permission namespace must be set")
	}
	if !logging.ValidFormat(c.Log.Format) {
		invalid("log.format", "log format must be json or text, got %q", c.Log.Format)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		invalid("log.level", "log level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	if c.Commands.RateLimit.Burst < 0 || c.Commands.RateLimit.PerSecond < 0 {
		invalid("commands.rate_limit", "rate limit values must not be negative")
	}
	if c.Commands.RateLimit.Burst > 0 && c.Commands.RateLimit.PerSecond == 0 {
		invalid("commands.rate_limit.per_second", "a rate limit burst needs a refill rate")
	}
	return errors.Join(errs...)
}

// CapabilityDefaults returns the grants for plugins without their own.
func (c Config) CapabilityDefaults() []string {
	return c.Capabilities["*"]
}
