// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package xdg resolves XDG Base Directory paths for plugbridge.
package xdg

import (
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

const appName = "plugbridge"

func base(env string, fallback ...string) string {
	if dir := os.Getenv(env); dir != "" {
		return dir
	}
	return filepath.Join(append([]string{os.Getenv("HOME")}, fallback...)...)
}

// ConfigDir holds config.yaml. Defaults to ~/.config/plugbridge.
func ConfigDir() string {
	return filepath.Join(base("XDG_CONFIG_HOME", ".config"), appName)
}

// DataDir is the root of the plugins and libraries directories. Defaults to
// ~/.local/share/plugbridge.
func DataDir() string {
	return filepath.Join(base("XDG_DATA_HOME", ".local", "share"), appName)
}

// StateDir defaults to ~/.local/state/plugbridge.
func StateDir() string {
	return filepath.Join(base("XDG_STATE_HOME", ".local", "state"), appName)
}

// RuntimeDir holds the control socket. Without XDG_RUNTIME_DIR it falls
// back to StateDir()/run.
func RuntimeDir() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, appName)
	}
	return filepath.Join(StateDir(), "run")
}

// PluginsDir is the default directory scanned for plugin artifacts.
func PluginsDir() string {
	return filepath.Join(DataDir(), "plugins")
}

// LibrariesDir is the default directory declared libraries resolve in.
func LibrariesDir() string {
	return filepath.Join(DataDir(), "libraries")
}

// EnsureDir creates path and its parents with 0700 permissions.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o700); err != nil {
		return oops.In("xdg").With("path", path).Wrapf(err, "create directory")
	}
	return nil
}
