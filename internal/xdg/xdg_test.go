// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package xdg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectories(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		fn   func() string
		want string
	}{
		{"config from env", map[string]string{"XDG_CONFIG_HOME": "/custom/config"}, ConfigDir, "/custom/config/plugbridge"},
		{"config default", map[string]string{"XDG_CONFIG_HOME": ""}, ConfigDir, "/home/steve/.config/plugbridge"},
		{"data from env", map[string]string{"XDG_DATA_HOME": "/custom/data"}, DataDir, "/custom/data/plugbridge"},
		{"data default", map[string]string{"XDG_DATA_HOME": ""}, DataDir, "/home/steve/.local/share/plugbridge"},
		{"state default", map[string]string{"XDG_STATE_HOME": ""}, StateDir, "/home/steve/.local/state/plugbridge"},
		{"runtime from env", map[string]string{"XDG_RUNTIME_DIR": "/run/user/1000"}, RuntimeDir, "/run/user/1000/plugbridge"},
		{"runtime falls back to state", map[string]string{"XDG_RUNTIME_DIR": "", "XDG_STATE_HOME": "/var/state"}, RuntimeDir, "/var/state/plugbridge/run"},
		{"plugins", map[string]string{"XDG_DATA_HOME": "/data"}, PluginsDir, "/data/plugbridge/plugins"},
		{"libraries", map[string]string{"XDG_DATA_HOME": "/data"}, LibrariesDir, "/data/plugbridge/libraries"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("HOME", "/home/steve")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			assert.Equal(t, tt.want, tt.fn())
		})
	}
}

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, EnsureDir(dir))
	require.NoError(t, EnsureDir(dir), "existing directory")

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())
}

func TestEnsureDirOverFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o600))
	assert.Error(t, EnsureDir(filepath.Join(file, "sub")))
}
