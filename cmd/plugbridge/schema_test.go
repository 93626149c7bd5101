// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	plugins "github.com/holomush/plugbridge/internal/plugin"
)

func TestSchemaCommand(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		dialect plugins.Dialect
	}{
		{"default is primary", []string{"schema"}, plugins.DialectPrimary},
		{"primary", []string{"schema", "primary"}, plugins.DialectPrimary},
		{"legacy", []string{"schema", "legacy"}, plugins.DialectLegacy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			output, err := execute(t, tt.args...)
			require.NoError(t, err)

			var schema map[string]any
			require.NoError(t, json.Unmarshal([]byte(output), &schema))
			assert.Equal(t, plugins.SchemaID(tt.dialect), schema["$id"])
		})
	}
}

func TestSchemaCommand_UnknownDialect(t *testing.T) {
	isolate(t)
	_, err := execute(t, "schema", "bukkit")
	require.Error(t, err)
}

func TestSchemaCommand_Output(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "schemas", "plugin.schema.json")

	output, err := execute(t, "schema", "legacy", "-o", path)
	require.NoError(t, err)
	assert.Contains(t, output, "Generated "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, json.Valid(data))
}
