// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/plugbridge/pkg/errutil"
)

func TestMigrateCommand_HasSubcommands(t *testing.T) {
	cmd := NewMigrateCmd()
	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.ElementsMatch(t, []string{"up", "down", "steps", "version", "force", "pending"}, names)
}

func TestMigrateCommand_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code string
	}{
		{"up without database", []string{"migrate", "up"}, "CONFIG_INVALID"},
		{"version without database", []string{"migrate", "version"}, "CONFIG_INVALID"},
		{"down needs confirmation", []string{"migrate", "down", "--database-url", "postgres://localhost/none"}, "CONFIRMATION_REQUIRED"},
		{"steps not a number", []string{"migrate", "steps", "two"}, "INVALID_ARGUMENT"},
		{"steps zero", []string{"migrate", "steps", "0"}, "INVALID_ARGUMENT"},
		{"force not a number", []string{"migrate", "force", "x"}, "INVALID_ARGUMENT"},
		{"unknown scheme", []string{"migrate", "up", "--database-url", "badscheme://localhost/db"}, "MIGRATION_INIT_FAILED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, tt.code)
		})
	}
}
