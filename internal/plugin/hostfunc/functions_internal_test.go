// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package hostfunc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	lua "github.com/yuin/gopher-lua"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		wantContains   string
		wantNotContain string
		wantLog        string
	}{
		{
			name:         "deadline exceeded",
			err:          context.DeadlineExceeded,
			wantContains: "operation timed out",
			wantLog:      "timed out",
		},
		{
			name:         "wrapped deadline exceeded",
			err:          fmt.Errorf("slow store: %w", context.DeadlineExceeded),
			wantContains: "operation timed out",
			wantLog:      "timed out",
		},
		{
			name:           "internal error hides details behind a reference",
			err:            errors.New("pq: connection refused"),
			wantContains:   "internal error (ref: ",
			wantNotContain: "connection refused",
			wantLog:        "connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			f := New(nil, nil, WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))

			msg := f.sanitize("shop", "kv_get", tt.err)
			assert.Contains(t, msg, tt.wantContains)
			if tt.wantNotContain != "" {
				assert.NotContains(t, msg, tt.wantNotContain)
			}
			assert.Contains(t, buf.String(), tt.wantLog)
			assert.Contains(t, buf.String(), "plugin=shop")
		})
	}
}

func TestCallContext_InheritsStateContext(t *testing.T) {
	f := New(nil, nil, WithCallTimeout(time.Minute))
	L := lua.NewState()
	defer L.Close()

	parent, cancel := context.WithCancel(context.Background())
	L.SetContext(parent)
	ctx, done := f.callContext(L)
	defer done()

	deadline, ok := ctx.Deadline()
	assert.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)

	cancel()
	assert.Error(t, ctx.Err())
}

func TestCallContext_WithoutStateContext(t *testing.T) {
	f := New(nil, nil)
	L := lua.NewState()
	defer L.Close()

	ctx, done := f.callContext(L)
	defer done()
	assert.NoError(t, ctx.Err())
	_, ok := ctx.Deadline()
	assert.True(t, ok)
}
