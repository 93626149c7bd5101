// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package command

import (
	"bytes"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	plugins "github.com/holomush/plugbridge/internal/plugin"
	"github.com/holomush/plugbridge/pkg/errutil"
)

func TestRegistry_RegisterAndGet(t *testing.T) {
	reg := NewRegistry(nil)

	entry := Entry{
		Name:        "Greet",
		Description: "Greets a player",
		Permission:  "greeter.greet",
		Handler:     plugins.HandlerRef{Plugin: "greeter", Command: "greet"},
	}
	require.NoError(t, reg.Register(entry))

	got, ok := reg.Get("GREET")
	require.True(t, ok)
	assert.Equal(t, "greet", got.Name)
	assert.Equal(t, "greeter.greet", got.Permission)
	assert.Equal(t, "greeter", got.Source())

	_, ok = reg.Get("nonexistent")
	assert.False(t, ok)
}

func TestRegistry_RejectsInvalidNames(t *testing.T) {
	reg := NewRegistry(nil)
	err := reg.Register(Entry{Name: "1bad"})
	require.Error(t, err)
	assert.Empty(t, reg.All())
}

func TestRegistry_AllSorted(t *testing.T) {
	reg := NewRegistry(nil)
	for _, name := range []string{"say", "look", "greeter:greet"} {
		require.NoError(t, reg.Register(Entry{Name: name}))
	}

	var names []string
	for _, e := range reg.All() {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"greeter:greet", "look", "say"}, names)
	assert.NotNil(t, NewRegistry(nil).All())
}

func TestRegistry_FirstRegistrationWins(t *testing.T) {
	var buf bytes.Buffer
	reg := NewRegistry(slog.New(slog.NewTextHandler(&buf, nil)))

	require.NoError(t, reg.Register(Entry{Name: "home", Permission: "alpha.home", Handler: plugins.HandlerRef{Plugin: "alpha", Command: "home"}}))
	err := reg.Register(Entry{Name: "home", Permission: "beta:home", Handler: plugins.HandlerRef{Plugin: "beta", Command: "home"}})
	errutil.AssertErrorCode(t, err, CodeCommandConflict)
	errutil.AssertErrorContext(t, err, "owner", "alpha")

	got, ok := reg.Get("home")
	require.True(t, ok)
	assert.Equal(t, "alpha", got.Source())
	assert.Equal(t, "alpha.home", got.Permission)
	assert.Contains(t, buf.String(), "command conflict")
	assert.Contains(t, buf.String(), "rejected_source=beta")
}

func TestRegistry_SameSourceReregisters(t *testing.T) {
	reg := NewRegistry(slog.New(slog.DiscardHandler))
	ref := plugins.HandlerRef{Plugin: "alpha", Command: "home"}

	require.NoError(t, reg.Register(Entry{Name: "home", Description: "old", Handler: ref}))
	require.NoError(t, reg.Register(Entry{Name: "home", Description: "new", Handler: ref}))

	got, _ := reg.Get("home")
	assert.Equal(t, "new", got.Description)
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	reg := NewRegistry(slog.New(slog.DiscardHandler))
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = reg.Register(Entry{Name: "cmd", Handler: plugins.HandlerRef{Plugin: string(rune('a' + i))}})
		}()
		go func() {
			defer wg.Done()
			_, _ = reg.Get("cmd")
			_ = reg.All()
		}()
	}
	wg.Wait()
	assert.Len(t, reg.All(), 1)
}

func TestEntry_SourceDefaultsToHost(t *testing.T) {
	assert.Equal(t, "host", Entry{Name: "stop"}.Source())
}
