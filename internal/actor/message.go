// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package actor

import (
	"github.com/holomush/plugbridge/internal/mailbox"
	plugins "github.com/holomush/plugbridge/internal/plugin"
	pluginsdk "github.com/holomush/plugbridge/pkg/plugin"
)

// Message is one request to the runtime actor. The set of messages is closed:
// only the types in this file implement it.
type Message interface {
	// kind names the message in logs, spans and metrics.
	kind() string
	// fail resolves the reply when the message will never be handled.
	fail(err error)
}

// Result pairs a reply value with the error that produced it.
type Result[T any] struct {
	Value T
	Err   error
}

// Outcomes maps plugin keys to the error a lifecycle pass produced for them.
// A nil error means the plugin transitioned successfully.
type Outcomes map[string]error

// Failed returns the keys whose operation failed.
func (o Outcomes) Failed() []string {
	var keys []string
	for k, err := range o {
		if err != nil {
			keys = append(keys, k)
		}
	}
	return keys
}

// Config is handed to the runtime when it is attached.
type Config struct {
	Services plugins.Services
	Store    plugins.KVStore
}

// Initialize attaches the runtime. It must be the first boundary message.
type Initialize struct {
	Config Config
	Reply  *mailbox.Reply[error]
}

// Register adds a parsed plugin to the registry.
type Register struct {
	Plugin *plugins.Plugin
	Reply  *mailbox.Reply[error]
}

// ResolveOrder computes the load order from the current registry.
type ResolveOrder struct {
	Reply *mailbox.Reply[Result[[]string]]
}

// InstantiateAll creates a runtime instance for every key in Order.
type InstantiateAll struct {
	Order []string
	Reply *mailbox.Reply[Result[Outcomes]]
}

// EnableAll enables every instantiated plugin.
type EnableAll struct {
	Reply *mailbox.Reply[Result[Outcomes]]
}

// DisableAll disables every enabled plugin.
type DisableAll struct {
	Reply *mailbox.Reply[Result[Outcomes]]
}

// Shutdown detaches the runtime and clears the registry. The worker exits
// after handling it.
type Shutdown struct {
	Reply *mailbox.Reply[error]
}

// DispatchCommand runs a command line on behalf of a sender.
type DispatchCommand struct {
	Line     string
	Sender   pluginsdk.Sender
	Location *pluginsdk.Location
	Reply    *mailbox.Reply[Result[bool]]
}

// TabComplete asks the runtime for completions of a partial command line.
type TabComplete struct {
	Line     string
	Sender   pluginsdk.Sender
	Location *pluginsdk.Location
	Reply    *mailbox.Reply[Result[[]string]]
}

// FireEvent delivers an event to one plugin. A nil Reply makes it a
// notification nobody waits on.
type FireEvent struct {
	Event  pluginsdk.Event
	Plugin string
	Reply  *mailbox.Reply[Result[bool]]
}

// Snapshot returns copies of every registered plugin.
type Snapshot struct {
	Reply *mailbox.Reply[Result[[]plugins.Plugin]]
}

func (Initialize) kind() string      { return "initialize" }
func (Register) kind() string        { return "register" }
func (ResolveOrder) kind() string    { return "resolve_order" }
func (InstantiateAll) kind() string  { return "instantiate_all" }
func (EnableAll) kind() string       { return "enable_all" }
func (DisableAll) kind() string      { return "disable_all" }
func (Shutdown) kind() string        { return "shutdown" }
func (DispatchCommand) kind() string { return "dispatch_command" }
func (TabComplete) kind() string     { return "tab_complete" }
func (FireEvent) kind() string       { return "fire_event" }
func (Snapshot) kind() string        { return "snapshot" }

func (m Initialize) fail(err error)      { m.Reply.Resolve(err) }
func (m Register) fail(err error)        { m.Reply.Resolve(err) }
func (m ResolveOrder) fail(err error)    { m.Reply.Resolve(Result[[]string]{Err: err}) }
func (m InstantiateAll) fail(err error)  { m.Reply.Resolve(Result[Outcomes]{Err: err}) }
func (m EnableAll) fail(err error)       { m.Reply.Resolve(Result[Outcomes]{Err: err}) }
func (m DisableAll) fail(err error)      { m.Reply.Resolve(Result[Outcomes]{Err: err}) }
func (m Shutdown) fail(err error)        { m.Reply.Resolve(err) }
func (m DispatchCommand) fail(err error) { m.Reply.Resolve(Result[bool]{Err: err}) }
func (m TabComplete) fail(err error)     { m.Reply.Resolve(Result[[]string]{Err: err}) }
func (m FireEvent) fail(err error)       { m.Reply.Resolve(Result[bool]{Err: err}) }
func (m Snapshot) fail(err error)        { m.Reply.Resolve(Result[[]plugins.Plugin]{Err: err}) }

var (
	_ Message = Initialize{}
	_ Message = Register{}
	_ Message = ResolveOrder{}
	_ Message = InstantiateAll{}
	_ Message = EnableAll{}
	_ Message = DisableAll{}
	_ Message = Shutdown{}
	_ Message = DispatchCommand{}
	_ Message = TabComplete{}
	_ Message = FireEvent{}
	_ Message = Snapshot{}
)
