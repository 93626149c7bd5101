// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package plugin defines the value types that cross the boundary between the
// host server and the embedded plugin runtime.
package plugin

import (
	"strings"

	"github.com/google/uuid"
)

// EventKind identifies a host event that plugins may listen for.
type EventKind uint8

// Event kinds understood by the bridge. EventUnsupported covers every name the
// bridge does not know how to deliver.
const (
	EventUnsupported EventKind = iota
	EventPlayerJoin
	EventPlayerQuit
	EventPlayerChat
)

var eventKindNames = map[EventKind]string{
	EventPlayerJoin: "PlayerJoinEvent",
	EventPlayerQuit: "PlayerQuitEvent",
	EventPlayerChat: "AsyncPlayerChatEvent",
}

// String returns the plugin-facing event type name.
// Unrecognized kinds return "unsupported".
func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return "unsupported"
}

// Cancellable reports whether listeners may cancel events of this kind.
func (k EventKind) Cancellable() bool {
	return k == EventPlayerChat
}

// ParseEventKind maps a plugin-facing event type name onto an EventKind.
// Short forms without the "Event" suffix and the legacy chat name are accepted.
func ParseEventKind(name string) EventKind {
	n := strings.TrimSuffix(strings.TrimSpace(name), "Event")
	switch strings.ToLower(n) {
	case "playerjoin":
		return EventPlayerJoin
	case "playerquit":
		return EventPlayerQuit
	case "playerchat", "asyncplayerchat":
		return EventPlayerChat
	default:
		return EventUnsupported
	}
}

// Priority orders listeners of the same event. Lower priorities run first and
// Monitor runs last.
type Priority uint8

// Listener priorities.
const (
	PriorityLowest Priority = iota
	PriorityLow
	PriorityNormal
	PriorityHigh
	PriorityHighest
	PriorityMonitor
)

// ParsePriority accepts a priority name; anything unknown is Normal.
func ParsePriority(name string) Priority {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "lowest":
		return PriorityLowest
	case "low":
		return PriorityLow
	case "high":
		return PriorityHigh
	case "highest":
		return PriorityHighest
	case "monitor":
		return PriorityMonitor
	default:
		return PriorityNormal
	}
}

// String returns the lower-case priority name.
func (p Priority) String() string {
	switch p {
	case PriorityLowest:
		return "lowest"
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityHighest:
		return "highest"
	case PriorityMonitor:
		return "monitor"
	default:
		return "unknown"
	}
}

// Event is one host event occurrence. The set of implementations is closed;
// callers switch over the concrete types.
type Event interface {
	Kind() EventKind
	event()
}

// PlayerJoin fires after a player has joined the server.
type PlayerJoin struct {
	Player uuid.UUID
	Name   string
	// Message is the broadcast join message; listeners may replace it.
	Message string
}

// PlayerQuit fires after a player has left the server.
type PlayerQuit struct {
	Player  uuid.UUID
	Name    string
	Message string
}

// PlayerChat fires before a chat message is broadcast. A listener may cancel it.
type PlayerChat struct {
	Player  uuid.UUID
	Name    string
	Message string
}

// Unsupported carries an event type the bridge cannot deliver.
type Unsupported struct {
	Type string
}

// Kind implements Event.
func (PlayerJoin) Kind() EventKind { return EventPlayerJoin }

// Kind implements Event.
func (PlayerQuit) Kind() EventKind { return EventPlayerQuit }

// Kind implements Event.
func (PlayerChat) Kind() EventKind { return EventPlayerChat }

// Kind implements Event.
func (Unsupported) Kind() EventKind { return EventUnsupported }

func (PlayerJoin) event()  {}
func (PlayerQuit) event()  {}
func (PlayerChat) event()  {}
func (Unsupported) event() {}
