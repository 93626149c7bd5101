// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package world

import (
	"fmt"
	"io"
	"sync"

	pluginsdk "github.com/holomush/plugbridge/pkg/plugin"
)

// Recipient is who a message or sound is delivered to. Name is empty for
// the console.
type Recipient struct {
	Sender pluginsdk.Sender
	Name   string
}

func (r Recipient) String() string {
	if r.Sender.IsConsole() {
		return "console"
	}
	return r.Name
}

// Output delivers what the server shows to players and the console.
type Output interface {
	Message(to Recipient, text string)
	Sound(to Recipient, sound pluginsdk.Sound, at pluginsdk.Vec3)
}

// WriterOutput renders deliveries as lines on a writer.
type WriterOutput struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterOutput creates an output writing to w.
func NewWriterOutput(w io.Writer) *WriterOutput {
	return &WriterOutput{w: w}
}

// Message implements Output.
func (o *WriterOutput) Message(to Recipient, text string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if to.Sender.IsConsole() {
		_, _ = fmt.Fprintln(o.w, text)
		return
	}
	_, _ = fmt.Fprintf(o.w, "[-> %s] %s\n", to.Name, text)
}

// Sound implements Output.
func (o *WriterOutput) Sound(to Recipient, sound pluginsdk.Sound, at pluginsdk.Vec3) {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, _ = fmt.Fprintf(o.w, "[sound -> %s] %s at (%.1f, %.1f, %.1f) volume=%.2f pitch=%.2f\n",
		to, sound.Name, at.X, at.Y, at.Z, sound.Volume, sound.Pitch)
}
