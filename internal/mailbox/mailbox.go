// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package mailbox provides the bounded FIFO queue the runtime actor drains and
// the single-use reply slot its callers wait on.
package mailbox

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned when sending to or receiving from a closed mailbox.
var ErrClosed = errors.New("mailbox closed")

// Mailbox is a bounded, ordered, many-writer single-reader queue.
//
// Send blocks while the mailbox is full. Messages are never dropped: a send
// either enqueues or returns an error.
type Mailbox[M any] struct {
	ch   chan M
	done chan struct{}

	// mu guards closed against in-flight sends. Senders hold the read lock
	// while blocked on ch so Close cannot finish under them.
	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

// New creates a mailbox holding at most capacity pending messages.
// A capacity below 1 is treated as 1.
func New[M any](capacity int) *Mailbox[M] {
	if capacity < 1 {
		capacity = 1
	}
	return &Mailbox[M]{
		ch:   make(chan M, capacity),
		done: make(chan struct{}),
	}
}

// Send enqueues msg, waiting for space when the mailbox is full. It returns
// ErrClosed once the mailbox is closed and ctx.Err() if ctx ends first.
func (m *Mailbox[M]) Send(ctx context.Context, msg M) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return ErrClosed
	}
	// Fast path keeps FIFO order for senders that never block.
	select {
	case m.ch <- msg:
		return nil
	default:
	}

	select {
	case m.ch <- msg:
		return nil
	case <-m.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err() //nolint:wrapcheck // caller inspects the context error
	}
}

// Receive returns the next message, waiting until one arrives. After Close it
// returns ErrClosed; remaining messages are available through Drain.
func (m *Mailbox[M]) Receive(ctx context.Context) (M, error) {
	var zero M
	select {
	case <-m.done:
		return zero, ErrClosed
	default:
	}

	select {
	case msg := <-m.ch:
		return msg, nil
	case <-m.done:
		return zero, ErrClosed
	case <-ctx.Done():
		return zero, ctx.Err() //nolint:wrapcheck // caller inspects the context error
	}
}

// Close stops the mailbox. Blocked senders return ErrClosed. Close is idempotent.
func (m *Mailbox[M]) Close() {
	m.closeOnce.Do(func() {
		close(m.done)
		m.mu.Lock()
		m.closed = true
		m.mu.Unlock()
	})
}

// Closed reports whether Close has been called.
func (m *Mailbox[M]) Closed() bool {
	select {
	case <-m.done:
		return true
	default:
		return false
	}
}

// Drain removes and returns every message still queued, in order. It is meant
// to be called by the reader after Close.
func (m *Mailbox[M]) Drain() []M {
	var out []M
	for {
		select {
		case msg := <-m.ch:
			out = append(out, msg)
		default:
			return out
		}
	}
}

// Len returns the number of queued messages.
func (m *Mailbox[M]) Len() int { return len(m.ch) }

// Cap returns the mailbox capacity.
func (m *Mailbox[M]) Cap() int { return cap(m.ch) }
