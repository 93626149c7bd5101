// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package mailbox

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrCanceled is returned by Reply.Wait when the waiter stops waiting before
// the reply is resolved.
var ErrCanceled = errors.New("reply canceled")

// Reply is a single-use response slot. The actor resolves it exactly once and
// one caller waits on it. Resolving never blocks, even when nobody waits.
type Reply[T any] struct {
	ch       chan T
	resolved atomic.Bool
}

// NewReply creates an unresolved reply.
func NewReply[T any]() *Reply[T] {
	return &Reply[T]{ch: make(chan T, 1)}
}

// Resolve delivers v. Only the first call has an effect; it reports whether
// this call was the one that resolved the reply. Resolving a nil reply is a
// no-op, which is how fire-and-forget messages are expressed.
func (r *Reply[T]) Resolve(v T) bool {
	if r == nil {
		return false
	}
	if !r.resolved.CompareAndSwap(false, true) {
		return false
	}
	r.ch <- v
	return true
}

// Resolved reports whether Resolve has been called.
func (r *Reply[T]) Resolved() bool {
	return r != nil && r.resolved.Load()
}

// Wait blocks until the reply is resolved or ctx ends. Giving up does not
// affect the resolving side.
func (r *Reply[T]) Wait(ctx context.Context) (T, error) {
	select {
	case v := <-r.ch:
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("%w: %w", ErrCanceled, context.Cause(ctx))
	}
}
