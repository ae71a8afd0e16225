// Copyright 2026 The wb Authors
// SPDX-License-Identifier: Apache-2.0

package registry

// Mailbox is a single-slot, latest-wins queue owned by one subscriber.
// A subscriber that has not yet consumed a value when a newer one
// arrives only ever sees the newer one; it can fall behind but never
// observe an older state after a newer one.
type Mailbox[T any] struct {
	slot chan T
}

func newMailbox[T any]() *Mailbox[T] {
	return &Mailbox[T]{slot: make(chan T, 1)}
}

// C returns the channel the subscriber reads from.
func (m *Mailbox[T]) C() <-chan T { return m.slot }

// put replaces any pending value with value. Callers serialize puts
// (the registry lock), so the drain-then-send loop terminates on the
// first or second pass.
func (m *Mailbox[T]) put(value T) {
	for {
		select {
		case m.slot <- value:
			return
		default:
		}
		select {
		case <-m.slot:
		default:
		}
	}
}
