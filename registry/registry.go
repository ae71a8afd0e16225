// Copyright 2026 The wb Authors
// SPDX-License-Identifier: Apache-2.0

// Package registry tracks every live persistent connection: flag
// subscribers, which receive broadcasts through a [Mailbox], and tail
// sessions, which are tracked only so shutdown can close them.
//
// Entries are added on connect and removed on disconnect. Callers
// remove in a defer so abnormal closes never leave a stale entry.
package registry

import (
	"fmt"
	"sync"
)

// Registry holds subscriber mailboxes carrying values of type T and a
// [SessionSet]. It is safe for concurrent use.
type Registry[T any] struct {
	mu          sync.Mutex
	subscribers map[string]*Mailbox[T]
	sessions    SessionSet
}

// New returns an empty registry.
func New[T any]() *Registry[T] {
	return &Registry[T]{
		subscribers: make(map[string]*Mailbox[T]),
	}
}

// Add registers a subscriber under id and returns its mailbox. Ids
// must be unique among live subscribers.
func (r *Registry[T]) Add(id string) (*Mailbox[T], error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.subscribers[id]; exists {
		return nil, fmt.Errorf("subscriber %q already registered", id)
	}
	mailbox := newMailbox[T]()
	r.subscribers[id] = mailbox
	return mailbox, nil
}

// Remove unregisters a subscriber. Removing an unknown id is a no-op,
// so teardown paths may call it unconditionally.
func (r *Registry[T]) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subscribers, id)
}

// Broadcast delivers value to every subscriber mailbox and returns how
// many received it. Delivery never blocks: each mailbox keeps only the
// latest undelivered value.
func (r *Registry[T]) Broadcast(value T) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, mailbox := range r.subscribers {
		mailbox.put(value)
	}
	return len(r.subscribers)
}

// Deliver puts value into one subscriber's mailbox. Returns false if
// id is not registered.
func (r *Registry[T]) Deliver(id string, value T) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	mailbox, ok := r.subscribers[id]
	if ok {
		mailbox.put(value)
	}
	return ok
}

// Subscribers returns the number of registered subscribers.
func (r *Registry[T]) Subscribers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subscribers)
}

// Sessions returns the registry's set of live tail sessions.
func (r *Registry[T]) Sessions() *SessionSet {
	return &r.sessions
}
