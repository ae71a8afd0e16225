// Copyright 2026 The wb Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"errors"
	"fmt"
	"sync"
)

// Session is a live tail session as seen by the registry.
type Session interface {
	ID() string
	Close() error
}

// SessionSet is the set of live sessions. The zero value is empty and
// ready to use, and it is safe for concurrent use.
type SessionSet struct {
	mu       sync.Mutex
	sessions map[string]Session
}

// Track records a live session.
func (s *SessionSet) Track(session Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions == nil {
		s.sessions = make(map[string]Session)
	}
	s.sessions[session.ID()] = session
}

// Untrack forgets a session. Unknown ids are ignored.
func (s *SessionSet) Untrack(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len returns the number of tracked sessions.
func (s *SessionSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// CloseAll closes every tracked session. Sessions untrack themselves
// as they close, so the lock is not held while closing.
func (s *SessionSet) CloseAll() error {
	s.mu.Lock()
	sessions := make([]Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, session)
	}
	s.mu.Unlock()

	var errs []error
	for _, session := range sessions {
		if err := session.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing session %s: %w", session.ID(), err))
		}
	}
	return errors.Join(errs...)
}
