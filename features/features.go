// Copyright 2026 The wb Authors
// SPDX-License-Identifier: Apache-2.0

// Package features holds the process-wide capability flags that gate
// upload, delete, rename, and download.
//
// A [Set] has a single writer: [Set.Update] and [Set.Apply] are called
// only from the administrative path (startup configuration and the
// admin socket), never from HTTP handlers. Handlers read a fresh
// [Set.Snapshot] on every request. Every change is pushed to all
// subscribers registered through [Set.Subscribe].
package features

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/filetail/wb/lib/fault"
	"github.com/filetail/wb/registry"
)

// Capability names one gated class of operation. The string values are
// the JSON keys of the wire snapshot.
type Capability string

const (
	Upload   Capability = "file_upload"
	Delete   Capability = "file_delete"
	Rename   Capability = "file_rename"
	Download Capability = "file_download"
)

// Capabilities lists every capability in wire order.
var Capabilities = []Capability{Upload, Delete, Rename, Download}

// Flags is one snapshot of the capability flags. It is a value type;
// copies never alias the Set's state.
type Flags struct {
	Upload   bool `json:"file_upload" yaml:"file_upload"`
	Delete   bool `json:"file_delete" yaml:"file_delete"`
	Rename   bool `json:"file_rename" yaml:"file_rename"`
	Download bool `json:"file_download" yaml:"file_download"`
}

// Enabled reports whether capability is on in this snapshot.
func (f Flags) Enabled(capability Capability) bool {
	switch capability {
	case Upload:
		return f.Upload
	case Delete:
		return f.Delete
	case Rename:
		return f.Rename
	case Download:
		return f.Download
	default:
		return false
	}
}

// Patch is a partial update: nil fields leave the current value alone.
type Patch struct {
	Upload   *bool `json:"file_upload,omitempty"`
	Delete   *bool `json:"file_delete,omitempty"`
	Rename   *bool `json:"file_rename,omitempty"`
	Download *bool `json:"file_download,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Upload == nil && p.Delete == nil && p.Rename == nil && p.Download == nil
}

// ApplyTo returns flags with the patch's non-nil fields applied.
func (p Patch) ApplyTo(flags Flags) Flags {
	if p.Upload != nil {
		flags.Upload = *p.Upload
	}
	if p.Delete != nil {
		flags.Delete = *p.Delete
	}
	if p.Rename != nil {
		flags.Rename = *p.Rename
	}
	if p.Download != nil {
		flags.Download = *p.Download
	}
	return flags
}

// Set is the process-wide flag state plus its subscriber registry.
type Set struct {
	// mu orders Update against Subscribe so a new subscriber's seed
	// snapshot and later broadcasts arrive in commit order.
	mu          sync.Mutex
	current     Flags
	connections *registry.Registry[Flags]
	logger      *slog.Logger
}

// NewSet returns a Set holding initial and broadcasting through
// connections.
func NewSet(initial Flags, connections *registry.Registry[Flags], logger *slog.Logger) *Set {
	return &Set{
		current:     initial,
		connections: connections,
		logger:      logger,
	}
}

// Snapshot returns the latest committed flags.
func (s *Set) Snapshot() Flags {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Require returns a fault.Disabled error unless capability is enabled
// in the current snapshot.
func (s *Set) Require(capability Capability) error {
	if !s.Snapshot().Enabled(capability) {
		return fault.Disabledf("%s is disabled", capability)
	}
	return nil
}

// Update commits next and pushes it to every subscriber. Administrative
// callers only.
func (s *Set) Update(next Flags) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitLocked(next)
}

// Apply commits a partial update and returns the resulting flags.
// Administrative callers only.
func (s *Set) Apply(patch Patch) Flags {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := patch.ApplyTo(s.current)
	s.commitLocked(next)
	return next
}

func (s *Set) commitLocked(next Flags) {
	previous := s.current
	s.current = next
	delivered := s.connections.Broadcast(next)
	s.logger.Info("feature flags updated",
		"previous", previous,
		"current", next,
		"subscribers", delivered,
	)
}

// Subscribe registers a subscriber and seeds its mailbox with the
// current snapshot before any later broadcast can reach it.
func (s *Set) Subscribe(id string) (*registry.Mailbox[Flags], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mailbox, err := s.connections.Add(id)
	if err != nil {
		return nil, fmt.Errorf("subscribing to feature flags: %w", err)
	}
	s.connections.Deliver(id, s.current)
	return mailbox, nil
}

// Unsubscribe removes a subscriber. Safe to call more than once.
func (s *Set) Unsubscribe(id string) {
	s.connections.Remove(id)
}

// Subscribers returns the number of live subscribers.
func (s *Set) Subscribers() int {
	return s.connections.Subscribers()
}
