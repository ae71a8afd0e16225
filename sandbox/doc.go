// Copyright 2026 The wb Authors
// SPDX-License-Identifier: Apache-2.0

// Package sandbox confines client-supplied paths to one directory tree.
//
// [NewRoot] canonicalizes the sandbox root once at startup. Every file
// operation then calls [Root.Resolve] on each client path before
// touching the filesystem; the returned [Path] is the only value the
// rest of wb accepts for I/O. Resolve rejects with a fault.Forbidden
// error when the path would leave the root, either lexically (".."
// segments) or through a symlink whose target lies outside.
//
// Containment is checked component-wise with filepath.Rel, never with
// a bare string prefix, so "/data-evil" is not mistaken for a child of
// "/data".
package sandbox
