// Copyright 2026 The wb Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [RequireReceive] and [RequireClosed] wrap the select-with-timeout
// pattern so tests that wait on streams and sessions never hang
// forever and never sprinkle time.After through test bodies.
//
// [SocketDir] returns a short directory under /tmp for Unix sockets,
// whose paths are limited to 108 bytes; t.TempDir() paths can exceed
// that.
//
// [WriteFile] and [AppendFile] create and grow fixture files, failing
// the test on error.
//
// All helpers call t.Fatalf on failure rather than returning errors.
package testutil
