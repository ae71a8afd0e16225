// Copyright 2026 The wb Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil holds network helpers shared by wb's servers.
//
// IsExpectedCloseError classifies the errors that normal client
// disconnects produce on HTTP, websocket, and Unix-socket connections,
// so callers can log them at debug instead of error. Listen binds a
// TCP address, walking forward through a port range when the first
// choice is busy.
package netutil
