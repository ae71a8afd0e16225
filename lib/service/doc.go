// Copyright 2026 The wb Authors
// SPDX-License-Identifier: Apache-2.0

// Package service provides the two servers a wb process runs and the
// client wbctl uses.
//
//   - [HTTPServer] serves the browser surface on TCP, walking a port
//     range when the configured port is busy, and shuts down
//     gracefully when its context is cancelled.
//   - [SocketServer] serves the admin protocol on a Unix socket: one
//     CBOR request and one CBOR [Reply] per connection. It owns the
//     action table and refuses requests whose action is unknown or
//     whose fields the [Action] does not accept before any action
//     runs.
//   - [ServiceClient] is the other end of SocketServer.
//
// Reaching the admin socket requires filesystem access to its path,
// which is created with mode 0600, and a peer uid (SO_PEERCRED) equal
// to the server's or root. The socket is the only way to
// change feature flags at runtime.
package service
