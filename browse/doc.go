// Copyright 2026 The wb Authors
// SPDX-License-Identifier: Apache-2.0

// Package browse is wb's HTTP surface.
//
// Routes:
//
//	GET  /stream/{path...}  websocket: backlog, then one message per appended line
//	GET  /features          websocket: capability flags as JSON, on connect and on change
//	GET  /{path...}         directory listing or file view; ?download=1 for an attachment, ?tail=1 for the live view
//	POST /upload            multipart "dir" then one or more "file" parts
//	POST /delete            form "path"
//	POST /rename            form "path", "name"
//	GET|POST /login, POST /logout
//
// Everything except /login requires the session cookie. Page routes
// redirect to /login without it; the websocket routes answer 401.
// Page responses are gzip-compressed when the client accepts it.
//
// The websocket handlers are thin: /stream hands the connection to a
// tail.Session as its Sink, and /features drains a features.Set
// mailbox into the connection. Both are registered in the shared
// registry so shutdown can close them.
package browse
