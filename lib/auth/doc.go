// Copyright 2026 The wb Authors
// SPDX-License-Identifier: Apache-2.0

// Package auth gates wb behind a single shared access token.
//
// A client proves it knows the token once, at /login, and receives an
// HTTP-only session cookie. The cookie carries its issue time and a
// random nonce, authenticated with a BLAKE3 keyed hash. The MAC key is
// derived from the token with HKDF-SHA256, so restarting wb with a new
// token invalidates every outstanding cookie, and the token itself
// never appears in a cookie.
//
// [Authenticator.RequireBrowser] redirects unauthenticated page loads
// to the login form. [Authenticator.RequireAPI] answers 401 instead,
// for websocket upgrades, which cannot follow a redirect.
package auth
