// Copyright 2026 The wb Authors
// SPDX-License-Identifier: Apache-2.0

// Package tail streams a growing file to one client.
//
// A [Session] owns one open file handle and one byte cursor. It moves
// through four states:
//
//	Opening -> Backfilling -> Polling -> Closed
//
// Opening resolves the requested path through the sandbox and checks
// it is a regular file. Backfilling reads the file once, keeps only the
// last [BacklogLines] lines in a fixed ring, sends them as a single
// message, and leaves the cursor at the byte where reading stopped.
// Polling wakes every [PollInterval], reads what has been appended past
// the cursor (at most [MaxReadPerPoll] bytes), and sends each complete
// line as its own message. A trailing line without its terminator is
// left for the next tick, so a line written in several pieces is still
// delivered once and whole.
//
// Closed is terminal. It is entered on context cancellation (client
// disconnect), [Session.Close], a failed send, or a fatal read error,
// and always stops the ticker, closes the file, and untracks the
// session.
//
// Failures before Polling are reported to the client as one
// "error: ..." text message. During Polling a single failed read is
// logged and retried on the next tick; a second consecutive failure
// ends the session without a client-visible message.
//
// Sessions share nothing. Two sessions on the same file each open
// their own handle, so closing one never affects the other.
package tail
