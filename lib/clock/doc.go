// Copyright 2026 The wb Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source for the tail
// poller and anything else that runs on a period.
//
// Production code holds a Clock field set to Real(). Tests use Fake()
// and drive time with Advance, so poll ticks happen exactly when the
// test says they do:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	session := tail.NewSession(tail.Config{Clock: fake, ...})
//	go session.Run(ctx)
//	fake.WaitForTickers(1)        // the poll loop has started
//	fake.Advance(tail.PollInterval) // exactly one poll
//
// WaitForTickers closes the race between a goroutine creating its
// ticker and the test advancing the clock.
package clock
