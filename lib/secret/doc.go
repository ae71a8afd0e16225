// Copyright 2026 The wb Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret holds the access token outside the Go heap.
//
// A [Buffer] is an anonymous mmap region locked into RAM (mlock) and
// excluded from core dumps (MADV_DONTDUMP). The garbage collector never
// sees it, so no copy of the token survives a Close. The token enters a
// Buffer through [ReadFile], [FromEnv], or [Generate], and leaves it
// only through [Buffer.Equal] comparisons and the startup banner.
package secret
