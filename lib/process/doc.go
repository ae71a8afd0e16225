// Copyright 2026 The wb Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds entrypoint helpers for wb's binaries: reporting
// an error from run() before or after the structured logger exists,
// and choosing the exit code.
package process
