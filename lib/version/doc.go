// Copyright 2026 The wb Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports build information for wb and wbctl.
//
// GitCommit, GitDirty, BuildTime, and Version are injected with
// -ldflags -X and default to "unknown" / "0.1.0-dev" in development
// builds and tests:
//
//	go build -ldflags "-X github.com/filetail/wb/lib/version.GitCommit=$(git rev-parse --short HEAD)" ./cmd/wb
package version
