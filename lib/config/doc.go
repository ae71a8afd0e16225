// Copyright 2026 The wb Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads wb's YAML configuration.
//
// The file comes from exactly one place: the --config flag, or the
// WB_CONFIG environment variable when the flag is absent (see [Load]).
// Running without either uses [Default] unchanged. There is no search
// path and no ~/.config discovery.
//
// After parsing, ${HOME}, ${WB_ROOT}, and ${VAR:-default} patterns are
// expanded in path fields. No environment variable overrides a value
// that the file sets, with one exception handled by the caller: the
// access token may come from WB_ACCESS_TOKEN.
//
// This package depends only on features for the flag type.
package config
