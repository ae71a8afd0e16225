// Copyright 2026 The wb Authors
// SPDX-License-Identifier: Apache-2.0

// Package fileops performs the browser's file operations inside the
// sandbox root.
//
// Every operation follows the same sequence: resolve each client path
// through [sandbox.Root.Resolve] (Forbidden on escape), check the
// operation's capability in the current [features.Set] snapshot
// (Disabled when off), run the filesystem call, and map its failure to
// NotFound or IOError. Reads (List, Stat, Open) need no capability.
// All returned errors are *fault.Error values.
package fileops
