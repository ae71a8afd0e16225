// Copyright 2026 The wb Authors
// SPDX-License-Identifier: Apache-2.0

package features

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"
)

// ParseJSONC decodes a flags document written as JSONC (JSON with
// comments and trailing commas) into a Patch, so a file that names only
// some capabilities leaves the rest at their configured defaults.
// Unknown keys are rejected to catch typos like "file_uplaod".
func ParseJSONC(data []byte) (Patch, error) {
	decoder := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
	decoder.DisallowUnknownFields()

	var patch Patch
	if err := decoder.Decode(&patch); err != nil {
		return Patch{}, fmt.Errorf("parsing feature flags: %w", err)
	}
	return patch, nil
}

// LoadFile reads a JSONC flags document from path.
func LoadFile(path string) (Patch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Patch{}, fmt.Errorf("reading feature flags: %w", err)
	}
	patch, err := ParseJSONC(data)
	if err != nil {
		return Patch{}, fmt.Errorf("%s: %w", path, err)
	}
	return patch, nil
}
