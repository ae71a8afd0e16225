// Copyright 2026 The wb Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
)

// GeneratedTokenBytes is the entropy in a generated token.
const GeneratedTokenBytes = 32

// ReadFile loads a secret from path, trimming surrounding whitespace.
func ReadFile(path string) (*Buffer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	defer Zero(data)

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("secret file %s is empty", path)
	}
	return NewFromBytes(trimmed)
}

// FromEnv loads a secret from the named environment variable and
// removes the variable from the process environment. It returns
// (nil, nil) when the variable is unset or empty.
func FromEnv(name string) (*Buffer, error) {
	value, ok := os.LookupEnv(name)
	if !ok || value == "" {
		return nil, nil
	}
	if err := os.Unsetenv(name); err != nil {
		return nil, fmt.Errorf("clearing %s: %w", name, err)
	}
	return NewFromBytes([]byte(value))
}

// Generate returns a random URL-safe token encoding
// GeneratedTokenBytes of entropy.
func Generate() (*Buffer, error) {
	raw := make([]byte, GeneratedTokenBytes)
	defer Zero(raw)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("generating token: %w", err)
	}

	buffer, err := New(base64.RawURLEncoding.EncodedLen(len(raw)))
	if err != nil {
		return nil, err
	}
	base64.RawURLEncoding.Encode(buffer.data, raw)
	return buffer, nil
}
