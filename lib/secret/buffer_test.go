// Copyright 2026 The wb Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
)

func TestNewRejectsNonPositiveSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		if _, err := New(size); err == nil {
			t.Errorf("New(%d) succeeded", size)
		}
	}
}

func TestNewFromBytesZeroesSource(t *testing.T) {
	source := []byte("correct horse battery staple")
	buffer, err := NewFromBytes(source)
	if err != nil {
		t.Fatalf("NewFromBytes: %v", err)
	}
	defer buffer.Close()

	if got := buffer.String(); got != "correct horse battery staple" {
		t.Errorf("String() = %q", got)
	}
	for index, value := range source {
		if value != 0 {
			t.Fatalf("source byte %d not zeroed", index)
		}
	}
	if _, err := NewFromBytes(nil); err == nil {
		t.Error("NewFromBytes(nil) succeeded")
	}
}

func TestEqual(t *testing.T) {
	buffer, err := NewFromBytes([]byte("token-123"))
	if err != nil {
		t.Fatal(err)
	}
	defer buffer.Close()

	tests := []struct {
		candidate string
		want      bool
	}{
		{"token-123", true},
		{"token-124", false},
		{"token-12", false},
		{"", false},
	}
	for _, test := range tests {
		if got := buffer.Equal([]byte(test.candidate)); got != test.want {
			t.Errorf("Equal(%q) = %v, want %v", test.candidate, got, test.want)
		}
	}
}

func TestCloseZeroesAndPanicsAfter(t *testing.T) {
	buffer, err := NewFromBytes([]byte("sensitive"))
	if err != nil {
		t.Fatal(err)
	}
	view := buffer.Bytes()
	if err := buffer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := buffer.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	_ = view // unmapped; reading it would fault

	defer func() {
		if recover() == nil {
			t.Error("Bytes() after Close did not panic")
		}
	}()
	buffer.Bytes()
}

func TestReadFile(t *testing.T) {
	directory := t.TempDir()

	t.Run("trims", func(t *testing.T) {
		path := filepath.Join(directory, "token")
		if err := os.WriteFile(path, []byte("  abc123\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		buffer, err := ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		defer buffer.Close()
		if buffer.String() != "abc123" {
			t.Errorf("ReadFile = %q", buffer.String())
		}
	})

	t.Run("whitespace_only", func(t *testing.T) {
		path := filepath.Join(directory, "blank")
		if err := os.WriteFile(path, []byte(" \n\t"), 0o600); err != nil {
			t.Fatal(err)
		}
		if _, err := ReadFile(path); err == nil {
			t.Error("ReadFile accepted a blank file")
		}
	})

	t.Run("missing", func(t *testing.T) {
		if _, err := ReadFile(filepath.Join(directory, "absent")); err == nil {
			t.Error("ReadFile accepted a missing file")
		}
	})
}

func TestFromEnv(t *testing.T) {
	t.Setenv("WB_TEST_SECRET", "from-environment")

	buffer, err := FromEnv("WB_TEST_SECRET")
	if err != nil || buffer == nil {
		t.Fatalf("FromEnv = %v, %v", buffer, err)
	}
	defer buffer.Close()
	if buffer.String() != "from-environment" {
		t.Errorf("FromEnv = %q", buffer.String())
	}
	if _, ok := os.LookupEnv("WB_TEST_SECRET"); ok {
		t.Error("variable still set after FromEnv")
	}

	missing, err := FromEnv("WB_TEST_SECRET_UNSET")
	if err != nil || missing != nil {
		t.Errorf("FromEnv(unset) = %v, %v; want nil, nil", missing, err)
	}
}

func TestGenerate(t *testing.T) {
	first, err := Generate()
	if err != nil {
		t.Fatal(err)
	}
	defer first.Close()
	second, err := Generate()
	if err != nil {
		t.Fatal(err)
	}
	defer second.Close()

	decoded, err := base64.RawURLEncoding.DecodeString(first.String())
	if err != nil {
		t.Fatalf("token is not URL-safe base64: %v", err)
	}
	if len(decoded) != GeneratedTokenBytes {
		t.Errorf("token carries %d bytes, want %d", len(decoded), GeneratedTokenBytes)
	}
	if first.Equal(second.Bytes()) {
		t.Error("two generated tokens are equal")
	}
}
