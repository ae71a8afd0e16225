// Copyright 2026 The wb Authors
// SPDX-License-Identifier: Apache-2.0

package tail

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/filetail/wb/lib/testutil"
)

func openCursor(t *testing.T, content string, limit int64) (*cursor, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "file.log")
	testutil.WriteFile(t, path, content)
	file, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { file.Close() })
	return &cursor{file: file, limit: limit}, path
}

func lineStrings(result readResult) []string {
	lines := make([]string, len(result.lines))
	for index, line := range result.lines {
		lines[index] = string(line)
	}
	return lines
}

func TestCursorBoundedRead(t *testing.T) {
	c, _ := openCursor(t, "aaaa\nbbbb\ncccc\n", 12)

	first, err := c.next()
	if err != nil {
		t.Fatal(err)
	}
	if got := lineStrings(first); len(got) != 2 || got[0] != "aaaa\n" || got[1] != "bbbb\n" {
		t.Fatalf("first read = %q", got)
	}
	if c.offset != 10 {
		t.Errorf("offset = %d, want 10", c.offset)
	}

	second, err := c.next()
	if err != nil {
		t.Fatal(err)
	}
	if got := lineStrings(second); len(got) != 1 || got[0] != "cccc\n" {
		t.Fatalf("second read = %q", got)
	}

	third, _ := c.next()
	if len(third.lines) != 0 {
		t.Errorf("read at EOF returned %q", lineStrings(third))
	}
}

func TestCursorOversizedLine(t *testing.T) {
	c, _ := openCursor(t, "0123456789abcdef\n", 8)

	var pieces []string
	for attempt := 0; attempt < 5; attempt++ {
		result, err := c.next()
		if err != nil {
			t.Fatal(err)
		}
		pieces = append(pieces, lineStrings(result)...)
	}
	joined := ""
	for _, piece := range pieces {
		joined += piece
	}
	if joined != "0123456789abcdef\n" {
		t.Errorf("pieces %q do not reassemble the line", pieces)
	}
}

func TestCursorRewindsAfterTruncate(t *testing.T) {
	c, path := openCursor(t, "old line\n", 1024)
	if _, err := c.next(); err != nil {
		t.Fatal(err)
	}
	testutil.WriteFile(t, path, "new\n")

	result, err := c.next()
	if err != nil {
		t.Fatal(err)
	}
	if !result.rewound {
		t.Error("rewound = false after truncate")
	}
	if got := lineStrings(result); len(got) != 1 || got[0] != "new\n" {
		t.Errorf("lines = %q", got)
	}
}

func TestLineRing(t *testing.T) {
	ring := newLineRing(3)
	if got := string(ring.join()); got != "" {
		t.Errorf("empty join = %q", got)
	}
	for _, line := range []string{"a\n", "b\n"} {
		ring.push([]byte(line))
	}
	if got := string(ring.join()); got != "a\nb\n" {
		t.Errorf("partial join = %q", got)
	}
	for _, line := range []string{"c\n", "d\n", "e\n"} {
		ring.push([]byte(line))
	}
	if got := string(ring.join()); got != "c\nd\ne\n" {
		t.Errorf("wrapped join = %q", got)
	}
	if ring.len() != 3 {
		t.Errorf("len() = %d", ring.len())
	}
}
