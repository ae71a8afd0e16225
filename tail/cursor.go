// Copyright 2026 The wb Authors
// SPDX-License-Identifier: Apache-2.0

package tail

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
)

// cursor reads complete lines appended to a file after offset. It
// uses ReadAt, so the file's own seek position is irrelevant.
type cursor struct {
	file   *os.File
	offset int64
	// limit bounds the bytes examined per read so one tick never does
	// unbounded work.
	limit int64
}

// readResult is the outcome of one cursor read.
type readResult struct {
	lines [][]byte
	// rewound is set when the file had shrunk below the cursor
	// (truncated or replaced in place) and reading restarted at 0.
	rewound bool
}

// next returns every complete line between the cursor and the current
// end of file, up to limit bytes, and advances past them. A trailing
// partial line is left unconsumed. If the window holds no newline at
// all and is full, the window is returned as one piece so an oversized
// line cannot stall the cursor forever.
func (c *cursor) next() (readResult, error) {
	var result readResult

	info, err := c.file.Stat()
	if err != nil {
		return result, fmt.Errorf("stat: %w", err)
	}
	size := info.Size()
	if size < c.offset {
		c.offset = 0
		result.rewound = true
	}

	available := size - c.offset
	if available <= 0 {
		return result, nil
	}
	if available > c.limit {
		available = c.limit
	}

	window := make([]byte, available)
	count, err := c.file.ReadAt(window, c.offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return result, fmt.Errorf("reading at offset %d: %w", c.offset, err)
	}
	window = window[:count]

	consumed := 0
	for {
		newline := bytes.IndexByte(window[consumed:], '\n')
		if newline < 0 {
			break
		}
		end := consumed + newline + 1
		result.lines = append(result.lines, window[consumed:end])
		consumed = end
	}
	if consumed == 0 && int64(count) == c.limit {
		result.lines = append(result.lines, window)
		consumed = count
	}

	c.offset += int64(consumed)
	return result, nil
}
