// Copyright 2026 The wb Authors
// SPDX-License-Identifier: Apache-2.0

package tail

// lineRing keeps the most recent capacity lines. Older lines are
// overwritten as new ones arrive, so backfilling a large file holds at
// most capacity lines in memory regardless of file size.
type lineRing struct {
	lines [][]byte
	// next is the slot the next push writes (0 to capacity-1).
	next int
	// count is min(total pushed, capacity).
	count int
}

func newLineRing(capacity int) *lineRing {
	return &lineRing{lines: make([][]byte, capacity)}
}

// push stores line, taking ownership of the slice.
func (ring *lineRing) push(line []byte) {
	if len(ring.lines) == 0 {
		return
	}
	ring.lines[ring.next] = line
	ring.next = (ring.next + 1) % len(ring.lines)
	if ring.count < len(ring.lines) {
		ring.count++
	}
}

// len returns the number of retained lines.
func (ring *lineRing) len() int { return ring.count }

// join concatenates the retained lines oldest first. Lines keep their
// own terminators, so concatenation reproduces the file's tail.
func (ring *lineRing) join() []byte {
	size := 0
	for _, line := range ring.lines {
		size += len(line)
	}
	result := make([]byte, 0, size)
	start := (ring.next - ring.count + len(ring.lines)) % max(len(ring.lines), 1)
	for index := 0; index < ring.count; index++ {
		result = append(result, ring.lines[(start+index)%len(ring.lines)]...)
	}
	return result
}
