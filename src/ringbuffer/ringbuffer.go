// Package ringbuffer implements the bounded, monotonic-cursor byte
// buffer each session uses to store PTY output (spec §3, §4.2). Unlike
// the teacher's ManagedSession, which keeps an unbounded slice and
// trims it ad hoc on every append, cursor math here is first-class so
// WebSocket/SSE subscribers can resume a `since(cursor)` read after a
// reconnect without re-downloading history they already saw.
package ringbuffer

import "sync"

// DefaultCapacity matches spec §3's default of 64 KiB per session.
const DefaultCapacity = 64 * 1024

// Buffer is a bounded append-only byte store with a monotonically
// increasing cursor. All operations are safe for concurrent use.
type Buffer struct {
	mu          sync.Mutex
	capacity    int
	data        []byte
	startOffset uint64 // cursor value of data[0]
	cursor      uint64 // total bytes ever appended
}

// New creates a Buffer with the given capacity in bytes. A capacity <=
// 0 falls back to DefaultCapacity.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{capacity: capacity}
}

// Append adds b to the buffer, trimming the head to stay within
// capacity and advancing both cursor and startOffset. O(1) amortized:
// the trim is a slice reslice, never a copy.
func (rb *Buffer) Append(b []byte) {
	if len(b) == 0 {
		return
	}
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.data = append(rb.data, b...)
	rb.cursor += uint64(len(b))

	if excess := len(rb.data) - rb.capacity; excess > 0 {
		rb.data = rb.data[excess:]
		rb.startOffset += uint64(excess)
	}
}

// Since returns the bytes appended after cursor c, and the new cursor
// value. If c is at or beyond the current cursor, it returns no bytes.
// If c is older than startOffset (the caller fell behind and lost
// data to trimming), it returns everything currently retained, starting
// from startOffset — the caller is considered re-synced at that point.
func (rb *Buffer) Since(c uint64) ([]byte, uint64) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if c >= rb.cursor {
		return nil, rb.cursor
	}
	if c < rb.startOffset {
		c = rb.startOffset
	}

	offset := c - rb.startOffset
	out := make([]byte, len(rb.data)-int(offset))
	copy(out, rb.data[offset:])
	return out, rb.cursor
}

// Tail returns the bytes covering the last nLines newline-delimited
// lines, or the whole retained buffer if it contains fewer.
func (rb *Buffer) Tail(nLines int) []byte {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if nLines <= 0 || len(rb.data) == 0 {
		return nil
	}

	end := len(rb.data)
	// Ignore a single trailing newline so it doesn't count as an extra line.
	scanEnd := end
	if scanEnd > 0 && rb.data[scanEnd-1] == '\n' {
		scanEnd--
	}

	lines := 0
	start := 0
	for i := scanEnd - 1; i >= 0; i-- {
		if rb.data[i] == '\n' {
			lines++
			if lines == nLines {
				start = i + 1
				out := make([]byte, end-start)
				copy(out, rb.data[start:end])
				return out
			}
		}
	}

	out := make([]byte, end)
	copy(out, rb.data[:end])
	return out
}

// Clear empties the retained data while preserving the monotonic
// cursor: subsequent Since(cursorAtClearTime) calls correctly report
// "nothing new" rather than replaying pre-clear history.
func (rb *Buffer) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.data = nil
	rb.startOffset = rb.cursor
}

// Cursor returns the current cursor value (total bytes ever appended).
func (rb *Buffer) Cursor() uint64 {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.cursor
}

// StartOffset returns the cursor value of the oldest byte still retained.
func (rb *Buffer) StartOffset() uint64 {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.startOffset
}

// Len returns the number of bytes currently retained.
func (rb *Buffer) Len() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return len(rb.data)
}

// All returns a copy of all currently retained bytes, from startOffset.
func (rb *Buffer) All() []byte {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	out := make([]byte, len(rb.data))
	copy(out, rb.data)
	return out
}
