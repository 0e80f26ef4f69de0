package ringbuffer

import (
	"bytes"
	"math/rand"
	"testing"
)

func TestAppendSinceMonotonic(t *testing.T) {
	rb := New(1024)
	var lastCursor uint64

	for i := 0; i < 50; i++ {
		chunk := bytes.Repeat([]byte{byte('a' + i%26)}, rand.Intn(20)+1)
		rb.Append(chunk)

		_, cursor := rb.Since(lastCursor)
		if cursor < lastCursor {
			t.Fatalf("cursor went backwards: %d -> %d", lastCursor, cursor)
		}
		lastCursor = cursor
	}

	if rb.Cursor() != lastCursor {
		t.Fatalf("final cursor mismatch: buffer=%d observed=%d", rb.Cursor(), lastCursor)
	}
}

func TestCapacityInvariant(t *testing.T) {
	rb := New(16)
	rb.Append([]byte("0123456789"))
	rb.Append([]byte("0123456789"))

	if rb.Len() > 16 {
		t.Fatalf("len %d exceeds capacity 16", rb.Len())
	}
	if rb.Cursor()-rb.StartOffset() != uint64(rb.Len()) {
		t.Fatalf("cursor - startOffset (%d) != len (%d)", rb.Cursor()-rb.StartOffset(), rb.Len())
	}
}

func TestSinceBeforeStartOffsetResyncs(t *testing.T) {
	rb := New(8)
	rb.Append([]byte("abcdefgh")) // fills capacity exactly
	rb.Append([]byte("ijkl"))     // trims "abcd"

	data, cursor := rb.Since(0)
	if string(data) != "efghijkl" {
		t.Fatalf("expected resync to startOffset, got %q", data)
	}
	if cursor != rb.Cursor() {
		t.Fatalf("cursor mismatch")
	}
}

func TestSinceAtCursorReturnsNothing(t *testing.T) {
	rb := New(64)
	rb.Append([]byte("hello"))
	c := rb.Cursor()

	data, cursor := rb.Since(c)
	if len(data) != 0 {
		t.Fatalf("expected no new bytes, got %q", data)
	}
	if cursor != c {
		t.Fatalf("expected cursor unchanged, got %d want %d", cursor, c)
	}
}

func TestTailReturnsLastNLines(t *testing.T) {
	rb := New(1024)
	rb.Append([]byte("line1\nline2\nline3\nline4\n"))

	got := string(rb.Tail(2))
	want := "line3\nline4\n"
	if got != want {
		t.Fatalf("Tail(2) = %q, want %q", got, want)
	}

	all := string(rb.Tail(100))
	if all != "line1\nline2\nline3\nline4\n" {
		t.Fatalf("Tail(100) = %q, want whole buffer", all)
	}
}

func TestClearPreservesCursor(t *testing.T) {
	rb := New(1024)
	rb.Append([]byte("some output"))
	before := rb.Cursor()

	rb.Clear()

	if rb.Cursor() != before {
		t.Fatalf("Clear() must preserve cursor, got %d want %d", rb.Cursor(), before)
	}
	if rb.Len() != 0 {
		t.Fatalf("Clear() must empty data, len=%d", rb.Len())
	}
	data, cursor := rb.Since(0)
	if len(data) != 0 {
		t.Fatalf("expected no data retained pre-clear, got %q", data)
	}
	if cursor != before {
		t.Fatalf("cursor after clear mismatch")
	}
}

func TestSmallBufferNoGapsInCursor(t *testing.T) {
	rb := New(4)
	rb.Append([]byte("0123456789")) // far larger than capacity in one shot

	data, cursor := rb.Since(0)
	if string(data) != "6789" {
		t.Fatalf("expected only last 4 bytes retained, got %q", data)
	}
	if cursor != 10 {
		t.Fatalf("expected cursor 10, got %d", cursor)
	}
	if rb.StartOffset() != 6 {
		t.Fatalf("expected startOffset 6, got %d", rb.StartOffset())
	}
}

func BenchmarkAppend(b *testing.B) {
	rb := New(DefaultCapacity)
	chunk := bytes.Repeat([]byte{'x'}, 256)
	for b.Loop() {
		rb.Append(chunk)
	}
}
