package cleaner

import (
	"bytes"
	"testing"
)

func TestCleanStripsANSI(t *testing.T) {
	raw := []byte("\x1b[31mred\x1b[0m text\r\n")
	got := Clean(raw)
	if bytes.Contains(got, []byte{0x1b}) {
		t.Fatalf("expected no ESC bytes, got %q", got)
	}
	if !bytes.Contains(got, []byte("red text")) {
		t.Fatalf("expected cleaned text to contain %q, got %q", "red text", got)
	}
}

func TestCleanHandlesCarriageReturnOverwrite(t *testing.T) {
	raw := []byte("progress 1%\rprogress 99%\rprogress 100%\n")
	got := Clean(raw)
	if !bytes.Equal(bytes.TrimRight(got, "\n"), []byte("progress 100%")) {
		t.Fatalf("got %q", got)
	}
}

func TestCleanDropsControlCharsKeepsTab(t *testing.T) {
	raw := []byte("a\tb\x07c\x01d\n")
	got := Clean(raw)
	if !bytes.Equal(got, []byte("a\tbcd")) {
		t.Fatalf("got %q", got)
	}
}

func TestCleanCollapsesBlankLines(t *testing.T) {
	raw := []byte("a\n\n\n\n\nb\n")
	got := Clean(raw)
	if bytes.Count(got, []byte("\n\n\n")) != 0 {
		t.Fatalf("expected blank line runs collapsed, got %q", got)
	}
}

func TestCleanRemovesSentinels(t *testing.T) {
	raw := []byte("before\n__SILC_BEGIN_abc12345__\nhello\n__SILC_END_abc12345__:0\nafter\n")
	got := Clean(raw)
	if bytes.Contains(got, []byte("__SILC_")) {
		t.Fatalf("sentinel leaked into output: %q", got)
	}
	if !bytes.Contains(got, []byte("hello")) {
		t.Fatalf("expected command output preserved, got %q", got)
	}
}

func TestCleanIdempotent(t *testing.T) {
	inputs := [][]byte{
		[]byte("\x1b[1;31mhello\x1b[0m\r\nworld\r\r\n\n\n\nfoo\t\x07bar  \n"),
		[]byte("plain text\nwith\nmultiple\nlines\n"),
		{},
		[]byte("\x1b]0;title\x07body"),
	}
	for _, in := range inputs {
		once := Clean(in)
		twice := Clean(once)
		if !bytes.Equal(once, twice) {
			t.Fatalf("Clean not idempotent:\n once=%q\n twice=%q", once, twice)
		}
	}
}

func TestRenderFallsBackToClean(t *testing.T) {
	raw := []byte("\x1b[31mred\x1b[0m")
	if !bytes.Equal(Render(raw, 24, 80), Clean(raw)) {
		t.Fatalf("expected Render to fall back to Clean output")
	}
}
