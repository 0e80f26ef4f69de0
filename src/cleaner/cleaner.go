// Package cleaner implements the two pure transforms of spec §4.3:
// Clean produces agent-friendly plain text, and Render produces "what a
// terminal shows" for the screen view. No VT100 emulator library
// appears anywhere in the retrieved example pack (see DESIGN.md), so
// per spec §4.3's explicit fallback clause, Render degrades to Clean's
// output rather than emulating a real screen grid.
package cleaner

import (
	"bytes"
	"regexp"
	"strings"
)

// ansiEscape matches CSI/OSC/DCS/SOS/PM/APC sequences and single-char
// ESC commands. ESC [ ... final-byte covers CSI; ESC ] ... BEL|ST covers
// OSC; the final alternative catches bare two-byte ESC commands.
var ansiEscape = regexp.MustCompile(
	"\x1b\\[[0-?]*[ -/]*[@-~]" + // CSI ... final byte
		"|\x1b\\][^\x07\x1b]*(\x07|\x1b\\\\)?" + // OSC ... BEL or ST
		"|\x1b[PX^_][^\x1b]*\x1b\\\\" + // DCS/SOS/PM/APC ... ST
		"|\x1b.", // any other ESC + one char
)

var blankLineRun = regexp.MustCompile(`\n{3,}`)

// sentinelLine matches the run-protocol sentinels from spec §4.4 so
// they never leak into client-facing output, even if a caller's cursor
// window happens to straddle one.
var sentinelLine = regexp.MustCompile(`(?m)^__SILC_(BEGIN|END)_[0-9a-f]+__.*$\n?`)

// Clean implements spec §4.3's six steps, in order.
func Clean(raw []byte) []byte {
	// 1. Keep only the segment after the last \r on each line (progress-bar
	// overwrites). A \r ending the line (CRLF) is a line ending, not an overwrite.
	lines := bytes.Split(raw, []byte("\n"))
	for i, line := range lines {
		line = bytes.TrimRight(line, "\r")
		lines[i] = line
		if idx := bytes.LastIndexByte(line, '\r'); idx >= 0 {
			lines[i] = line[idx+1:]
		}
	}
	collapsed := bytes.Join(lines, []byte("\n"))

	// 2. Strip ANSI/OSC/DCS/SOS/PM/APC sequences and bare ESC commands.
	stripped := ansiEscape.ReplaceAll(collapsed, nil)

	// 3. Drop non-printable control chars except \t.
	stripped = dropControlChars(stripped)

	// 4. Right-trim whitespace, per line (trailing newlines of the whole
	// text are trimmed at the end, after step 6).
	stripped = rightTrimLines(stripped)

	// 5. Collapse consecutive blank lines to one.
	stripped = blankLineRun.ReplaceAll(stripped, []byte("\n\n"))

	// 6. Remove any sentinel lines that leaked into output.
	stripped = sentinelLine.ReplaceAll(stripped, nil)

	return bytes.TrimRight(stripped, "\n")
}

func dropControlChars(b []byte) []byte {
	out := make([]byte, 0, len(b))
	for _, c := range b {
		switch {
		case c == '\t' || c == '\n':
			out = append(out, c)
		case c < 0x20 || c == 0x7f:
			// drop
		default:
			out = append(out, c)
		}
	}
	return out
}

func rightTrimLines(b []byte) []byte {
	lines := strings.Split(string(b), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return []byte(strings.Join(lines, "\n"))
}

// Render produces the "what a terminal shows" view for the given
// (rows, cols). Per the Open Question decision in DESIGN.md, it falls
// back to Clean's output when no VT100 emulator is wired.
func Render(raw []byte, rows, cols int) []byte {
	_ = rows
	_ = cols
	return Clean(raw)
}
