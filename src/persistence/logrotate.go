package persistence

import (
	"bufio"
	"os"
)

// RotateByLineCount truncates path to its last maxLines lines if it
// currently exceeds that count (spec §4.7: "each rotated to a
// configurable max line count by a periodic task"). A missing file, or
// one already within budget, is a no-op.
func RotateByLineCount(path string, maxLines int) error {
	if maxLines <= 0 {
		return nil
	}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	f.Close()
	if err := scanner.Err(); err != nil {
		return err
	}

	if len(lines) <= maxLines {
		return nil
	}
	keep := lines[len(lines)-maxLines:]

	// Rewritten in place (not renamed over) so a writer that holds path
	// open with O_APPEND keeps writing to the rotated file.
	f, err = os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for _, line := range keep {
		if _, err := w.WriteString(line); err != nil {
			f.Close()
			return err
		}
		if _, err := w.WriteString("\n"); err != nil {
			f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
