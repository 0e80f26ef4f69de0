package sessionserver

import (
	"bufio"
	"os"
)

// tailLines returns the last n lines of the file at path.
func tailLines(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	ring := make([]string, n)
	count := 0
	for scanner.Scan() {
		ring[count%n] = scanner.Text()
		count++
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if count == 0 {
		return nil, nil
	}
	if count < n {
		return ring[:count], nil
	}
	out := make([]string, n)
	start := count % n
	copy(out, ring[start:])
	copy(out[n-start:], ring[:start])
	return out, nil
}
