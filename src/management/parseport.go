package management

import "strconv"

// parsePort parses a TCP port path parameter, rejecting anything
// outside the valid 16-bit range.
func parsePort(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n < 0 || n > 65535 {
		return 0, strconv.ErrRange
	}
	return n, nil
}
