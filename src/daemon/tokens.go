package daemon

import (
	"crypto/rand"
	"encoding/hex"
)

// generateToken returns a random hex string of exactly length characters
// (spec §6.7: tokens.length), used when a session is created without an
// explicit token and tokens.require_token is set.
func generateToken(length int) (string, error) {
	if length <= 0 {
		return "", nil
	}
	buf := make([]byte, (length+1)/2)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf)[:length], nil
}
