package daemon

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// adjectives and nouns back the auto-generated "<adjective>-<noun>-<0..99>"
// session name (spec §4.9 step 1). No teacher/pack file offers a reusable
// word-list generator; kept intentionally small.
var adjectives = []string{
	"quiet", "amber", "brisk", "cedar", "dusky", "eager", "faded", "grave",
	"humid", "ivory", "jolly", "lucid", "misty", "noble", "olive", "plain",
	"quick", "rusty", "solar", "tidal",
}

var nouns = []string{
	"otter", "falcon", "willow", "canyon", "harbor", "meadow", "ember",
	"glacier", "cinder", "thicket", "quarry", "tundra", "estuary", "ridge",
	"summit", "delta", "grove", "marsh", "cove", "plateau",
}

// generateName produces a random "<adjective>-<noun>-<0..99>" candidate
// (spec §4.9 step 1); the caller retries on collision.
func generateName() (string, error) {
	adj, err := randomFrom(adjectives)
	if err != nil {
		return "", err
	}
	noun, err := randomFrom(nouns)
	if err != nil {
		return "", err
	}
	n, err := randomInt(100)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s-%d", adj, noun, n), nil
}

func randomFrom(words []string) (string, error) {
	n, err := randomInt(len(words))
	if err != nil {
		return "", err
	}
	return words[n], nil
}

func randomInt(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}
