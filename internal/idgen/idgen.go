// Package idgen generates identifiers: short random IDs backed by nanoid for
// event sequence references and process instances, and the sequential
// tracking references used by generated test data.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// DefaultPrefix is prepended to every generated sequence reference.
var DefaultPrefix = "seq-"

// Alphabet defines the character set used for the random portion of the ID.
var Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Length is the number of random characters generated (excluding the prefix).
var Length = 10

// TrackingReferencePrefix starts every generated tracking reference.
const TrackingReferencePrefix = "NZ"

// Generate returns a new unique ID using the default prefix.
func Generate() (string, error) {
	return GenerateWithPrefix(DefaultPrefix)
}

// GenerateWithPrefix returns a new unique ID with the given prefix.
func GenerateWithPrefix(prefix string) (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}

// TrackingReference returns the n-th generated tracking reference, e.g.
// NZ000000042.
func TrackingReference(n int) string {
	return fmt.Sprintf("%s%09d", TrackingReferencePrefix, n)
}
