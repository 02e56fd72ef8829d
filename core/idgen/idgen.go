// Package idgen generates short, URL-safe identifiers for log correlation.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// Alphabet is the character set of generated ids.
const Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Length is the number of random characters after the prefix.
const Length = 10

// Generate returns prefix followed by a random id.
func Generate(prefix string) (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}

// MustGenerate is Generate for call sites that only need the id for logs.
// It falls back to the bare prefix if the random source fails.
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		return prefix
	}
	return id
}
