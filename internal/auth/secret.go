package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

const resetSecretBytes = 20

// NewResetSecret returns 20 random bytes, hex encoded.
func NewResetSecret() (string, error) {
	b := make([]byte, resetSecretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate reset secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Digest is the form in which refresh and reset tokens are stored. Two
// tokens are equal iff their digests are.
func Digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
