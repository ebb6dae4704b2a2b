package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DefaultLength is the number of random bytes in a generated token. Hex
// encoding doubles it on the wire; 24 bytes gives 192 bits of entropy.
const DefaultLength = 24

// Generate returns a random hex-encoded token of the requested byte length.
func Generate(length int) (string, error) {
	if length <= 0 {
		length = DefaultLength
	}

	buffer := make([]byte, length)
	if _, err := rand.Read(buffer); err != nil {
		return "", fmt.Errorf("token: read random: %w", err)
	}
	return hex.EncodeToString(buffer), nil
}

// Digest returns the hex-encoded SHA-256 digest of a raw token. Only digests
// are ever persisted; the raw token cannot be recovered from storage.
func Digest(raw string) string {
	checksum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(checksum[:])
}
