package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// OpaqueSecretBytes is the entropy of reset and verification secrets
const OpaqueSecretBytes = 32

// GenerateOpaqueSecret returns a hex-encoded random bearer secret
func GenerateOpaqueSecret() (string, error) {
	b := make([]byte, OpaqueSecretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// HashToken returns the hex SHA-256 digest stored in place of a bearer secret
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
