package token

import (
	"crypto/rand"
	"encoding/base64"
)

// DefaultLength is the default token length in bytes.
const DefaultLength = 32

// AdminKeyPrefix marks generated admin API keys.
const AdminKeyPrefix = "mtak_"

// Generate generates a cryptographically secure random token.
//
// The returned token is Base64 RawURL encoded for safe URL transmission.
func Generate() (string, error) {
	return GenerateWithLength(DefaultLength)
}

// GenerateWithLength generates a token with the specified byte length.
func GenerateWithLength(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

// GenerateAdminKey returns a new admin API key.
func GenerateAdminKey() (string, error) {
	body, err := Generate()
	if err != nil {
		return "", err
	}
	return AdminKeyPrefix + body, nil
}
