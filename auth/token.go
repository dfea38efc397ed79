package auth

import (
	"crypto/rand"
	"encoding/base64"
)

// GenerateStateToken generates a unique, unguessable CSRF nonce for the
// OAuth2 authorization round trip.
func GenerateStateToken() (string, error) {
	return randomToken(32)
}

// GenerateAccessToken generates the opaque bearer token used by the local
// password strategy.
func GenerateAccessToken() (string, error) {
	return randomToken(32)
}

func randomToken(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
