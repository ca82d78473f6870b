package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// SessionTokenBytes is the entropy of a session cookie value.
const SessionTokenBytes = 32

// NewSessionToken returns a random URL-safe session token and the digest under which it is stored.
// Only the digest is persisted; the token itself goes to the client.
func NewSessionToken() (token, digest string, err error) {
	buf := make([]byte, SessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generating session token: %w", err)
	}
	token = base64.RawURLEncoding.EncodeToString(buf)
	return token, SessionDigest(token), nil
}

// SessionDigest returns the hex SHA-256 of a session token.
func SessionDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
