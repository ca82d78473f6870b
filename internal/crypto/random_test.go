package crypto

import (
	"encoding/base64"
	"testing"
)

func TestNewSessionToken(t *testing.T) {
	token, digest, err := NewSessionToken()
	if err != nil {
		t.Fatalf("NewSessionToken() unexpected error: %v", err)
	}

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		t.Fatalf("token is not raw URL base64: %v", err)
	}
	if len(raw) != SessionTokenBytes {
		t.Errorf("token entropy = %d bytes, want %d", len(raw), SessionTokenBytes)
	}
	if digest != SessionDigest(token) {
		t.Error("digest does not match SessionDigest(token)")
	}
	if digest == token {
		t.Error("digest must differ from the token")
	}
	if len(digest) != 64 {
		t.Errorf("digest length = %d, want 64 hex chars", len(digest))
	}
}

func TestNewSessionTokenUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token, _, err := NewSessionToken()
		if err != nil {
			t.Fatalf("NewSessionToken() unexpected error: %v", err)
		}
		if seen[token] {
			t.Fatalf("duplicate session token after %d iterations", i)
		}
		seen[token] = true
	}
}
