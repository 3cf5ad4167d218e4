package auth

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// MinSecretLength is the shortest SESSION_SECRET accepted.
const MinSecretLength = 16

// Keys are independent keys derived from the single configured secret.
type Keys struct {
	SessionHash  []byte // HMAC key for the session cookie (64 bytes)
	SessionBlock []byte // AES-256 key for the session cookie (32 bytes)
	State        []byte // HS256 key for OAuth state tokens (32 bytes)
}

// DeriveKeys expands secret with HKDF-SHA256, one info label per key.
func DeriveKeys(secret string) (Keys, error) {
	if len(secret) < MinSecretLength {
		return Keys{}, fmt.Errorf("auth: secret must be at least %d characters", MinSecretLength)
	}

	derive := func(label string, n int) ([]byte, error) {
		key := make([]byte, n)
		r := hkdf.New(sha256.New, []byte(secret), nil, []byte("microblog "+label))
		if _, err := io.ReadFull(r, key); err != nil {
			return nil, fmt.Errorf("auth: deriving %s key: %w", label, err)
		}
		return key, nil
	}

	var (
		k   Keys
		err error
	)
	if k.SessionHash, err = derive("session-hash", 64); err != nil {
		return Keys{}, err
	}
	if k.SessionBlock, err = derive("session-block", 32); err != nil {
		return Keys{}, err
	}
	if k.State, err = derive("oauth-state", 32); err != nil {
		return Keys{}, err
	}
	return k, nil
}
