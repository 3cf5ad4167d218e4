package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	stateIssuer = "microblog"
	// StateTTL bounds how long a user may sit on the consent screen.
	StateTTL = 10 * time.Minute
)

var ErrInvalidState = errors.New("auth: invalid OAuth state")

// StateSigner issues and checks the OAuth state parameter. The state is an
// HS256 token whose subject is a nonce also kept in the caller's session; a
// callback is accepted only when the token verifies, is unexpired, and names
// the nonce of the session presenting it.
type StateSigner struct {
	key []byte
	ttl time.Duration
}

func NewStateSigner(key []byte) (*StateSigner, error) {
	if len(key) < MinSecretLength {
		return nil, fmt.Errorf("auth: state key must be at least %d bytes", MinSecretLength)
	}
	return &StateSigner{key: key, ttl: StateTTL}, nil
}

// Issue signs a state token bound to nonce.
func (s *StateSigner) Issue(nonce string) (string, error) {
	return s.issueAt(nonce, time.Now())
}

func (s *StateSigner) issueAt(nonce string, now time.Time) (string, error) {
	c := jwt.RegisteredClaims{
		Subject:   nonce,
		Issuer:    stateIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("auth: signing state: %w", err)
	}
	return signed, nil
}

// Verify checks state against the nonce held by the session.
func (s *StateSigner) Verify(state, nonce string) error {
	if state == "" || nonce == "" {
		return ErrInvalidState
	}

	var c jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(state, &c,
		func(*jwt.Token) (any, error) { return s.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(stateIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidState, err)
	}
	if c.Subject != nonce {
		return fmt.Errorf("%w: nonce mismatch", ErrInvalidState)
	}
	return nil
}
