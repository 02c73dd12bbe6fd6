// Package auth issues and verifies the bearer tokens protecting the API.
// Tokens are HS256 JWTs signed with a shared secret; the subject claim is
// the caller address the engines authorize against.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/tallystack/treasury/internal/domain"
)

// MinSecretLen is the minimum signing secret length in bytes.
const MinSecretLen = 32

const issuer = "treasury"

// ErrUnauthenticated marks a request with a missing or invalid bearer
// token. The HTTP layer maps it to 401.
var ErrUnauthenticated = errors.New("unauthenticated")

// Signer issues and verifies tokens with one shared secret.
type Signer struct {
	secret []byte
}

// NewSigner validates the secret and returns a Signer.
func NewSigner(secret []byte) (*Signer, error) {
	if len(secret) < MinSecretLen {
		return nil, fmt.Errorf("signing secret must be at least %d bytes, got %d", MinSecretLen, len(secret))
	}

	return &Signer{secret: secret}, nil
}

// Issue creates a signed token for the subject address.
func (s *Signer) Issue(subject domain.Address, ttl time.Duration) (string, error) {
	if !subject.Valid() {
		return "", fmt.Errorf("%w: subject address %q", domain.ErrInvalidInput, string(subject))
	}

	now := time.Now()
	claims := &jwt.RegisteredClaims{
		Subject:   subject.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		Issuer:    issuer,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	return token.SignedString(s.secret)
}

// Verify parses and validates a token and returns its subject address.
// Tokens must carry an expiry.
func (s *Signer) Verify(tokenStr string) (domain.Address, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("invalid signing method")
		}
		return s.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		log.Debug().Err(err).Msg("token parse error")
		return "", fmt.Errorf("%w: invalid token", ErrUnauthenticated)
	}

	if !parsed.Valid {
		return "", fmt.Errorf("%w: invalid token", ErrUnauthenticated)
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return "", fmt.Errorf("%w: invalid claims", ErrUnauthenticated)
	}

	addr, err := domain.ParseAddress(claims.Subject)
	if err != nil {
		return "", fmt.Errorf("%w: invalid subject", ErrUnauthenticated)
	}

	return addr, nil
}
