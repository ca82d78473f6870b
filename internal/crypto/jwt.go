package crypto

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	DefaultIssuer   = "quillpost"
	DefaultAudience = "quillpost-api"
)

var (
	ErrTokenMalformed        = errors.New("token is malformed")
	ErrTokenInvalidSignature = errors.New("token signature is invalid")
	ErrTokenExpired          = errors.New("token has expired")
)

// Claims represents the JWT claims for Quillpost authentication.
// The user id travels in the standard sub claim.
type Claims struct {
	jwt.RegisteredClaims
}

// IssuedToken is a signed token together with its absolute expiry.
type IssuedToken struct {
	Token     string
	ExpiresAt time.Time
}

// TokenIssuer signs and verifies HS256 bearer tokens with a process-wide secret.
// It is safe for concurrent use.
type TokenIssuer struct {
	secret   []byte
	ttl      time.Duration
	issuer   string
	audience string
	now      func() time.Time
}

// TokenOption customises a TokenIssuer.
type TokenOption func(*TokenIssuer)

// WithIssuer overrides the iss claim written and required.
func WithIssuer(iss string) TokenOption {
	return func(t *TokenIssuer) { t.issuer = iss }
}

// WithAudience overrides the aud claim written and required.
func WithAudience(aud string) TokenOption {
	return func(t *TokenIssuer) { t.audience = aud }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) TokenOption {
	return func(t *TokenIssuer) { t.now = now }
}

// NewTokenIssuer creates a TokenIssuer. The ttl is fixed for every token it issues.
func NewTokenIssuer(secret []byte, ttl time.Duration, opts ...TokenOption) *TokenIssuer {
	t := &TokenIssuer{
		secret:   append([]byte(nil), secret...),
		ttl:      ttl,
		issuer:   DefaultIssuer,
		audience: DefaultAudience,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// TTL returns the lifetime of issued tokens.
func (t *TokenIssuer) TTL() time.Duration {
	return t.ttl
}

// Issue creates a signed token for the given user.
func (t *TokenIssuer) Issue(userID string) (IssuedToken, error) {
	if strings.TrimSpace(userID) == "" {
		return IssuedToken{}, errors.New("user id is required")
	}

	now := t.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   userID,
			Audience:  jwt.ClaimStrings{t.audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return IssuedToken{}, err
	}

	return IssuedToken{Token: signed, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Verify checks the token signature, then its claims, and returns the user id.
// Errors are ErrTokenMalformed, ErrTokenInvalidSignature or ErrTokenExpired.
func (t *TokenIssuer) Verify(tokenString string) (string, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return "", ErrTokenMalformed
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithStrictDecoding(),
		jwt.WithIssuer(t.issuer),
		jwt.WithAudience(t.audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return "", classifyTokenError(tokenString, err)
	}

	if strings.TrimSpace(claims.Subject) == "" {
		return "", ErrTokenMalformed
	}

	return claims.Subject, nil
}

// classifyTokenError maps golang-jwt errors onto the three verification failures.
// The parser verifies the signature before it looks at claims, so a tampered token is never reported as expired.
func classifyTokenError(tokenString string, err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrTokenInvalidSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenMalformed):
		// Header and claims decode but the signature segment does not.
		parts := strings.Split(tokenString, ".")
		if len(parts) != 3 {
			return ErrTokenMalformed
		}
		if _, _, uerr := jwt.NewParser().ParseUnverified(parts[0]+"."+parts[1]+".", &Claims{}); uerr == nil {
			return ErrTokenInvalidSignature
		}
		return ErrTokenMalformed
	default:
		return ErrTokenMalformed
	}
}
