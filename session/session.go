// Package session mints and verifies the gateway's own session tokens: HS256
// JWTs asserting the identity resolved from the OIDC provider.
package session

import (
	"errors"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/go-oidc-gateway/internal/errors"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// DefaultTTL is the lifetime of a session token.
const DefaultTTL = 24 * time.Hour

// Identity is the resolved user profile folded into a session token.
type Identity struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
}

// Claims are the claims carried by a session token.
type Claims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwtlib.RegisteredClaims
}

// Identity returns the user profile asserted by the claims
func (c *Claims) Identity() Identity {
	return Identity{Subject: c.Subject, Email: c.Email, Name: c.Name}
}

// Expired reports whether the claims are expired at t. Claims without an
// expiry are treated as expired.
func (c *Claims) Expired(t time.Time) bool {
	if c.ExpiresAt == nil {
		return true
	}
	return !t.Before(c.ExpiresAt.Time)
}

// Signer issues and verifies session tokens under a single shared secret.
type Signer struct {
	secret []byte
	ttl    time.Duration
	parser *jwtlib.Parser
}

// NewSigner creates a Signer. A zero ttl selects DefaultTTL.
func NewSigner(secret string, ttl time.Duration) (*Signer, error) {
	if secret == "" {
		return nil, errors.New("session: signing secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Signer{
		secret: []byte(secret),
		ttl:    ttl,
		parser: jwtlib.NewParser(
			jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
			jwtlib.WithExpirationRequired(),
			jwtlib.WithTimeFunc(func() time.Time { return NowTimeFunc() }),
		),
	}, nil
}

// TTL returns the lifetime given to minted tokens
func (s *Signer) TTL() time.Duration {
	return s.ttl
}

// Mint creates a new signed session token for the identity. Every call
// produces a distinct token (unique jti).
func (s *Signer) Mint(id Identity) (string, *Claims, error) {
	now := NowTimeFunc().Truncate(time.Second)
	claims := &Claims{
		Email: id.Email,
		Name:  id.Name,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   id.Subject,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(s.ttl)),
			ID:        uuid.New().String(),
		},
	}

	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, claims, nil
}

// Verify checks the signature and expiry of a raw session token. Every
// failure matches ErrInvalidToken; expired tokens also match ErrTokenExpired.
func (s *Signer) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := s.parser.ParseWithClaims(raw, claims, s.verificationKey)
	if err != nil {
		if errors.Is(err, jwtlib.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w: %w", apperrors.ErrInvalidToken, apperrors.ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %w", apperrors.ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, apperrors.ErrInvalidToken
	}
	return claims, nil
}

func (s *Signer) verificationKey(token *jwtlib.Token) (any, error) {
	if _, ok := token.Method.(*jwtlib.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return s.secret, nil
}

// Decode reads the claims of a session token without verifying it. Only use
// the result for display, logging or a local expiry check.
func Decode(raw string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwtlib.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrInvalidToken, err)
	}
	return claims, nil
}
