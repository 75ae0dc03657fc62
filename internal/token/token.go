// Package token issues and verifies the signed session tokens carried in the
// Authorization header.
package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrMissingToken indicates that no bearer value was supplied.
	ErrMissingToken = errors.New("token: missing")
	// ErrInvalidToken indicates a signature or structure failure.
	ErrInvalidToken = errors.New("token: invalid")
	// ErrExpiredToken indicates the validity window has elapsed.
	ErrExpiredToken = errors.New("token: expired")
	// ErrMissingSecret indicates the signing secret was never configured.
	ErrMissingSecret = errors.New("token: signing secret not configured")
)

// DefaultTTL is the validity window of an issued token.
const DefaultTTL = time.Hour

// Claims is the payload encoded in a session token.
type Claims struct {
	PrincipalID int64  `json:"uid"`
	Role        string `json:"role"`
	jwt.RegisteredClaims
}

// Signer signs and verifies HS256 session tokens with a process-wide secret.
type Signer struct {
	secret []byte
	ttl    time.Duration
	issuer string
	clock  func() time.Time
}

// Option customises a Signer.
type Option func(*Signer)

// WithIssuer sets the iss claim written and required by the signer.
func WithIssuer(issuer string) Option {
	return func(s *Signer) { s.issuer = issuer }
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(s *Signer) { s.clock = clock }
}

// NewSigner constructs a Signer. A non-positive ttl falls back to DefaultTTL.
func NewSigner(secret string, ttl time.Duration, opts ...Option) *Signer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &Signer{secret: []byte(secret), ttl: ttl}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL reports the validity window applied to issued tokens.
func (s *Signer) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token for the principal and returns it with its expiry.
func (s *Signer) Issue(principalID int64, role string) (string, time.Time, error) {
	if len(s.secret) == 0 {
		return "", time.Time{}, ErrMissingSecret
	}
	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := Claims{
		PrincipalID: principalID,
		Role:        role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(principalID, 10),
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("token: sign: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify checks signature and expiry of raw and returns its claims. It never
// touches an external store.
func (s *Signer) Verify(raw string) (*Claims, error) {
	if raw == "" {
		return nil, ErrMissingToken
	}
	if len(s.secret) == 0 {
		return nil, ErrMissingSecret
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.PrincipalID <= 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *Signer) now() time.Time {
	if s.clock != nil {
		return s.clock()
	}
	return time.Now().UTC()
}
