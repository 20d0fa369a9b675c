// Package auth issues and validates HS256 access tokens and mints opaque
// refresh tokens.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/gophauth/internal/common"
)

// SignerConfig is the immutable signing configuration.
type SignerConfig struct {
	Secret       []byte
	Issuer       string
	Audience     string
	ValidityDays int
}

// Signer creates signed access tokens and validates presented ones.
type Signer struct {
	cfg SignerConfig
	now func() time.Time
}

// NewSigner returns a Signer. An empty secret is rejected with
// common.ErrMissingSecret.
func NewSigner(cfg SignerConfig) (*Signer, error) {
	if len(cfg.Secret) == 0 {
		return nil, common.ErrMissingSecret
	}
	if cfg.ValidityDays <= 0 {
		return nil, errors.New("token validity must be a positive number of days")
	}
	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)
	cfg.Secret = secret
	return &Signer{cfg: cfg, now: time.Now}, nil
}

// WithClock replaces the signer's time source.
func (s *Signer) WithClock(now func() time.Time) *Signer {
	s.now = now
	return s
}

// Validity is the lifetime of an issued access token.
func (s *Signer) Validity() time.Duration {
	return time.Duration(s.cfg.ValidityDays) * 24 * time.Hour
}

// Issue signs claims into a new access token that expires after Validity.
// Registered claims present in claims are ignored and regenerated.
func (s *Signer) Issue(claims ClaimSet) (*AccessToken, error) {
	now := s.now()
	exp := now.Add(s.Validity())

	tc := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Audience:  jwt.ClaimStrings{s.cfg.Audience},
			ExpiresAt: jwt.NewNumericDate(exp),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
		Private: claims.withoutRegistered(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, tc).SignedString(s.cfg.Secret)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	return &AccessToken{Token: signed, ExpiresAt: exp.Truncate(time.Second)}, nil
}

// Rules returns the bearer validation rules used for normal authentication.
func (s *Signer) Rules() ValidationRules {
	return ValidationRules{
		Issuer:    s.cfg.Issuer,
		Audience:  s.cfg.Audience,
		Key:       s.cfg.Secret,
		Algorithm: Algorithm,
	}
}

// Validate checks a bearer token, expiry included.
func (s *Signer) Validate(token string) (*Principal, error) {
	return Validate(token, s.Rules(), s.now())
}

// ValidateIgnoringExpiry checks token with the bearer rules except that an
// expired (or not yet valid) token is still accepted.
func (s *Signer) ValidateIgnoringExpiry(token string) (*Principal, error) {
	rules := s.Rules()
	rules.IgnoreExpiry = true
	return Validate(token, rules, s.now())
}
