package auth

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/gophauth/internal/common"
)

// Algorithm is the only signing algorithm issued or accepted.
const Algorithm = "HS256"

// ValidationRules describe what a presented token must satisfy.
// Empty Issuer or Audience disables that check.
type ValidationRules struct {
	Issuer       string
	Audience     string
	Key          []byte
	Algorithm    string
	IgnoreExpiry bool
}

// Validate verifies token under rules at instant now and returns the embedded
// principal. Signature, algorithm, issuer and audience are always checked;
// IgnoreExpiry relaxes only the lifetime (exp, nbf) checks.
//
// Every failure wraps common.ErrInvalidToken.
func Validate(token string, rules ValidationRules, now time.Time) (*Principal, error) {
	if len(rules.Key) == 0 || rules.Algorithm == "" {
		return nil, fmt.Errorf("%w: incomplete validation rules", common.ErrInvalidToken)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{strings.ToUpper(rules.Algorithm)}),
		jwt.WithTimeFunc(func() time.Time { return now }),
	}
	if rules.IgnoreExpiry {
		opts = append(opts, jwt.WithoutClaimsValidation())
	} else {
		opts = append(opts, jwt.WithExpirationRequired())
		if rules.Issuer != "" {
			opts = append(opts, jwt.WithIssuer(rules.Issuer))
		}
		if rules.Audience != "" {
			opts = append(opts, jwt.WithAudience(rules.Audience))
		}
	}

	claims := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		alg, _ := t.Header["alg"].(string)
		if !strings.EqualFold(alg, rules.Algorithm) {
			return nil, fmt.Errorf("unexpected signing algorithm %q", alg)
		}
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %T", t.Method)
		}
		return rules.Key, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, common.ErrInvalidToken
	}

	if rules.IgnoreExpiry {
		if err := checkIssuerAudience(claims, rules); err != nil {
			return nil, fmt.Errorf("%w: %w", common.ErrInvalidToken, err)
		}
	}

	p := &Principal{
		Claims:   claims.Private,
		Issuer:   claims.Issuer,
		Audience: claims.Audience,
	}
	if claims.ExpiresAt != nil {
		p.ExpiresAt = claims.ExpiresAt.Time
	}
	return p, nil
}

func checkIssuerAudience(claims *tokenClaims, rules ValidationRules) error {
	if rules.Issuer != "" && claims.Issuer != rules.Issuer {
		return jwt.ErrTokenInvalidIssuer
	}
	if rules.Audience != "" && !slices.Contains(claims.Audience, rules.Audience) {
		return jwt.ErrTokenInvalidAudience
	}
	return nil
}

// IsExpired reports whether err came from an otherwise valid token whose
// lifetime has passed.
func IsExpired(err error) bool {
	return errors.Is(err, jwt.ErrTokenExpired)
}
