// Package common defines shared constants and sentinel errors used across
// the gophauth server and its admin tooling. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrInvalidInput   = errors.New("invalid input")

	// Auth errors. These are the only values allowed to reach a client.
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrDuplicateIdentity  = errors.New("identity already exists")
	ErrInvalidToken       = errors.New("invalid access token or refresh token")

	// Refresh-token lifecycle errors. They never cross the transport boundary
	// and are folded into ErrInvalidToken by the services.
	ErrRefreshTokenMismatch = errors.New("refresh token mismatch")
	ErrRefreshTokenExpired  = errors.New("refresh token expired")

	// Startup errors.
	ErrMissingSecret = errors.New("signing secret is not configured")
)
