// Package sessions keeps server-tracked cookie sessions in Redis and issues
// the cookies that carry them.
package sessions

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/server/auth"
)

// Session is the server-side state behind a session cookie.
type Session struct {
	ID        string        `json:"id"`
	UserID    string        `json:"user_id"`
	Username  string        `json:"username"`
	Claims    auth.ClaimSet `json:"claims"`
	CreatedAt time.Time     `json:"created_at"`
	ExpiresAt time.Time     `json:"expires_at"`
}

// Store persists sessions. Get returns common.ErrorNotFound for unknown or
// expired ids; Delete of an unknown id is not an error.
type Store interface {
	Create(ctx context.Context, claims auth.ClaimSet, lifetime time.Duration) (*Session, error)
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
}
