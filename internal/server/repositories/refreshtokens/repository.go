// Package refreshtokens declares the persistence contract for the single
// refresh-token slot kept on every user row.
package refreshtokens

import (
	"context"
	"time"
)

// Repository reads and mutates a user's refresh-token slot.
type Repository interface {
	// Save overwrites the slot unconditionally. Returns common.ErrorNotFound
	// for an unknown user.
	Save(ctx context.Context, userID string, token string, expiresAt time.Time) error

	// Rotate replaces the slot with next only while it still holds presented
	// and has not expired at now. A lost compare-and-swap (mismatch, expiry or
	// a concurrent rotation) returns common.ErrRefreshTokenMismatch.
	Rotate(ctx context.Context, userID, presented, next string, nextExpiresAt, now time.Time) error

	// Revoke clears the slot. Clearing an empty slot is not an error.
	Revoke(ctx context.Context, userID string) error
}
