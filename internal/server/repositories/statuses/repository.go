// Package statuses declares the persistence contract for per-user status
// snapshots.
package statuses

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

type Repository interface {
	// Save appends a snapshot and fills in its ID. An unknown user returns
	// common.ErrorNotFound.
	Save(ctx context.Context, status *models.UserStatus) (*models.UserStatus, error)

	// Latest returns the newest snapshot of userID, or common.ErrorNotFound.
	Latest(ctx context.Context, userID string) (*models.UserStatus, error)
}
