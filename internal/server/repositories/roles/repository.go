// Package roles declares the persistence contract for roles and the
// user-role association.
package roles

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

type Repository interface {
	// Create inserts a role; a taken name returns common.ErrorAlreadyExists.
	Create(ctx context.Context, role *models.Role) (*models.Role, error)
	List(ctx context.Context) ([]models.Role, error)
	GetByName(ctx context.Context, name string) (*models.Role, error)

	// NamesForUser returns the role names of userID, sorted.
	NamesForUser(ctx context.Context, userID string) ([]string, error)
	AddUser(ctx context.Context, userID, roleID string) error
	// RemoveUser returns common.ErrorNotFound when the user is not in the role.
	RemoveUser(ctx context.Context, userID, roleID string) error
}
