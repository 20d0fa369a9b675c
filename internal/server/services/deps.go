package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/identity"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// IdentityStore is the system of record the services read and mutate.
// *identity.Store implements it.
type IdentityStore interface {
	FindByName(ctx context.Context, userName string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, user *models.User, password string, provision identity.ProvisionFunc) (*models.User, error)
	CheckPassword(user *models.User, password string) bool
	GetRoles(ctx context.Context, userID string) ([]string, error)

	SaveRefreshToken(ctx context.Context, userID, token string, expiresAt time.Time) error
	RotateRefreshToken(ctx context.Context, userID, presented, next string, nextExpiresAt, now time.Time) error
	RevokeRefreshToken(ctx context.Context, userID string) error

	CreateRole(ctx context.Context, name string) (*models.Role, error)
	ListRoles(ctx context.Context) ([]models.Role, error)
	AddUserToRole(ctx context.Context, userID, roleName string) error
	RemoveUserFromRole(ctx context.Context, userID, roleName string) error
}

// StatusStore keeps per-user status snapshots. *identity.Store implements it.
type StatusStore interface {
	FindByName(ctx context.Context, userName string) (*models.User, error)
	SaveStatus(ctx context.Context, userID string, params []byte, at time.Time) (*models.UserStatus, error)
	LatestStatus(ctx context.Context, userID string) (*models.UserStatus, error)
}

// TokenSigner issues and checks access tokens. *auth.Signer implements it.
type TokenSigner interface {
	Issue(claims auth.ClaimSet) (*auth.AccessToken, error)
	Validate(token string) (*auth.Principal, error)
	ValidateIgnoringExpiry(token string) (*auth.Principal, error)
}

// BucketProvisioner creates the per-user bucket at registration.
// *blobs.S3Provisioner implements it.
type BucketProvisioner interface {
	EnsureBucket(ctx context.Context, name string) error
	RemoveBucket(ctx context.Context, name string) error
}

// UserView is the public projection of a user.
type UserView struct {
	ID        string
	UserName  string
	Email     string
	CreatedAt time.Time
	Roles     []string
}

func newUserView(u *models.User, roles []string) UserView {
	return UserView{ID: u.ID, UserName: u.UserName, Email: u.Email, CreatedAt: u.CreatedAt, Roles: roles}
}
