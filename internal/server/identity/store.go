// Package identity is the system of record for users, roles and the
// refresh-token slot. It owns password hashing; callers never see hashes.
package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
)

// ProvisionFunc runs inside the user-creation transaction; an error rolls
// the new user back.
type ProvisionFunc func(ctx context.Context, user *models.User) error

// Store implements the identity operations over PostgreSQL repositories.
type Store struct {
	db        *sql.DB
	repos     repomanager.RepositoryManager
	cost      int
	dummyHash []byte
}

func NewStore(db *sql.DB, repos repomanager.RepositoryManager) *Store {
	return (&Store{db: db, repos: repos}).WithBcryptCost(bcrypt.DefaultCost)
}

// WithBcryptCost overrides the hashing cost (tests use bcrypt.MinCost).
// It must be called before the store is shared.
func (s *Store) WithBcryptCost(cost int) *Store {
	s.cost = cost
	s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("gophauth-unknown-user"), cost)
	return s
}

func (s *Store) FindByName(ctx context.Context, userName string) (*models.User, error) {
	return s.repos.Users(s.db).GetByUserName(ctx, userName)
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.repos.Users(s.db).GetByEmail(ctx, email)
}

func (s *Store) FindByID(ctx context.Context, id string) (*models.User, error) {
	return s.repos.Users(s.db).GetByID(ctx, id)
}

// Create hashes password and inserts user. When provision is not nil it runs
// in the same transaction after the insert.
func (s *Store) Create(ctx context.Context, user *models.User, password string, provision ProvisionFunc) (*models.User, error) {
	hash, err := s.hash(password)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = hash

	var created *models.User
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		u, err := s.repos.Users(tx).Create(ctx, user)
		if err != nil {
			return err
		}
		if provision != nil {
			if err := provision(ctx, u); err != nil {
				return fmt.Errorf("provision user: %w", err)
			}
		}
		created = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// CheckPassword reports whether password matches user's hash. A nil user is
// compared against a throwaway hash so that unknown names cost the same.
func (s *Store) CheckPassword(user *models.User, password string) bool {
	if user == nil {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return false
	}
	return bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)) == nil
}

func (s *Store) GetRoles(ctx context.Context, userID string) ([]string, error) {
	return s.repos.Roles(s.db).NamesForUser(ctx, userID)
}

func (s *Store) SaveRefreshToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	return s.repos.RefreshTokens(s.db).Save(ctx, userID, token, expiresAt)
}

func (s *Store) RotateRefreshToken(ctx context.Context, userID, presented, next string, nextExpiresAt, now time.Time) error {
	return s.repos.RefreshTokens(s.db).Rotate(ctx, userID, presented, next, nextExpiresAt, now)
}

func (s *Store) RevokeRefreshToken(ctx context.Context, userID string) error {
	return s.repos.RefreshTokens(s.db).Revoke(ctx, userID)
}

func (s *Store) CreateRole(ctx context.Context, name string) (*models.Role, error) {
	return s.repos.Roles(s.db).Create(ctx, &models.Role{Name: name})
}

func (s *Store) ListRoles(ctx context.Context) ([]models.Role, error) {
	return s.repos.Roles(s.db).List(ctx)
}

// AddUserToRole is idempotent. An unknown role returns common.ErrorNotFound.
func (s *Store) AddUserToRole(ctx context.Context, userID, roleName string) error {
	repo := s.repos.Roles(s.db)
	role, err := repo.GetByName(ctx, roleName)
	if err != nil {
		return err
	}
	return repo.AddUser(ctx, userID, role.ID)
}

func (s *Store) RemoveUserFromRole(ctx context.Context, userID, roleName string) error {
	repo := s.repos.Roles(s.db)
	role, err := repo.GetByName(ctx, roleName)
	if err != nil {
		return err
	}
	return repo.RemoveUser(ctx, userID, role.ID)
}

// SaveStatus appends a status snapshot for userID taken at at.
func (s *Store) SaveStatus(ctx context.Context, userID string, params []byte, at time.Time) (*models.UserStatus, error) {
	return s.repos.Statuses(s.db).Save(ctx, &models.UserStatus{UserID: userID, ActualAt: at, Params: params})
}

func (s *Store) LatestStatus(ctx context.Context, userID string) (*models.UserStatus, error) {
	return s.repos.Statuses(s.db).Latest(ctx, userID)
}

func (s *Store) hash(password string) ([]byte, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, fmt.Errorf("%w: password longer than 72 bytes", common.ErrInvalidInput)
		}
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return h, nil
}
