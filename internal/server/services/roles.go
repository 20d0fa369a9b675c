package services

import (
	"context"
	"errors"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// RoleService manages roles and role membership.
type RoleService struct {
	store IdentityStore
	log   logging.Logger
}

func NewRoleService(store IdentityStore, log logging.Logger) *RoleService {
	if log == nil {
		log = logging.Nop()
	}
	return &RoleService{store: store, log: log.With("module", "roles")}
}

// CreateRole adds a role. A taken name is common.ErrDuplicateIdentity.
func (s *RoleService) CreateRole(ctx context.Context, name string) (*models.Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, common.ErrInvalidInput
	}
	role, err := s.store.CreateRole(ctx, name)
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, common.ErrDuplicateIdentity
		}
		s.log.Error(ctx, "create role", "error", err)
		return nil, common.ErrorInternal
	}
	s.log.Info(ctx, "role created", "role", role.Name)
	return role, nil
}

func (s *RoleService) ListRoles(ctx context.Context) ([]models.Role, error) {
	roles, err := s.store.ListRoles(ctx)
	if err != nil {
		s.log.Error(ctx, "list roles", "error", err)
		return nil, common.ErrorInternal
	}
	return roles, nil
}

// GetUser returns the public view of username including role names.
func (s *RoleService) GetUser(ctx context.Context, username string) (*UserView, error) {
	user, err := s.findUser(ctx, username)
	if err != nil {
		return nil, err
	}
	roles, err := s.store.GetRoles(ctx, user.ID)
	if err != nil {
		s.log.Error(ctx, "load roles", "error", err, "user_id", user.ID)
		return nil, common.ErrorInternal
	}
	v := newUserView(user, roles)
	return &v, nil
}

// AddUserToRole is idempotent; unknown user or role is common.ErrorNotFound.
func (s *RoleService) AddUserToRole(ctx context.Context, username, role string) error {
	user, err := s.findUser(ctx, username)
	if err != nil {
		return err
	}
	return s.mapMembershipErr(ctx, s.store.AddUserToRole(ctx, user.ID, role))
}

// RemoveUserFromRole returns common.ErrorNotFound when the user, the role or
// the membership does not exist.
func (s *RoleService) RemoveUserFromRole(ctx context.Context, username, role string) error {
	user, err := s.findUser(ctx, username)
	if err != nil {
		return err
	}
	return s.mapMembershipErr(ctx, s.store.RemoveUserFromRole(ctx, user.ID, role))
}

func (s *RoleService) findUser(ctx context.Context, username string) (*models.User, error) {
	user, err := s.store.FindByName(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		s.log.Error(ctx, "user lookup", "error", err)
		return nil, common.ErrorInternal
	}
	return user, nil
}

func (s *RoleService) mapMembershipErr(ctx context.Context, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, common.ErrorNotFound):
		return common.ErrorNotFound
	}
	s.log.Error(ctx, "update role membership", "error", err)
	return common.ErrorInternal
}
