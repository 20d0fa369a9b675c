package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// StatusService records client-reported session state as timestamped
// snapshots and serves the newest one.
type StatusService struct {
	store StatusStore
	log   logging.Logger
	now   func() time.Time
}

func NewStatusService(store StatusStore, log logging.Logger, now func() time.Time) *StatusService {
	if log == nil {
		log = logging.Nop()
	}
	if now == nil {
		now = time.Now
	}
	return &StatusService{store: store, log: log.With("module", "statuses"), now: now}
}

// SaveStatus stores params as the user's status at the current time. A nil
// map is common.ErrInvalidInput.
func (s *StatusService) SaveStatus(ctx context.Context, username string, params map[string]any) (*models.UserStatus, error) {
	if params == nil {
		return nil, common.ErrInvalidInput
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, common.ErrInvalidInput
	}

	user, err := s.findUser(ctx, username)
	if err != nil {
		return nil, err
	}

	st, err := s.store.SaveStatus(ctx, user.ID, raw, s.now().UTC())
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		s.log.Error(ctx, "save status", "error", err, "user_id", user.ID)
		return nil, common.ErrorInternal
	}
	return st, nil
}

// LatestStatus returns the newest snapshot, or common.ErrorNotFound when the
// user is unknown or has none.
func (s *StatusService) LatestStatus(ctx context.Context, username string) (*models.UserStatus, error) {
	user, err := s.findUser(ctx, username)
	if err != nil {
		return nil, err
	}

	st, err := s.store.LatestStatus(ctx, user.ID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		s.log.Error(ctx, "load latest status", "error", err, "user_id", user.ID)
		return nil, common.ErrorInternal
	}
	return st, nil
}

func (s *StatusService) findUser(ctx context.Context, username string) (*models.User, error) {
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
