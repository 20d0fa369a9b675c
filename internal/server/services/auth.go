// Package services contains server-side business logic. AuthService runs the
// login, refresh, logout and registration flows; RoleService manages roles.
package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/sessions"
)

// LoginResult is everything a successful login hands to the transport. The
// refresh token travels only in a cookie.
type LoginResult struct {
	AccessToken           *auth.AccessToken
	RefreshToken          string
	RefreshTokenExpiresAt time.Time
	Session               *sessions.Session
	User                  UserView
	// IssuedAt is the service clock reading the expiries were computed from.
	IssuedAt time.Time
}

// RefreshResult is a rotated token pair plus the user's current roles.
type RefreshResult struct {
	AccessToken           *auth.AccessToken
	RefreshToken          string
	RefreshTokenExpiresAt time.Time
	User                  UserView
	IssuedAt              time.Time
}

// Caller is an authenticated principal behind a request.
type Caller struct {
	UserID    string
	Username  string
	SessionID string
}

// AuthDeps collects AuthService collaborators. Buckets may be nil, which
// disables bucket provisioning.
type AuthDeps struct {
	Store           IdentityStore
	Signer          TokenSigner
	Sessions        sessions.Store
	Buckets         BucketProvisioner
	SessionLifetime time.Duration
	Logger          logging.Logger
	Now             func() time.Time
}

type AuthService struct {
	store           IdentityStore
	signer          TokenSigner
	sessions        sessions.Store
	buckets         BucketProvisioner
	sessionLifetime time.Duration
	log             logging.Logger
	now             func() time.Time
}

func NewAuthService(d AuthDeps) *AuthService {
	s := &AuthService{
		store:           d.Store,
		signer:          d.Signer,
		sessions:        d.Sessions,
		buckets:         d.Buckets,
		sessionLifetime: d.SessionLifetime,
		log:             d.Logger,
		now:             d.Now,
	}
	if s.log == nil {
		s.log = logging.Nop()
	}
	s.log = s.log.With("module", "auth")
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Login verifies credentials and establishes a cookie session, an access
// token and a persisted refresh token. Unknown users and wrong passwords
// both yield common.ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	user, err := s.store.FindByName(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.store.CheckPassword(nil, password)
			s.log.Info(ctx, "login rejected")
			return nil, common.ErrInvalidCredentials
		}
		s.log.Error(ctx, "login: user lookup failed", "error", err)
		return nil, common.ErrorInternal
	}
	if !s.store.CheckPassword(user, password) {
		s.log.Info(ctx, "login rejected", "user_id", user.ID)
		return nil, common.ErrInvalidCredentials
	}

	claims := auth.NewClaimSet(user.ID, user.UserName)

	access, err := s.signer.Issue(claims)
	if err != nil {
		s.log.Error(ctx, "login: issue access token", "error", err)
		return nil, common.ErrorInternal
	}

	refresh, err := auth.GenerateRefreshToken()
	if err != nil {
		s.log.Error(ctx, "login: generate refresh token", "error", err)
		return nil, common.ErrorInternal
	}
	now := s.now()
	refreshExp := now.Add(auth.RefreshTokenValidity)
	if err := s.store.SaveRefreshToken(ctx, user.ID, refresh, refreshExp); err != nil {
		s.log.Error(ctx, "login: persist refresh token", "error", err, "user_id", user.ID)
		return nil, common.ErrorInternal
	}

	sess, err := s.sessions.Create(ctx, claims, s.sessionLifetime)
	if err != nil {
		s.log.Error(ctx, "login: create session", "error", err, "user_id", user.ID)
		return nil, common.ErrorInternal
	}

	s.log.Info(ctx, "login succeeded", "user_id", user.ID)
	return &LoginResult{
		AccessToken:           access,
		RefreshToken:          refresh,
		RefreshTokenExpiresAt: refreshExp,
		Session:               sess,
		User:                  newUserView(user, nil),
		IssuedAt:              now,
	}, nil
}

// Refresh exchanges a possibly expired access token and the current refresh
// token for a new pair. The persisted refresh token is swapped atomically, so
// of several concurrent calls presenting the same token at most one wins.
// Every rejection is common.ErrInvalidToken.
func (s *AuthService) Refresh(ctx context.Context, accessToken, refreshToken string) (*RefreshResult, error) {
	principal, err := s.signer.ValidateIgnoringExpiry(accessToken)
	if err != nil {
		s.log.Warn(ctx, "refresh rejected: access token", "error", err)
		return nil, common.ErrInvalidToken
	}

	username := principal.Username()
	if username == "" || refreshToken == "" {
		s.log.Warn(ctx, "refresh rejected: missing username claim or refresh token")
		return nil, common.ErrInvalidToken
	}

	user, err := s.store.FindByName(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.log.Warn(ctx, "refresh rejected: unknown user")
			return nil, common.ErrInvalidToken
		}
		s.log.Error(ctx, "refresh: user lookup failed", "error", err)
		return nil, common.ErrorInternal
	}

	now := s.now()
	if reason := checkRefreshSlot(user, principal, refreshToken, now); reason != nil {
		s.log.Warn(ctx, "refresh rejected", "reason", reason, "user_id", user.ID)
		return nil, common.ErrInvalidToken
	}

	roles, err := s.store.GetRoles(ctx, user.ID)
	if err != nil {
		s.log.Error(ctx, "refresh: load roles", "error", err, "user_id", user.ID)
		return nil, common.ErrorInternal
	}

	access, err := s.signer.Issue(principal.Claims)
	if err != nil {
		s.log.Error(ctx, "refresh: issue access token", "error", err)
		return nil, common.ErrorInternal
	}
	next, err := auth.GenerateRefreshToken()
	if err != nil {
		s.log.Error(ctx, "refresh: generate refresh token", "error", err)
		return nil, common.ErrorInternal
	}
	nextExp := now.Add(auth.RefreshTokenValidity)

	if err := s.store.RotateRefreshToken(ctx, user.ID, refreshToken, next, nextExp, now); err != nil {
		if errors.Is(err, common.ErrRefreshTokenMismatch) {
			s.log.Warn(ctx, "refresh rejected: lost rotation", "user_id", user.ID)
			return nil, common.ErrInvalidToken
		}
		s.log.Error(ctx, "refresh: rotate refresh token", "error", err, "user_id", user.ID)
		return nil, common.ErrorInternal
	}

	s.log.Info(ctx, "refresh succeeded", "user_id", user.ID)
	return &RefreshResult{
		AccessToken:           access,
		RefreshToken:          next,
		RefreshTokenExpiresAt: nextExp,
		User:                  newUserView(user, roles),
		IssuedAt:              now,
	}, nil
}

func checkRefreshSlot(user *models.User, p *auth.Principal, presented string, now time.Time) error {
	if id := p.UserID(); id != "" && id != user.ID {
		return errors.New("subject mismatch")
	}
	if user.RefreshToken == nil || user.RefreshTokenExpiresAt == nil {
		return common.ErrRefreshTokenMismatch
	}
	if subtle.ConstantTimeCompare([]byte(*user.RefreshToken), []byte(presented)) != 1 {
		return common.ErrRefreshTokenMismatch
	}
	if !user.RefreshTokenExpiresAt.After(now) {
		return common.ErrRefreshTokenExpired
	}
	return nil
}

// Logout ends the cookie session and revokes the user's refresh token.
func (s *AuthService) Logout(ctx context.Context, c *Caller) error {
	if c == nil {
		return common.ErrorUnauthorized
	}
	if c.SessionID != "" {
		if err := s.sessions.Delete(ctx, c.SessionID); err != nil {
			s.log.Error(ctx, "logout: delete session", "error", err)
			return common.ErrorInternal
		}
	}
	if err := s.store.RevokeRefreshToken(ctx, c.UserID); err != nil {
		s.log.Error(ctx, "logout: revoke refresh token", "error", err, "user_id", c.UserID)
		return common.ErrorInternal
	}
	s.log.Info(ctx, "logout", "user_id", c.UserID)
	return nil
}

// Authenticate resolves the caller from a session id, falling back to a
// bearer token validated with expiry enforced.
func (s *AuthService) Authenticate(ctx context.Context, sessionID, bearer string) (*Caller, error) {
	if sessionID != "" {
		sess, err := s.sessions.Get(ctx, sessionID)
		switch {
		case err == nil:
			return &Caller{UserID: sess.UserID, Username: sess.Username, SessionID: sess.ID}, nil
		case !errors.Is(err, common.ErrorNotFound):
			s.log.Error(ctx, "authenticate: load session", "error", err)
			return nil, common.ErrorInternal
		}
	}
	if bearer != "" {
		return s.authenticateBearer(ctx, bearer)
	}
	return nil, common.ErrorUnauthorized
}

// authenticateBearer admits a bearer token only while its subject still
// exists under the same name.
func (s *AuthService) authenticateBearer(ctx context.Context, bearer string) (*Caller, error) {
	p, err := s.signer.Validate(bearer)
	if err != nil {
		if auth.IsExpired(err) {
			s.log.Debug(ctx, "authenticate: bearer expired")
		} else {
			s.log.Warn(ctx, "authenticate: bearer rejected", "error", err)
		}
		return nil, common.ErrorUnauthorized
	}
	if p.UserID() == "" {
		return nil, common.ErrorUnauthorized
	}

	user, err := s.store.FindByID(ctx, p.UserID())
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.log.Warn(ctx, "authenticate: bearer subject unknown", "user_id", p.UserID())
			return nil, common.ErrorUnauthorized
		}
		s.log.Error(ctx, "authenticate: user lookup failed", "error", err)
		return nil, common.ErrorInternal
	}
	if name := p.Username(); name != "" && name != user.UserName {
		s.log.Warn(ctx, "authenticate: bearer name mismatch", "user_id", user.ID)
		return nil, common.ErrorUnauthorized
	}
	return &Caller{UserID: user.ID, Username: user.UserName}, nil
}

// Register creates a user and provisions the user's bucket. Provisioning runs
// inside the user-creation transaction; a failure rolls the user back.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || password == "" {
		return nil, common.ErrInvalidInput
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, common.ErrInvalidInput
	}

	for _, lookup := range []func() (*models.User, error){
		func() (*models.User, error) { return s.store.FindByName(ctx, username) },
		func() (*models.User, error) { return s.store.FindByEmail(ctx, email) },
	} {
		_, err := lookup()
		if err == nil {
			return nil, common.ErrDuplicateIdentity
		}
		if !errors.Is(err, common.ErrorNotFound) {
			s.log.Error(ctx, "register: uniqueness lookup", "error", err)
			return nil, common.ErrorInternal
		}
	}

	var provisioned string
	provision := func(ctx context.Context, u *models.User) error {
		if s.buckets == nil {
			return nil
		}
		if err := s.buckets.EnsureBucket(ctx, u.ID); err != nil {
			return err
		}
		provisioned = u.ID
		return nil
	}

	user, err := s.store.Create(ctx, &models.User{UserName: username, Email: email}, password, provision)
	if err != nil {
		if provisioned != "" {
			if rerr := s.buckets.RemoveBucket(ctx, provisioned); rerr != nil {
				s.log.Error(ctx, "register: remove orphaned bucket", "error", rerr, "bucket", provisioned)
			}
		}
		switch {
		case errors.Is(err, common.ErrorAlreadyExists):
			return nil, common.ErrDuplicateIdentity
		case errors.Is(err, common.ErrInvalidInput):
			return nil, common.ErrInvalidInput
		}
		s.log.Error(ctx, "register: create user", "error", err)
		return nil, common.ErrorInternal
	}

	s.log.Info(ctx, "user registered", "user_id", user.ID)
	return user, nil
}
