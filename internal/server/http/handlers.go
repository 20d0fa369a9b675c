// Package http exposes the authentication API over gin.
package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/dmitrijs2005/gophauth/internal/server/sessions"
)

// AuthAPI is the part of *services.AuthService the handlers use.
type AuthAPI interface {
	Login(ctx context.Context, username, password string) (*services.LoginResult, error)
	Refresh(ctx context.Context, accessToken, refreshToken string) (*services.RefreshResult, error)
	Logout(ctx context.Context, c *services.Caller) error
	Authenticate(ctx context.Context, sessionID, bearer string) (*services.Caller, error)
	Register(ctx context.Context, username, email, password string) (*models.User, error)
}

// RoleAPI is the part of *services.RoleService the handlers use.
type RoleAPI interface {
	CreateRole(ctx context.Context, name string) (*models.Role, error)
	ListRoles(ctx context.Context) ([]models.Role, error)
	GetUser(ctx context.Context, username string) (*services.UserView, error)
	AddUserToRole(ctx context.Context, username, role string) error
	RemoveUserFromRole(ctx context.Context, username, role string) error
}

// StatusAPI is the part of *services.StatusService the handlers use.
type StatusAPI interface {
	SaveStatus(ctx context.Context, username string, params map[string]any) (*models.UserStatus, error)
	LatestStatus(ctx context.Context, username string) (*models.UserStatus, error)
}

// HealthFunc reports whether a dependency is reachable.
type HealthFunc func(ctx context.Context) error

type Handler struct {
	auth     AuthAPI
	roles    RoleAPI
	statuses StatusAPI
	cookies  sessions.CookieOptions
	health   []HealthFunc
	log      logging.Logger
}

func NewHandler(a AuthAPI, r RoleAPI, st StatusAPI, cookies sessions.CookieOptions, log logging.Logger, health ...HealthFunc) *Handler {
	if log == nil {
		log = logging.Nop()
	}
	return &Handler{auth: a, roles: r, statuses: st, cookies: cookies, health: health, log: log.With("module", "http")}
}

type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	AccessToken  string `json:"accessToken" binding:"required"`
	RefreshToken string `json:"refreshToken"`
}

type roleRequest struct {
	Name string `json:"name" binding:"required"`
}

type userRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

type userDTO struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	Roles     []string   `json:"roles,omitempty"`
}

type loginResponse struct {
	AccessToken string  `json:"accessToken"`
	User        userDTO `json:"user"`
}

type refreshResponse struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
	User         userDTO   `json:"user"`
}

type roleDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type statusDTO struct {
	ID       int64           `json:"id"`
	UserID   string          `json:"userId"`
	ActualAt time.Time       `json:"actualAt"`
	Params   json.RawMessage `json:"params,omitempty"`
}

// Register creates an account. 201 {id}; 409 on a taken username or email.
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c)
		return
	}

	user, err := h.auth.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": user.ID})
}

// Login sets the session and refresh-token cookies and returns the access
// token with a public user projection.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c)
		return
	}

	res, err := h.auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	sessions.SetSessionCookie(c.Writer, res.Session, res.IssuedAt, h.cookies)
	sessions.SetRefreshCookie(c.Writer, res.RefreshToken, res.RefreshTokenExpiresAt, res.IssuedAt, h.cookies)

	created := res.User.CreatedAt
	c.JSON(http.StatusOK, loginResponse{
		AccessToken: res.AccessToken.Token,
		User: userDTO{
			ID:        res.User.ID,
			Username:  res.User.UserName,
			Email:     res.User.Email,
			CreatedAt: &created,
		},
	})
}

// Refresh rotates the token pair. The refresh token is read from the body,
// falling back to the refresh cookie.
func (h *Handler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, common.ErrInvalidToken)
		return
	}
	if req.RefreshToken == "" {
		req.RefreshToken, _ = c.Cookie(common.RefreshTokenCookieName)
	}

	res, err := h.auth.Refresh(c.Request.Context(), req.AccessToken, req.RefreshToken)
	if err != nil {
		respondError(c, err)
		return
	}

	sessions.SetRefreshCookie(c.Writer, res.RefreshToken, res.RefreshTokenExpiresAt, res.IssuedAt, h.cookies)

	roles := res.User.Roles
	if roles == nil {
		roles = []string{}
	}
	c.JSON(http.StatusOK, refreshResponse{
		AccessToken:  res.AccessToken.Token,
		RefreshToken: res.RefreshToken,
		ExpiresAt:    res.AccessToken.ExpiresAt,
		User: userDTO{
			ID:       res.User.ID,
			Username: res.User.UserName,
			Email:    res.User.Email,
			Roles:    roles,
		},
	})
}

// Logout ends the caller's session, revokes the refresh token and clears
// both cookies.
func (h *Handler) Logout(c *gin.Context) {
	if err := h.auth.Logout(c.Request.Context(), callerFrom(c)); err != nil {
		respondError(c, err)
		return
	}
	sessions.ClearSessionCookie(c.Writer, h.cookies)
	sessions.ClearRefreshCookie(c.Writer, h.cookies)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (h *Handler) CreateRole(c *gin.Context) {
	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c)
		return
	}
	role, err := h.roles.CreateRole(c.Request.Context(), req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, roleDTO{ID: role.ID, Name: role.Name})
}

func (h *Handler) ListRoles(c *gin.Context) {
	roles, err := h.roles.ListRoles(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]roleDTO, 0, len(roles))
	for _, r := range roles {
		out = append(out, roleDTO{ID: r.ID, Name: r.Name})
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) GetUser(c *gin.Context) {
	u, err := h.roles.GetUser(c.Request.Context(), c.Param("username"))
	if err != nil {
		respondError(c, err)
		return
	}
	roles := u.Roles
	if roles == nil {
		roles = []string{}
	}
	c.JSON(http.StatusOK, userDTO{ID: u.ID, Username: u.UserName, Email: u.Email, CreatedAt: &u.CreatedAt, Roles: roles})
}

func (h *Handler) AddUserToRole(c *gin.Context) {
	h.changeMembership(c, h.roles.AddUserToRole)
}

func (h *Handler) RemoveUserFromRole(c *gin.Context) {
	h.changeMembership(c, h.roles.RemoveUserFromRole)
}

func (h *Handler) changeMembership(c *gin.Context, op func(ctx context.Context, username, role string) error) {
	var req userRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c)
		return
	}
	if err := op(c.Request.Context(), c.Param("username"), req.Role); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "ok"})
}

// SaveStatus stores the request body, a JSON object, as the user's newest
// status snapshot.
func (h *Handler) SaveStatus(c *gin.Context) {
	var params map[string]any
	if err := c.ShouldBindJSON(&params); err != nil || params == nil {
		respondBadRequest(c)
		return
	}

	st, err := h.statuses.SaveStatus(c.Request.Context(), c.Param("username"), params)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, statusDTO{ID: st.ID, UserID: st.UserID, ActualAt: st.ActualAt})
}

func (h *Handler) LatestStatus(c *gin.Context) {
	st, err := h.statuses.LatestStatus(c.Request.Context(), c.Param("username"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, statusDTO{ID: st.ID, UserID: st.UserID, ActualAt: st.ActualAt, Params: st.Params})
}

// Health runs every registered check; any failure is 503.
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	for _, check := range h.health {
		if err := check(ctx); err != nil {
			h.log.Warn(ctx, "health check failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
