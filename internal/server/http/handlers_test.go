package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/dmitrijs2005/gophauth/internal/server/sessions"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockAuth struct {
	loginFunc        func(ctx context.Context, username, password string) (*services.LoginResult, error)
	refreshFunc      func(ctx context.Context, accessToken, refreshToken string) (*services.RefreshResult, error)
	logoutFunc       func(ctx context.Context, c *services.Caller) error
	authenticateFunc func(ctx context.Context, sessionID, bearer string) (*services.Caller, error)
	registerFunc     func(ctx context.Context, username, email, password string) (*models.User, error)
}

func (m *mockAuth) Login(ctx context.Context, u, p string) (*services.LoginResult, error) {
	if m.loginFunc != nil {
		return m.loginFunc(ctx, u, p)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAuth) Refresh(ctx context.Context, a, r string) (*services.RefreshResult, error) {
	if m.refreshFunc != nil {
		return m.refreshFunc(ctx, a, r)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAuth) Logout(ctx context.Context, c *services.Caller) error {
	if m.logoutFunc != nil {
		return m.logoutFunc(ctx, c)
	}
	return errors.New("not implemented")
}

func (m *mockAuth) Authenticate(ctx context.Context, sid, bearer string) (*services.Caller, error) {
	if m.authenticateFunc != nil {
		return m.authenticateFunc(ctx, sid, bearer)
	}
	return nil, common.ErrorUnauthorized
}

func (m *mockAuth) Register(ctx context.Context, u, e, p string) (*models.User, error) {
	if m.registerFunc != nil {
		return m.registerFunc(ctx, u, e, p)
	}
	return nil, errors.New("not implemented")
}

type mockRoles struct {
	createFunc func(ctx context.Context, name string) (*models.Role, error)
	listFunc   func(ctx context.Context) ([]models.Role, error)
	getFunc    func(ctx context.Context, username string) (*services.UserView, error)
	addFunc    func(ctx context.Context, username, role string) error
	removeFunc func(ctx context.Context, username, role string) error
}

func (m *mockRoles) CreateRole(ctx context.Context, n string) (*models.Role, error) {
	return m.createFunc(ctx, n)
}
func (m *mockRoles) ListRoles(ctx context.Context) ([]models.Role, error) { return m.listFunc(ctx) }
func (m *mockRoles) GetUser(ctx context.Context, u string) (*services.UserView, error) {
	return m.getFunc(ctx, u)
}
func (m *mockRoles) AddUserToRole(ctx context.Context, u, r string) error { return m.addFunc(ctx, u, r) }
func (m *mockRoles) RemoveUserFromRole(ctx context.Context, u, r string) error {
	return m.removeFunc(ctx, u, r)
}

type mockStatuses struct {
	saveFunc   func(ctx context.Context, username string, params map[string]any) (*models.UserStatus, error)
	latestFunc func(ctx context.Context, username string) (*models.UserStatus, error)
}

func (m *mockStatuses) SaveStatus(ctx context.Context, u string, p map[string]any) (*models.UserStatus, error) {
	return m.saveFunc(ctx, u, p)
}

func (m *mockStatuses) LatestStatus(ctx context.Context, u string) (*models.UserStatus, error) {
	return m.latestFunc(ctx, u)
}

func newTestRouter(a *mockAuth, r *mockRoles, health ...HealthFunc) *gin.Engine {
	return newTestRouterWithStatuses(a, r, &mockStatuses{}, health...)
}

func newTestRouterWithStatuses(a *mockAuth, r *mockRoles, st *mockStatuses, health ...HealthFunc) *gin.Engine {
	if r == nil {
		r = &mockRoles{}
	}
	return NewRouter(NewHandler(a, r, st, sessions.CookieOptions{Secure: true}, nil, health...))
}

func do(t *testing.T, h http.Handler, method, path string, body any, opts ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, o := range opts {
		o(req)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func withBearer(tok string) func(*http.Request) {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tok) }
}

func withCookie(name, value string) func(*http.Request) {
	return func(r *http.Request) { r.AddCookie(&http.Cookie{Name: name, Value: value}) }
}

func cookieByName(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func aliceCaller(ctx context.Context, sid, bearer string) (*services.Caller, error) {
	if sid == "sid" || bearer == "good" {
		return &services.Caller{UserID: "u-alice", Username: "alice", SessionID: sid}, nil
	}
	return nil, common.ErrorUnauthorized
}

func TestLogin_SetsCookiesAndReturnsUser(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	issued := time.Date(2021, 6, 1, 8, 0, 0, 0, time.UTC)
	refreshExp := issued.Add(auth.RefreshTokenValidity)

	a := &mockAuth{loginFunc: func(_ context.Context, u, p string) (*services.LoginResult, error) {
		require.Equal(t, "alice", u)
		require.Equal(t, "pw", p)
		return &services.LoginResult{
			AccessToken:           &auth.AccessToken{Token: "access-jwt"},
			RefreshToken:          "refresh-opaque",
			RefreshTokenExpiresAt: refreshExp,
			Session:               &sessions.Session{ID: "sid", CreatedAt: issued, ExpiresAt: issued.Add(time.Hour)},
			IssuedAt:              issued,
			User:                  services.UserView{ID: "u-alice", UserName: "alice", Email: "alice@example.com", CreatedAt: created},
		}, nil
	}}

	rec := do(t, newTestRouter(a, nil), http.MethodPost, "/auth/login", gin.H{"username": "alice", "password": "pw"})
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		AccessToken string `json:"accessToken"`
		User        struct {
			ID        string    `json:"id"`
			Username  string    `json:"username"`
			Email     string    `json:"email"`
			CreatedAt time.Time `json:"createdAt"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "access-jwt", body.AccessToken)
	assert.Equal(t, "u-alice", body.User.ID)
	assert.True(t, created.Equal(body.User.CreatedAt))
	assert.NotContains(t, rec.Body.String(), "refresh-opaque", "refresh token only travels in the cookie")

	rc := cookieByName(rec, common.RefreshTokenCookieName)
	require.NotNil(t, rc)
	assert.Equal(t, "refresh-opaque", rc.Value)
	assert.True(t, rc.HttpOnly)
	assert.True(t, rc.Secure)
	assert.Equal(t, http.SameSiteStrictMode, rc.SameSite)
	assert.WithinDuration(t, refreshExp, rc.Expires, time.Second)
	assert.Equal(t, int(auth.RefreshTokenValidity.Seconds()), rc.MaxAge)

	sc := cookieByName(rec, common.SessionCookieName)
	require.NotNil(t, sc)
	assert.Equal(t, "sid", sc.Value)
	assert.False(t, sc.Expires.IsZero())
	assert.Equal(t, 3600, sc.MaxAge)
}

func TestLogin_FailureSetsNoCookies(t *testing.T) {
	a := &mockAuth{loginFunc: func(context.Context, string, string) (*services.LoginResult, error) {
		return nil, common.ErrInvalidCredentials
	}}

	rec := do(t, newTestRouter(a, nil), http.MethodPost, "/auth/login", gin.H{"username": "alice", "password": "bad"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Result().Cookies())
	assert.JSONEq(t, `{"error":"invalid username or password"}`, rec.Body.String())
}

func TestLogin_BadBody(t *testing.T) {
	rec := do(t, newTestRouter(&mockAuth{}, nil), http.MethodPost, "/auth/login", gin.H{"username": "alice"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefresh(t *testing.T) {
	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	a := &mockAuth{refreshFunc: func(_ context.Context, at, rt string) (*services.RefreshResult, error) {
		if at != "old-access" || rt != "old-refresh" {
			return nil, common.ErrInvalidToken
		}
		return &services.RefreshResult{
			AccessToken:           &auth.AccessToken{Token: "new-access", ExpiresAt: exp},
			RefreshToken:          "new-refresh",
			RefreshTokenExpiresAt: exp.Add(29 * 24 * time.Hour),
			User:                  services.UserView{ID: "u-alice", UserName: "alice", Email: "a@x", Roles: []string{"admin"}},
		}, nil
	}}
	router := newTestRouter(a, nil)

	rec := do(t, router, http.MethodPost, "/auth/refresh", gin.H{"accessToken": "old-access", "refreshToken": "old-refresh"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"accessToken": "new-access",
		"refreshToken": "new-refresh",
		"expiresAt": "2030-01-01T00:00:00Z",
		"user": {"id": "u-alice", "username": "alice", "email": "a@x", "roles": ["admin"]}
	}`, rec.Body.String())
	require.NotNil(t, cookieByName(rec, common.RefreshTokenCookieName))

	rec = do(t, router, http.MethodPost, "/auth/refresh", gin.H{"accessToken": "old-access"},
		withCookie(common.RefreshTokenCookieName, "old-refresh"))
	assert.Equal(t, http.StatusOK, rec.Code, "cookie fallback")

	rec = do(t, router, http.MethodPost, "/auth/refresh", gin.H{"accessToken": "old-access", "refreshToken": "stolen"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"invalid access token or refresh token"}`, rec.Body.String())

	rec = do(t, router, http.MethodPost, "/auth/refresh", gin.H{})
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "malformed refresh is the same generic error")
}

func TestRefresh_InternalErrorHidesDetail(t *testing.T) {
	a := &mockAuth{refreshFunc: func(context.Context, string, string) (*services.RefreshResult, error) {
		return nil, errors.New("pq: connection refused")
	}}

	rec := do(t, newTestRouter(a, nil), http.MethodPost, "/auth/refresh", gin.H{"accessToken": "x", "refreshToken": "y"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestLogout(t *testing.T) {
	var got *services.Caller
	a := &mockAuth{
		authenticateFunc: aliceCaller,
		logoutFunc: func(_ context.Context, c *services.Caller) error {
			got = c
			return nil
		},
	}
	router := newTestRouter(a, nil)

	rec := do(t, router, http.MethodPost, "/auth/logout", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, router, http.MethodPost, "/auth/logout", nil, withCookie(common.SessionCookieName, "sid"))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got)
	assert.Equal(t, "sid", got.SessionID)

	for _, name := range []string{common.SessionCookieName, common.RefreshTokenCookieName} {
		c := cookieByName(rec, name)
		require.NotNil(t, c, name)
		assert.Empty(t, c.Value)
		assert.Less(t, c.MaxAge, 0)
	}
}

func TestRegister(t *testing.T) {
	a := &mockAuth{registerFunc: func(_ context.Context, u, e, p string) (*models.User, error) {
		if u == "taken" {
			return nil, common.ErrDuplicateIdentity
		}
		return &models.User{ID: "new-id", UserName: u, Email: e}, nil
	}}
	router := newTestRouter(a, nil)

	rec := do(t, router, http.MethodPost, "/auth/register", gin.H{"username": "bob", "email": "bob@x.io", "password": "pw"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"id":"new-id"}`, rec.Body.String())

	rec = do(t, router, http.MethodPost, "/auth/register", gin.H{"username": "taken", "email": "t@x.io", "password": "pw"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRoles(t *testing.T) {
	a := &mockAuth{authenticateFunc: aliceCaller}
	r := &mockRoles{
		createFunc: func(_ context.Context, name string) (*models.Role, error) {
			if name == "admin" {
				return nil, common.ErrDuplicateIdentity
			}
			return &models.Role{ID: "r-1", Name: name}, nil
		},
		listFunc: func(context.Context) ([]models.Role, error) {
			return []models.Role{{ID: "r-1", Name: "admin"}}, nil
		},
	}
	router := newTestRouter(a, r)

	rec := do(t, router, http.MethodPost, "/auth/roles", gin.H{"name": "ops"})
	require.Equal(t, http.StatusCreated, rec.Code, "creating a role needs no caller")
	assert.JSONEq(t, `{"id":"r-1","name":"ops"}`, rec.Body.String())

	rec = do(t, router, http.MethodPost, "/auth/roles", gin.H{"name": "admin"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, router, http.MethodGet, "/auth/roles", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "listing requires authentication")

	rec = do(t, router, http.MethodGet, "/auth/roles", nil, withBearer("good"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"id":"r-1","name":"admin"}]`, rec.Body.String())
}

func TestUsers(t *testing.T) {
	a := &mockAuth{authenticateFunc: aliceCaller}
	memberships := map[string]bool{}
	r := &mockRoles{
		getFunc: func(_ context.Context, username string) (*services.UserView, error) {
			if username != "alice" {
				return nil, common.ErrorNotFound
			}
			return &services.UserView{ID: "u-alice", UserName: "alice", Email: "a@x", Roles: []string{"admin"}}, nil
		},
		addFunc: func(_ context.Context, u, role string) error {
			memberships[u+"/"+role] = true
			return nil
		},
		removeFunc: func(_ context.Context, u, role string) error {
			if !memberships[u+"/"+role] {
				return common.ErrorNotFound
			}
			delete(memberships, u+"/"+role)
			return nil
		},
	}
	router := newTestRouter(a, r)
	authed := withCookie(common.SessionCookieName, "sid")

	rec := do(t, router, http.MethodGet, "/users/alice", nil, authed)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"roles":["admin"]`)

	rec = do(t, router, http.MethodGet, "/users/ghost", nil, authed)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, http.MethodPost, "/users/alice/roles", gin.H{"role": "ops"}, authed)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, memberships["alice/ops"])

	rec = do(t, router, http.MethodDelete, "/users/alice/roles", gin.H{"role": "ops"}, authed)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodDelete, "/users/alice/roles", gin.H{"role": "ops"}, authed)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, http.MethodGet, "/users/alice", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUserStatus(t *testing.T) {
	at := time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)
	var saved []map[string]any
	st := &mockStatuses{
		saveFunc: func(_ context.Context, username string, params map[string]any) (*models.UserStatus, error) {
			if username != "alice" {
				return nil, common.ErrorNotFound
			}
			saved = append(saved, params)
			return &models.UserStatus{ID: int64(len(saved)), UserID: "u-alice", ActualAt: at}, nil
		},
		latestFunc: func(_ context.Context, username string) (*models.UserStatus, error) {
			if username != "alice" || len(saved) == 0 {
				return nil, common.ErrorNotFound
			}
			raw, err := json.Marshal(saved[len(saved)-1])
			require.NoError(t, err)
			return &models.UserStatus{ID: int64(len(saved)), UserID: "u-alice", ActualAt: at, Params: raw}, nil
		},
	}
	router := newTestRouterWithStatuses(&mockAuth{authenticateFunc: aliceCaller}, nil, st)
	authed := withCookie(common.SessionCookieName, "sid")

	rec := do(t, router, http.MethodGet, "/users/alice/status", nil, authed)
	assert.Equal(t, http.StatusNotFound, rec.Code, "nothing saved yet")

	rec = do(t, router, http.MethodPost, "/users/alice/status", gin.H{"screen": "editor", "tab": 2}, authed)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"id":1,"userId":"u-alice","actualAt":"2025-02-03T04:05:06Z"}`, rec.Body.String())

	rec = do(t, router, http.MethodGet, "/users/alice/status", nil, authed)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":1,"userId":"u-alice","actualAt":"2025-02-03T04:05:06Z","params":{"screen":"editor","tab":2}}`, rec.Body.String())

	rec = do(t, router, http.MethodPost, "/users/alice/status", []int{1, 2}, authed)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "params must be an object")

	rec = do(t, router, http.MethodPost, "/users/ghost/status", gin.H{"a": 1}, authed)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, http.MethodGet, "/users/alice/status", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Len(t, saved, 1)
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestRouter(&mockAuth{}, nil), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	failing := func(context.Context) error { return errors.New("redis down") }
	rec = do(t, newTestRouter(&mockAuth{}, nil, failing), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "redis down")
}

func TestBearerToken(t *testing.T) {
	tests := map[string]string{
		"Bearer abc":   "abc",
		"bearer abc":   "abc",
		"Basic abc":    "",
		"Bearer":       "",
		"":             "",
		"Bearer  abc ": "abc",
	}
	for header, want := range tests {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		c.Request.Header.Set("Authorization", header)
		assert.Equal(t, want, bearerToken(c), "header %q", header)
	}
}
