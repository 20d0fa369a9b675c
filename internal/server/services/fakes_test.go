package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/identity"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// memStore is an in-memory IdentityStore. Passwords are kept in clear; the
// real store hashes them.
type memStore struct {
	mu        sync.Mutex
	users     map[string]*models.User
	passwords map[string]string
	roles     map[string]models.Role
	members   map[string]map[string]bool
	statuses  []models.UserStatus

	findErr     error
	commitErr   error
	saveErr     error
	rotateErr   error
	rolesErr    error
	statusErr   error
	rotateCalls int
	saveCalls   int
}

func newMemStore() *memStore {
	return &memStore{
		users:     map[string]*models.User{},
		passwords: map[string]string{},
		roles:     map[string]models.Role{},
		members:   map[string]map[string]bool{},
	}
}

func (m *memStore) addUser(name, email, password string) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := &models.User{ID: uuid.NewString(), UserName: name, Email: email, CreatedAt: time.Now().UTC()}
	m.users[u.ID] = u
	m.passwords[u.ID] = password
	return u
}

func clone(u *models.User) *models.User {
	c := *u
	if u.RefreshToken != nil {
		t := *u.RefreshToken
		c.RefreshToken = &t
	}
	if u.RefreshTokenExpiresAt != nil {
		e := *u.RefreshTokenExpiresAt
		c.RefreshTokenExpiresAt = &e
	}
	return &c
}

func (m *memStore) slot(userID string) (string, *time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.users[userID]
	if u.RefreshToken == nil {
		return "", nil
	}
	return *u.RefreshToken, u.RefreshTokenExpiresAt
}

func (m *memStore) find(match func(*models.User) bool) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, u := range m.users {
		if match(u) {
			return clone(u), nil
		}
	}
	return nil, common.ErrorNotFound
}

func (m *memStore) FindByName(_ context.Context, name string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.UserName == name })
}

func (m *memStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.Email == email })
}

func (m *memStore) FindByID(_ context.Context, id string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.ID == id })
}

func (m *memStore) Create(ctx context.Context, user *models.User, password string, provision identity.ProvisionFunc) (*models.User, error) {
	m.mu.Lock()
	for _, u := range m.users {
		if u.UserName == user.UserName || u.Email == user.Email {
			m.mu.Unlock()
			return nil, common.ErrorAlreadyExists
		}
	}
	m.mu.Unlock()

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.CreatedAt = time.Now().UTC()
	if provision != nil {
		if err := provision(ctx, user); err != nil {
			return nil, err
		}
	}
	if m.commitErr != nil {
		return nil, m.commitErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = clone(user)
	m.passwords[user.ID] = password
	return user, nil
}

func (m *memStore) CheckPassword(user *models.User, password string) bool {
	if user == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.passwords[user.ID] == password
}

func (m *memStore) GetRoles(_ context.Context, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rolesErr != nil {
		return nil, m.rolesErr
	}
	names := []string{}
	for roleID := range m.members[userID] {
		names = append(names, m.roles[roleID].Name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *memStore) SaveRefreshToken(_ context.Context, userID, token string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveCalls++
	if m.saveErr != nil {
		return m.saveErr
	}
	u, ok := m.users[userID]
	if !ok {
		return common.ErrorNotFound
	}
	u.RefreshToken, u.RefreshTokenExpiresAt = &token, &expiresAt
	return nil
}

func (m *memStore) RotateRefreshToken(_ context.Context, userID, presented, next string, nextExpiresAt, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rotateCalls++
	if m.rotateErr != nil {
		return m.rotateErr
	}
	u, ok := m.users[userID]
	if !ok || u.RefreshToken == nil || *u.RefreshToken != presented || !u.RefreshTokenExpiresAt.After(now) {
		return common.ErrRefreshTokenMismatch
	}
	u.RefreshToken, u.RefreshTokenExpiresAt = &next, &nextExpiresAt
	return nil
}

func (m *memStore) RevokeRefreshToken(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[userID]; ok {
		u.RefreshToken, u.RefreshTokenExpiresAt = nil, nil
	}
	return nil
}

func (m *memStore) CreateRole(_ context.Context, name string) (*models.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.roles {
		if r.Name == name {
			return nil, common.ErrorAlreadyExists
		}
	}
	r := models.Role{ID: uuid.NewString(), Name: name}
	m.roles[r.ID] = r
	return &r, nil
}

func (m *memStore) ListRoles(context.Context) ([]models.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Role{}
	for _, r := range m.roles {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memStore) roleID(name string) (string, bool) {
	for id, r := range m.roles {
		if r.Name == name {
			return id, true
		}
	}
	return "", false
}

func (m *memStore) AddUserToRole(_ context.Context, userID, roleName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.roleID(roleName)
	if !ok {
		return common.ErrorNotFound
	}
	if m.members[userID] == nil {
		m.members[userID] = map[string]bool{}
	}
	m.members[userID][id] = true
	return nil
}

func (m *memStore) RemoveUserFromRole(_ context.Context, userID, roleName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.roleID(roleName)
	if !ok || !m.members[userID][id] {
		return common.ErrorNotFound
	}
	delete(m.members[userID], id)
	return nil
}

type fakeBuckets struct {
	mu      sync.Mutex
	err     error
	created []string
	removed []string
}

func (f *fakeBuckets) EnsureBucket(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, name)
	return nil
}

func (f *fakeBuckets) RemoveBucket(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, name)
	return nil
}

func (m *memStore) SaveStatus(_ context.Context, userID string, params []byte, at time.Time) (*models.UserStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.statusErr != nil {
		return nil, m.statusErr
	}
	if _, ok := m.users[userID]; !ok {
		return nil, common.ErrorNotFound
	}
	st := models.UserStatus{ID: int64(len(m.statuses) + 1), UserID: userID, ActualAt: at, Params: params}
	m.statuses = append(m.statuses, st)
	return &st, nil
}

func (m *memStore) LatestStatus(_ context.Context, userID string) (*models.UserStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.statusErr != nil {
		return nil, m.statusErr
	}
	var latest *models.UserStatus
	for i := range m.statuses {
		st := m.statuses[i]
		if st.UserID != userID {
			continue
		}
		if latest == nil || st.ActualAt.After(latest.ActualAt) || (st.ActualAt.Equal(latest.ActualAt) && st.ID > latest.ID) {
			latest = &st
		}
	}
	if latest == nil {
		return nil, common.ErrorNotFound
	}
	return latest, nil
}
