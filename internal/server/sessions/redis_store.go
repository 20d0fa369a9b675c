package sessions

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
)

const (
	keyPrefix = "session:"
	idSize    = 32
)

// RedisStore keeps each session as a JSON value under session:<id> whose
// TTL equals the session lifetime.
type RedisStore struct {
	client redis.UniversalClient
	now    func() time.Time
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

func (r *RedisStore) key(id string) string {
	return keyPrefix + id
}

// Create stores a new session for the subject described by claims.
func (r *RedisStore) Create(ctx context.Context, claims auth.ClaimSet, lifetime time.Duration) (*Session, error) {
	if lifetime <= 0 {
		return nil, errors.New("session: lifetime must be positive")
	}
	userID, _ := claims.First(auth.ClaimNameIdentifier)
	if userID == "" {
		return nil, errors.New("session: claims carry no user id")
	}
	username, _ := claims.First(auth.ClaimName)

	id, err := common.MakeRandString(idSize, base64.RawURLEncoding)
	if err != nil {
		return nil, fmt.Errorf("session: generate id: %w", err)
	}

	now := r.now()
	s := &Session{
		ID:        id,
		UserID:    userID,
		Username:  username,
		Claims:    claims,
		CreatedAt: now,
		ExpiresAt: now.Add(lifetime),
	}

	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("session: marshal: %w", err)
	}

	ok, err := r.client.SetNX(ctx, r.key(id), data, lifetime).Result()
	if err != nil {
		return nil, fmt.Errorf("session: store: %w", err)
	}
	if !ok {
		return nil, errors.New("session: id collision")
	}
	return s, nil
}

func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, common.ErrorNotFound
	}

	val, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session: load: %w", err)
	}

	var s Session
	if err := json.Unmarshal(val, &s); err != nil {
		return nil, fmt.Errorf("session: unmarshal: %w", err)
	}
	if !s.ExpiresAt.After(r.now()) {
		return nil, common.ErrorNotFound
	}
	return &s, nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("session: delete: %w", err)
	}
	return nil
}
