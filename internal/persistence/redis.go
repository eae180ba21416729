package persistence

import (
	"context"
	"encoding/json"
	"time"

	"github.com/storefront-kit/cartengine/internal/cart"
	pkgerrors "github.com/storefront-kit/cartengine/pkg/errors"
	"github.com/storefront-kit/cartengine/pkg/redis"
)

// redisCommands is the command surface RedisStore consumes.
type redisCommands interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	CartKey(sessionID string) string
}

// RedisStore keeps cart snapshots in redis, one JSON document per
// session, expiring on the configured TTL.
type RedisStore struct {
	client redisCommands
	ttl    time.Duration
}

// NewRedisStore builds a redis-backed cart store.
func NewRedisStore(client *redis.Client, ttl time.Duration) (*RedisStore, error) {
	if client == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "redis client is required")
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

func (s *RedisStore) Save(ctx context.Context, c *cart.Cart) error {
	if c == nil || c.SessionID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart with a session id is required")
	}
	payload, err := json.Marshal(c)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "encoding cart snapshot")
	}
	if err := s.client.Set(ctx, s.client.CartKey(c.SessionID), payload, s.ttl); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "saving cart snapshot")
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, sessionID string) (*cart.Cart, error) {
	raw, err := s.client.Get(ctx, s.client.CartKey(sessionID))
	if err != nil {
		if redis.IsNil(err) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "loading cart snapshot")
	}
	var c cart.Cart
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "decoding cart snapshot")
	}
	return &c, nil
}

func (s *RedisStore) Clear(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.client.CartKey(sessionID)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "clearing cart snapshot")
	}
	return nil
}
