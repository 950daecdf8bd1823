// Package idempotency records processed provider event ids so redelivered
// webhooks are acknowledged without being applied twice.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"grocer/internal/config"

	"github.com/redis/go-redis/v9"
)

const keyNamespace = "grocer:idempotency"

// Store is the minimal key-value surface the guard needs.
type Store interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
}

type cmdable interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisStore adapts a go-redis client to Store.
type RedisStore struct {
	client cmdable
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client cmdable) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, key, value, ttl).Result()
}

func (s *RedisStore) Del(ctx context.Context, keys ...string) error {
	return s.client.Del(ctx, keys...).Err()
}

// NewRedisClient parses the URL, connects and pings.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Guard marks event ids within a scope.
type Guard struct {
	store Store
	ttl   time.Duration
	scope string
}

// NewGuard builds a guard; ttl bounds how long an id is remembered.
func NewGuard(store Store, ttl time.Duration, scope string) (*Guard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &Guard{store: store, ttl: ttl, scope: scope}, nil
}

func (g *Guard) key(id string) string {
	return fmt.Sprintf("%s:%s:%s", keyNamespace, g.scope, id)
}

// CheckAndMark atomically marks id and reports whether it had been seen before.
func (g *Guard) CheckAndMark(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, errors.New("event id is required")
	}
	set, err := g.store.SetNX(ctx, g.key(id), "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set idempotency key: %w", err)
	}
	return !set, nil
}

// Release forgets id so a later delivery is processed again.
func (g *Guard) Release(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("event id is required")
	}
	return g.store.Del(ctx, g.key(id))
}
