package idempotency

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu   sync.Mutex
	data map[string]time.Duration
	err  error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: map[string]time.Duration{}}
}

func (s *memoryStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	if _, ok := s.data[key]; ok {
		return false, nil
	}
	s.data[key] = ttl
	return true, nil
}

func (s *memoryStore) Del(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.data, k)
	}
	return nil
}

func TestGuard_CheckAndMark(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	guard, err := NewGuard(store, time.Hour, "stripe")
	require.NoError(t, err)

	seen, err := guard.CheckAndMark(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = guard.CheckAndMark(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, seen)

	assert.Equal(t, time.Hour, store.data["grocer:idempotency:stripe:evt_1"])

	require.NoError(t, guard.Release(ctx, "evt_1"))
	seen, err = guard.CheckAndMark(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestGuard_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := NewGuard(nil, time.Hour, "stripe")
	assert.Error(t, err)
	_, err = NewGuard(newMemoryStore(), -time.Second, "stripe")
	assert.Error(t, err)
	_, err = NewGuard(newMemoryStore(), time.Hour, "")
	assert.Error(t, err)

	store := newMemoryStore()
	store.err = errors.New("connection refused")
	guard, err := NewGuard(store, time.Hour, "stripe")
	require.NoError(t, err)

	_, err = guard.CheckAndMark(ctx, "evt_1")
	assert.ErrorContains(t, err, "connection refused")

	_, err = guard.CheckAndMark(ctx, "")
	assert.Error(t, err)
	assert.Error(t, guard.Release(ctx, ""))
}

type fakeCmdable struct {
	setNX bool
	keys  []string
}

func (f *fakeCmdable) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	f.keys = append(f.keys, key)
	cmd := redis.NewBoolCmd(ctx)
	cmd.SetVal(f.setNX)
	return cmd
}

func (f *fakeCmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(int64(len(keys)))
	return cmd
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	client := &fakeCmdable{setNX: true}
	store := NewRedisStore(client)

	ok, err := store.SetNX(ctx, "k", "1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"k"}, client.keys)
	assert.NoError(t, store.Del(ctx, "k"))
}
