package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRedis struct {
	values map[string]string
	ttls   map[string]time.Duration
	err    error
	evals  []string
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	f.values[key] = value.(string)
	f.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	var n int64
	for _, k := range keys {
		if _, ok := f.values[k]; ok {
			delete(f.values, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value any, ttl time.Duration) *redis.BoolCmd {
	if f.err != nil {
		return redis.NewBoolResult(false, f.err)
	}
	if _, ok := f.values[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.values[key] = value.(string)
	f.ttls[key] = ttl
	return redis.NewBoolResult(true, nil)
}

// Eval understands only the release script: compare and delete
func (f *fakeRedis) Eval(_ context.Context, script string, keys []string, args ...any) *redis.Cmd {
	f.evals = append(f.evals, keys[0])
	if f.values[keys[0]] == args[0].(string) {
		delete(f.values, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func TestRedisTokenCache(t *testing.T) {
	ctx := context.Background()
	store := newFakeRedis()
	c := NewRedisTokenCache(store, "magesync:session", 50*time.Minute)

	token, err := c.Get(ctx)
	require.NoError(t, err)
	assert.Empty(t, token, "nothing cached yet")

	require.NoError(t, c.Set(ctx, "b1f0c9e2a77d4e10"))
	assert.Equal(t, 50*time.Minute, store.ttls["magesync:session"])

	token, err = c.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b1f0c9e2a77d4e10", token)

	require.NoError(t, c.Delete(ctx))
	token, err = c.Get(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestRedisTokenCache_Errors(t *testing.T) {
	ctx := context.Background()
	store := newFakeRedis()
	store.err = errors.New("connection refused")
	c := NewRedisTokenCache(store, "k", time.Minute)

	_, err := c.Get(ctx)
	assert.ErrorContains(t, err, "connection refused")
	assert.Error(t, c.Set(ctx, "token-value-123"))
	assert.Error(t, c.Delete(ctx))
}

func TestKey(t *testing.T) {
	assert.Equal(t, "magesync:lock:customers", Key("magesync", "lock", "customers"))
	assert.Equal(t, "lock:customers", Key("", "lock", "customers"))
}
