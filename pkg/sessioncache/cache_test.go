package sessioncache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRecord struct {
	ID    string
	Value int
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return &Client{rdb: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
}

func TestCache_SetGetExpire(t *testing.T) {
	client := newTestClient(t)
	cache := NewCache[testRecord](client, "alerts", time.Minute)
	ctx := context.Background()

	_, err := cache.Get(ctx, "1")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, cache.Set(ctx, "1", testRecord{ID: "1", Value: 42}))

	got, err := cache.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, testRecord{ID: "1", Value: 42}, got)

	require.NoError(t, cache.Expire(ctx, "1"))
	_, err = cache.Get(ctx, "1")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestCache_NilClientIsNoOp(t *testing.T) {
	cache := NewCache[testRecord](nil, "alerts", time.Minute)
	ctx := context.Background()

	assert.NoError(t, cache.Set(ctx, "1", testRecord{ID: "1"}))
	_, err := cache.Get(ctx, "1")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.NoError(t, cache.Expire(ctx, "1"))
}

func TestNewClient_EmptyURLReturnsNilClient(t *testing.T) {
	client, err := NewClient("")
	require.NoError(t, err)
	assert.Nil(t, client)
	assert.NoError(t, client.EnsureConnection(context.Background()))
}
