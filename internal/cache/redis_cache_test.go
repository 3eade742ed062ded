package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/runstr-app/runstr-server/internal/cache"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisCache_GetSet(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	c := cache.NewRedisCache(rdb)
	ctx := context.Background()

	mock.ExpectSet("workouts::merged::user1", []byte(`{"v":1}`), time.Minute).SetVal("OK")
	c.Set(ctx, "workouts::merged::user1", []byte(`{"v":1}`), time.Minute)

	mock.ExpectGet("workouts::merged::user1").SetVal(`{"v":1}`)
	val, found := c.Get(ctx, "workouts::merged::user1")
	require.True(t, found)
	assert.Equal(t, []byte(`{"v":1}`), val)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisCache_GetMiss(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	c := cache.NewRedisCache(rdb)

	mock.ExpectGet("nope").RedisNil()
	_, found := c.Get(context.Background(), "nope")
	assert.False(t, found)
}

func TestTestCache_TTL(t *testing.T) {
	c := cache.NewTestCache()
	ctx := context.Background()

	c.Set(ctx, "k", []byte("v"), -time.Second)
	_, found := c.Get(ctx, "k")
	assert.False(t, found, "expired entry must not be returned")

	c.Set(ctx, "workouts::merged::u1", []byte("v"), time.Minute)
	require.NoError(t, c.Invalidate(ctx, "workouts::merged::*"))
	_, found = c.Get(ctx, "workouts::merged::u1")
	assert.False(t, found)
}
