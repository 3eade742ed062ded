package cache

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
)

var _ Cache = (*RedisCache)(nil)

type RedisCache struct {
	redisClient *redis.Client
}

func NewRedisCache(redisClient *redis.Client) *RedisCache {
	return &RedisCache{
		redisClient: redisClient,
	}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	cmd := c.redisClient.Get(ctx, key)
	if err := cmd.Err(); err != nil {
		if err != redis.Nil {
			log.Errorf("cache get [%s]: %s", key, err)
		}
		return nil, false
	}

	valBytes, err := cmd.Bytes()
	if err != nil {
		log.Errorf("cache get bytes [%s]: %s", key, err)
		return nil, false
	}

	return valBytes, true
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := c.redisClient.Set(ctx, key, value, ttl).Err(); err != nil {
		log.Errorf("cache set [%s]: %s", key, err)
	}
}

// Invalidate removes all keys matching the given glob pattern, e.g.
// "workouts::merged::*". Uses SCAN to avoid blocking redis with KEYS.
func (c *RedisCache) Invalidate(ctx context.Context, pattern string) error {
	iter := c.redisClient.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := c.redisClient.Del(ctx, iter.Val()).Err(); err != nil {
			log.Errorf("cache invalidate, del [%s]: %s", iter.Val(), err)
		}
	}
	return iter.Err()
}
