package utils

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// Default cache ttl
	defaultCacheTTL = time.Hour
)

// RedisCache is a small JSON cache in front of hot rows. A nil client disables it.
type RedisCache struct {
	rc *redis.Client
}

// NewRedisCache wraps rc; rc may be nil.
func NewRedisCache(rc *redis.Client) *RedisCache {
	return &RedisCache{rc: rc}
}

// GetBytes returns cached bytes for a key.
func (c *RedisCache) GetBytes(key string) ([]byte, bool) {
	if c == nil || c.rc == nil {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	b, err := c.rc.Get(ctx, key).Bytes()
	if err != nil {
		if Sugar != nil {
			Sugar.Debugf("cache get miss key=%s err=%v", key, err)
		}
		return nil, false
	}
	return b, true
}

// GetJSON unmarshals a cached value into v. It reports false on miss or decode failure.
func (c *RedisCache) GetJSON(key string, v interface{}) bool {
	b, ok := c.GetBytes(key)
	if !ok {
		return false
	}
	return json.Unmarshal(b, v) == nil
}

// SetBytes stores bytes with ttl, or the default TTL when ttl <= 0.
func (c *RedisCache) SetBytes(key string, b []byte, ttl time.Duration) {
	if c == nil || c.rc == nil {
		return
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.rc.Set(ctx, key, b, ttl).Err(); err != nil {
		if Sugar != nil {
			Sugar.Warnf("cache set failed key=%s err=%v", key, err)
		}
	}
}

// SetJSON marshals v and stores JSON bytes.
func (c *RedisCache) SetJSON(key string, v interface{}, ttl time.Duration) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.SetBytes(key, b, ttl)
}

// Invalidate deletes the given keys.
func (c *RedisCache) Invalidate(keys ...string) {
	if c == nil || c.rc == nil || len(keys) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.rc.Del(ctx, keys...).Err(); err != nil && Sugar != nil {
		Sugar.Warnf("cache invalidate failed keys=%v err=%v", keys, err)
	}
}
