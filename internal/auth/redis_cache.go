package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	errMissingRedisClient = errors.New("auth: redis client required")
	errMissingRedisKey    = errors.New("auth: redis key required")
)

// RedisKeySetCache shares the raw key-set document between replicas through Redis.
type RedisKeySetCache struct {
	client redis.Cmdable
	key    string
	ttl    time.Duration
}

// NewRedisKeySetCache wraps a Redis client. Entries expire after ttl.
func NewRedisKeySetCache(client redis.Cmdable, key string, ttl time.Duration) (*RedisKeySetCache, error) {
	if client == nil {
		return nil, errMissingRedisClient
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, errMissingRedisKey
	}
	if ttl <= 0 {
		ttl = defaultKeyCacheTTL
	}
	return &RedisKeySetCache{client: client, key: key, ttl: ttl}, nil
}

func (c *RedisKeySetCache) Load(ctx context.Context) ([]byte, bool, error) {
	document, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return document, true, nil
}

func (c *RedisKeySetCache) Store(ctx context.Context, document []byte) error {
	return c.client.Set(ctx, c.key, document, c.ttl).Err()
}

var _ KeySetCache = (*RedisKeySetCache)(nil)
