package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hive2hive/h2h/dht"
)

// RedisCache is the production dht.Cache backend, grounded on the teacher's
// cache/redis.go SetStruct/GetStruct pattern: JSON-encoded values, a default
// TTL, and a miss reported as (zero, false, nil) rather than an error — the
// cache-aside contract dht.Client.readMeta relies on.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// RedisOptions mirrors the teacher's cache.Options shape.
type RedisOptions struct {
	Address  string
	Password string
	DB       int
}

// DefaultRedisOptions matches the teacher's cache.DefaultOptions.
func DefaultRedisOptions() RedisOptions {
	return RedisOptions{Address: "localhost:6379", DB: 0}
}

// NewRedisCache wraps a go-redis client for use as a dht.Cache.
func NewRedisCache(opts RedisOptions) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Address,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return &RedisCache{client: client, prefix: "h2h:"}
}

func (c *RedisCache) GetMeta(ctx context.Context, key string) (dht.StoredMeta, bool, error) {
	s, err := c.client.Get(ctx, c.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return dht.StoredMeta{}, false, nil
	}
	if err != nil {
		return dht.StoredMeta{}, false, err
	}
	var meta dht.StoredMeta
	if err := json.Unmarshal([]byte(s), &meta); err != nil {
		return dht.StoredMeta{}, false, err
	}
	return meta, true, nil
}

func (c *RedisCache) SetMeta(ctx context.Context, key string, meta dht.StoredMeta, ttl time.Duration) error {
	buf, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return c.client.Set(ctx, c.prefix+key, buf, ttl).Err()
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.prefix+key).Err()
}
