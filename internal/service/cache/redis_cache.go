package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	cli    redis.Cmdable
	prefix string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

func NewRedisClient(cfg RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
}

// NewRedisCache namespaces every key under prefix.
func NewRedisCache(cli redis.Cmdable, prefix string) *RedisCache {
	return &RedisCache{cli: cli, prefix: prefix}
}

func (r *RedisCache) key(k string) string {
	if r.prefix == "" {
		return k
	}
	return r.prefix + ":" + k
}

func (r *RedisCache) GetBytes(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := r.cli.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return b, true, nil
}

func (r *RedisCache) SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.cli.Set(ctx, r.key(key), value, ttl).Err()
}

// Delete removes keys; a trailing "*" is expanded with SCAN.
func (r *RedisCache) Delete(ctx context.Context, keys ...string) error {
	var plain []string
	for _, k := range keys {
		if !strings.HasSuffix(k, "*") {
			plain = append(plain, r.key(k))
			continue
		}
		var cursor uint64
		for {
			found, next, err := r.cli.Scan(ctx, cursor, r.key(k), 100).Result()
			if err != nil {
				return err
			}
			plain = append(plain, found...)
			if next == 0 {
				break
			}
			cursor = next
		}
	}
	if len(plain) == 0 {
		return nil
	}
	return r.cli.Del(ctx, plain...).Err()
}
