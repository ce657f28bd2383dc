package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/david/feedback-triage/internal/logger"
)

const redisNamespace = "triage:"

// Redis is a Cache backed by a Redis server. Keys are namespaced so several
// services can share one database.
type Redis struct {
	rdb *redis.Client
}

// NewRedis parses url (redis://...) and verifies the connection.
func NewRedis(ctx context.Context, url string, log *logger.Logger) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", opts.Addr, err)
	}

	log.Info("connected to redis", "addr", opts.Addr)
	return &Redis{rdb: rdb}, nil
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}

func (r *Redis) Get(ctx context.Context, key string, dest any) (bool, error) {
	raw, err := r.rdb.Get(ctx, redisNamespace+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, redisNamespace+key, raw, ttl).Err()
}

func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = redisNamespace + k
	}
	return r.rdb.Del(ctx, full...).Err()
}

// DeletePrefix scans for matching keys and deletes them in batches.
func (r *Redis) DeletePrefix(ctx context.Context, prefix string) error {
	iter := r.rdb.Scan(ctx, 0, redisNamespace+prefix+"*", 200).Iterator()
	batch := make([]string, 0, 200)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := r.rdb.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return r.rdb.Del(ctx, batch...).Err()
	}
	return nil
}
