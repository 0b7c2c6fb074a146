package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisPrefix = "health-diary:"

// Redis stores each slot as a string key under the health-diary: namespace.
type Redis struct {
	rdb *redis.Client
}

// NewRedis connects to addr and verifies connectivity.
func NewRedis(ctx context.Context, addr string, db int) (*Redis, error) {
	if addr == "" {
		return nil, errors.New("kv: empty redis address")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("kv: redis ping: %w", err)
	}
	return &Redis{rdb: rdb}, nil
}

// Get reads the slot key.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := r.rdb.Get(ctx, redisPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSlotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("kv: redis get: %w", err)
	}
	return b, nil
}

// Put overwrites the slot key without expiry.
func (r *Redis) Put(ctx context.Context, key string, value []byte) error {
	if err := r.rdb.Set(ctx, redisPrefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("kv: redis set: %w", err)
	}
	return nil
}

// Close closes the client.
func (r *Redis) Close() error { return r.rdb.Close() }
