// Package repository provides the persistent key-value stores behind the
// session manager.
package repository

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// Persisted session keys.
const (
	KeySessionID         = "session_id"
	KeySystemInstruction = "system_instruction"
)

// SessionRepository is a string key-value store that survives process
// restarts. A missing key is reported with ok=false and a nil error.
type SessionRepository interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Clear(ctx context.Context, key string) error
}

type redisSessionRepository struct {
	redisClient *redis.Client
	prefix      string
}

// NewRedisSessionRepository stores keys as "<prefix>:<key>" without expiry.
func NewRedisSessionRepository(redisClient *redis.Client, prefix string) SessionRepository {
	return &redisSessionRepository{redisClient: redisClient, prefix: prefix}
}

func (r *redisSessionRepository) key(k string) string {
	if r.prefix == "" {
		return k
	}
	return r.prefix + ":" + k
}

func (r *redisSessionRepository) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.redisClient.Get(ctx, r.key(key)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return val, true, nil
}

func (r *redisSessionRepository) Set(ctx context.Context, key, value string) error {
	if err := r.redisClient.Set(ctx, r.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

func (r *redisSessionRepository) Clear(ctx context.Context, key string) error {
	if err := r.redisClient.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to clear %s: %w", key, err)
	}
	return nil
}
