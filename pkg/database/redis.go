package database

import (
	"context"
	"fmt"
	"time"

	"agri-search-go/pkg/log"

	"github.com/go-redis/redis/v8"
)

// RDB is the shared client, set by InitRedis.
var RDB *redis.Client

// InitRedis connects to redis and pings it once.
func InitRedis(addr, password string, db int) error {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	RDB = client
	log.Infof("Redis client connected to %s", addr)
	return nil
}
