// Package cache holds the Redis and in-memory stores that sit in front of
// the platform API: a feed page cache and a credential repository.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sourcing/backend/internal/infrastructure/config"
)

const (
	keyPrefix   = "sourcing:"
	pingTimeout = 5 * time.Second
)

// NewRedisClient connects to Redis and verifies the connection with a ping.
// The caller owns the client.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr(), err)
	}
	return client, nil
}
