package cache

import (
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const memorySweepInterval = 5 * time.Minute

// NewFeedStore returns a Redis store when a client is available and an
// in-memory store otherwise. The second return value releases the store.
func NewFeedStore(client *redis.Client, logger *zap.Logger) (FeedStore, func() error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if client != nil {
		logger.Info("Using Redis feed cache")
		return NewRedisFeedStore(client, logger), func() error { return nil }
	}

	logger.Warn("Redis disabled, feed cache is local to this instance")
	store := NewInMemoryFeedStore(memorySweepInterval)
	return store, store.Close
}
