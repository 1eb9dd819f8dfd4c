package cache

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sourcing/backend/internal/domain/sourcing"
)

// FeedFetcher fetches one feed page. It returns an empty slice on failure and
// an error only for credential failures.
type FeedFetcher interface {
	FetchFeed(ctx context.Context, feed sourcing.FeedName, count, page int) ([]sourcing.SourceListing, error)
}

// FeedCache serves feed pages from a store and fetches on a miss. Empty pages
// are never stored because they are how a failed feed call looks.
type FeedCache struct {
	next   FeedFetcher
	store  FeedStore
	ttl    time.Duration
	group  singleflight.Group
	logger *zap.Logger
}

// NewFeedCache wraps next with a store-backed cache
func NewFeedCache(next FeedFetcher, store FeedStore, ttl time.Duration, logger *zap.Logger) *FeedCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedCache{
		next:   next,
		store:  store,
		ttl:    ttl,
		logger: logger.Named("feed_cache"),
	}
}

// FeedKey is the store key of one feed page
func FeedKey(feed sourcing.FeedName, count, page int) string {
	return fmt.Sprintf("%sfeed:%s:%d:%d", keyPrefix, feed, count, page)
}

// FetchFeed implements FeedFetcher. Store errors degrade to a direct fetch.
func (c *FeedCache) FetchFeed(ctx context.Context, feed sourcing.FeedName, count, page int) ([]sourcing.SourceListing, error) {
	key := FeedKey(feed, count, page)

	if listings, ok := c.lookup(ctx, key); ok {
		return listings, nil
	}

	// Concurrent misses for the same page share one upstream call. The call
	// outlives a cancelled leader so that waiting callers still get the page.
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		listings, err := c.next.FetchFeed(shared, feed, count, page)
		if err != nil {
			return nil, err
		}
		if len(listings) > 0 {
			if err := c.store.Set(shared, key, listings, c.ttl); err != nil {
				c.logger.Warn("Failed to cache feed page", zap.String("key", key), zap.Error(err))
			}
		}
		return listings, nil
	})

	select {
	case <-ctx.Done():
		return []sourcing.SourceListing{}, nil
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]sourcing.SourceListing), nil
	}
}

func (c *FeedCache) lookup(ctx context.Context, key string) ([]sourcing.SourceListing, bool) {
	listings, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("Feed cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if ok {
		c.logger.Debug("Feed cache hit", zap.String("key", key), zap.Int("listings", len(listings)))
	}
	return listings, ok
}
