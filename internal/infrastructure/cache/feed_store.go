package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sourcing/backend/internal/domain/sourcing"
)

// FeedStore keeps feed pages by key
type FeedStore interface {
	// Get returns the cached page and whether it was present
	Get(ctx context.Context, key string) ([]sourcing.SourceListing, bool, error)
	Set(ctx context.Context, key string, listings []sourcing.SourceListing, ttl time.Duration) error
}

// ---------------------------------------------------------------------------
// Redis
// ---------------------------------------------------------------------------

// RedisFeedStore stores feed pages as JSON strings with a TTL
type RedisFeedStore struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisFeedStore creates a store on a shared client. The caller keeps
// ownership of the client.
func NewRedisFeedStore(client *redis.Client, logger *zap.Logger) *RedisFeedStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisFeedStore{client: client, logger: logger.Named("feed_store")}
}

// Get implements FeedStore
func (s *RedisFeedStore) Get(ctx context.Context, key string) ([]sourcing.SourceListing, bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get feed page: %w", err)
	}

	var listings []sourcing.SourceListing
	if err := json.Unmarshal(data, &listings); err != nil {
		s.logger.Warn("Dropping unreadable feed page", zap.String("key", key), zap.Error(err))
		_ = s.client.Del(ctx, key)
		return nil, false, nil
	}
	return listings, true, nil
}

// Set implements FeedStore
func (s *RedisFeedStore) Set(ctx context.Context, key string, listings []sourcing.SourceListing, ttl time.Duration) error {
	data, err := json.Marshal(listings)
	if err != nil {
		return fmt.Errorf("failed to marshal feed page: %w", err)
	}
	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set feed page: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// In memory
// ---------------------------------------------------------------------------

type feedEntry struct {
	listings  []sourcing.SourceListing
	expiresAt time.Time
}

// InMemoryFeedStore keeps feed pages in a map and sweeps expired entries in
// the background. It does not share state across instances.
type InMemoryFeedStore struct {
	mu        sync.RWMutex
	entries   map[string]feedEntry
	now       func() time.Time
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryFeedStore creates a store that sweeps every interval.
// A non-positive interval disables the sweeper.
func NewInMemoryFeedStore(interval time.Duration) *InMemoryFeedStore {
	s := &InMemoryFeedStore{
		entries:  make(map[string]feedEntry),
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
	if interval > 0 {
		s.wg.Add(1)
		go s.cleanupLoop(interval)
	}
	return s
}

// Get implements FeedStore
func (s *InMemoryFeedStore) Get(_ context.Context, key string) ([]sourcing.SourceListing, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	if !ok || !s.now().Before(e.expiresAt) {
		return nil, false, nil
	}
	return slices.Clone(e.listings), true, nil
}

// Set implements FeedStore
func (s *InMemoryFeedStore) Set(_ context.Context, key string, listings []sourcing.SourceListing, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = feedEntry{
		listings:  slices.Clone(listings),
		expiresAt: s.now().Add(ttl),
	}
	return nil
}

// Len returns the number of stored entries, expired ones included
func (s *InMemoryFeedStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Close stops the sweeper. Safe to call multiple times.
func (s *InMemoryFeedStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

func (s *InMemoryFeedStore) cleanupLoop(interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *InMemoryFeedStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, key)
		}
	}
}

var (
	_ FeedStore = (*RedisFeedStore)(nil)
	_ FeedStore = (*InMemoryFeedStore)(nil)
)
