//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/sourcing/backend/internal/domain/sourcing"
	"github.com/sourcing/backend/internal/infrastructure/config"
)

func newRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "Failed to start Redis container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: Failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client, err := NewRedisClient(ctx, config.RedisConfig{Host: host, Port: port.Int()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedis(t *testing.T) {
	client := newRedisClient(t)
	ctx := context.Background()

	t.Run("feed store round trip and ttl", func(t *testing.T) {
		store := NewRedisFeedStore(client, nil)
		key := FeedKey(sourcing.FeedBestSelling, 10, 1)

		_, ok, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, store.Set(ctx, key, testListings("1", "2"), time.Minute))
		got, ok, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, testListings("1", "2"), got)

		ttl, err := client.TTL(ctx, key).Result()
		require.NoError(t, err)
		assert.InDelta(t, time.Minute.Seconds(), ttl.Seconds(), 2)
	})

	t.Run("feed store drops corrupt entries", func(t *testing.T) {
		store := NewRedisFeedStore(client, nil)
		require.NoError(t, client.Set(ctx, "sourcing:feed:corrupt", "{not json", time.Minute).Err())

		_, ok, err := store.Get(ctx, "sourcing:feed:corrupt")
		require.NoError(t, err)
		assert.False(t, ok)

		exists, err := client.Exists(ctx, "sourcing:feed:corrupt").Result()
		require.NoError(t, err)
		assert.Zero(t, exists)
	})

	t.Run("credential repository", func(t *testing.T) {
		repo := NewRedisCredentialRepository(client)
		require.NoError(t, repo.RevokeAll(ctx))

		_, err := repo.LoadLatest(ctx)
		assert.ErrorIs(t, err, sourcing.ErrNoCredential)

		base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
		first := sourcing.NewCredential("access-1", "refresh-1", "", time.Hour, base)
		first.OwnerID = "seller-a"
		require.NoError(t, repo.Save(ctx, first))

		second := sourcing.NewCredential("access-2", "refresh-2", "", time.Hour, base.Add(time.Minute))
		second.OwnerID = "seller-b"
		require.NoError(t, repo.Save(ctx, second))

		latest, err := repo.LoadLatest(ctx)
		require.NoError(t, err)
		assert.Equal(t, "access-2", latest.AccessToken)

		// overwriting seller-a keeps its identity and makes it the latest
		updated := sourcing.NewCredential("access-3", "refresh-1", "", time.Hour, base.Add(2*time.Minute))
		updated.OwnerID = "seller-a"
		require.NoError(t, repo.Save(ctx, updated))

		latest, err = repo.LoadLatest(ctx)
		require.NoError(t, err)
		assert.Equal(t, "access-3", latest.AccessToken)
		assert.Equal(t, first.ID, latest.ID)
		assert.True(t, latest.CreatedAt.Equal(base))
		assert.True(t, latest.ExpiresAt.Equal(base.Add(2*time.Minute+time.Hour)))

		require.NoError(t, repo.RevokeAll(ctx))
		_, err = repo.LoadLatest(ctx)
		assert.ErrorIs(t, err, sourcing.ErrNoCredential)
	})
}
