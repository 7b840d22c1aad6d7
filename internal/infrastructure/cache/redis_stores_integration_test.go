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
)

func newRedisTestClient(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	require.NoError(t, client.Ping(ctx).Err())
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisStores(t *testing.T) {
	client := newRedisTestClient(t)
	ctx := context.Background()

	t.Run("pass lock excludes a second owner", func(t *testing.T) {
		first := NewRedisPassLock(client, "")
		second := NewRedisPassLock(client, "")

		ok, err := first.Acquire(ctx, "sync:pass:listing", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = second.Acquire(ctx, "sync:pass:listing", time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, second.Release(ctx, "sync:pass:listing"))
		ok, err = second.Acquire(ctx, "sync:pass:listing", time.Minute)
		require.NoError(t, err)
		assert.False(t, ok, "foreign release must not free the lock")

		require.NoError(t, first.Release(ctx, "sync:pass:listing"))
		ok, err = second.Acquire(ctx, "sync:pass:listing", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("nonce is consumed once", func(t *testing.T) {
		store := NewRedisNonceStore(client, "")

		nonce, err := store.Issue(ctx, "admin", time.Minute)
		require.NoError(t, err)

		ok, err := store.Consume(ctx, "admin", nonce)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.Consume(ctx, "admin", nonce)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
