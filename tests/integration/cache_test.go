package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsloom/assistant-engine/internal/cache"
)

func TestRedisCache(t *testing.T) {
	skipUnlessIntegration(t)

	setup := SetupTestContainers(t)
	defer setup.Cleanup()

	client, err := cache.NewRedisClient(cache.RedisConfig{
		Addr: setup.RedisAddr,
	})
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()

	t.Run("set and get", func(t *testing.T) {
		key := cache.TenantKey("tenant-1", "context")
		require.NoError(t, client.Set(ctx, key, []byte(`{"articles":[]}`), time.Minute))

		value, err := client.Get(ctx, key)
		require.NoError(t, err)
		assert.JSONEq(t, `{"articles":[]}`, string(value))
	})

	t.Run("miss returns sentinel", func(t *testing.T) {
		_, err := client.Get(ctx, cache.TenantKey("tenant-1", "absent"))
		assert.ErrorIs(t, err, cache.ErrCacheMiss)
	})

	t.Run("delete removes entry", func(t *testing.T) {
		key := cache.TenantKey("tenant-2", "context")
		require.NoError(t, client.Set(ctx, key, []byte("x"), time.Minute))
		require.NoError(t, client.Delete(ctx, key))

		_, err := client.Get(ctx, key)
		assert.ErrorIs(t, err, cache.ErrCacheMiss)
	})

	t.Run("ttl expires entries", func(t *testing.T) {
		key := cache.TenantKey("tenant-3", "context")
		require.NoError(t, client.Set(ctx, key, []byte("x"), time.Second))

		require.Eventually(t, func() bool {
			_, err := client.Get(ctx, key)
			return err == cache.ErrCacheMiss
		}, 5*time.Second, 250*time.Millisecond)
	})

	t.Run("tenants do not collide", func(t *testing.T) {
		keyA := cache.TenantKey("tenant-a", "context")
		keyB := cache.TenantKey("tenant-b", "context")
		require.NoError(t, client.Set(ctx, keyA, []byte("a"), time.Minute))
		require.NoError(t, client.Set(ctx, keyB, []byte("b"), time.Minute))

		value, err := client.Get(ctx, keyA)
		require.NoError(t, err)
		assert.Equal(t, []byte("a"), value)
	})
}
