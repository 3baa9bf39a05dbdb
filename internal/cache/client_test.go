package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryClient_SetGet(t *testing.T) {
	client := NewMemoryClient(100)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "k1", []byte("v1"), time.Minute))

	value, err := client.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), value)
}

func TestMemoryClient_Miss(t *testing.T) {
	client := NewMemoryClient(100)

	_, err := client.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryClient_Expiry(t *testing.T) {
	client := NewMemoryClient(100)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "k1", []byte("v1"), -time.Second))

	_, err := client.Get(ctx, "k1")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryClient_Delete(t *testing.T) {
	client := NewMemoryClient(100)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "k1", []byte("v1"), time.Minute))
	require.NoError(t, client.Delete(ctx, "k1"))

	_, err := client.Get(ctx, "k1")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryClient_EvictsAtCapacity(t *testing.T) {
	client := NewMemoryClient(3)
	ctx := context.Background()

	// The first entry expires soonest and should be evicted.
	require.NoError(t, client.Set(ctx, "old", []byte("v"), time.Second))
	require.NoError(t, client.Set(ctx, "mid", []byte("v"), time.Minute))
	require.NoError(t, client.Set(ctx, "new", []byte("v"), time.Hour))
	require.NoError(t, client.Set(ctx, "extra", []byte("v"), time.Hour))

	_, err := client.Get(ctx, "old")
	assert.ErrorIs(t, err, ErrCacheMiss)

	_, err = client.Get(ctx, "new")
	assert.NoError(t, err)
}

func TestMemoryClient_Overwrite(t *testing.T) {
	client := NewMemoryClient(100)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "k1", []byte("v1"), time.Minute))
	require.NoError(t, client.Set(ctx, "k1", []byte("v2"), time.Minute))

	value, err := client.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), value)
}

func TestMemoryClient_ConcurrentAccess(t *testing.T) {
	client := NewMemoryClient(1000)
	ctx := context.Background()

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func(n int) {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("k%d-%d", n, j)
				_ = client.Set(ctx, key, []byte("v"), time.Minute)
				_, _ = client.Get(ctx, key)
			}
		}(i)
	}
	for i := 0; i < 10; i++ {
		<-done
	}
}

func TestTenantKey(t *testing.T) {
	assert.Equal(t, "t:abc:context", TenantKey("abc", "context"))
	assert.Equal(t, "t:abc", TenantKey("abc"))
	assert.Equal(t, "t:abc:a:b", TenantKey("abc", "a", "b"))
}
