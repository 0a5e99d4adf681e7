package core

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreSetGet(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "nyckel", "värde", 0))

	got, err := m.Get(ctx, "nyckel")
	require.NoError(t, err)
	assert.Equal(t, "värde", got)
}

func TestMemoryStoreMissingKey(t *testing.T) {
	m := NewMemoryStore()

	got, err := m.Get(context.Background(), "saknas")
	require.NoError(t, err)
	assert.Empty(t, got)

	exists, err := m.Exists(context.Background(), "saknas")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMemoryStoreTTLExpiry(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "kort", "liv", 30*time.Millisecond))

	got, err := m.Get(ctx, "kort")
	require.NoError(t, err)
	assert.Equal(t, "liv", got)

	time.Sleep(60 * time.Millisecond)

	got, err = m.Get(ctx, "kort")
	require.NoError(t, err)
	assert.Empty(t, got)

	exists, err := m.Exists(ctx, "kort")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMemoryStoreDelete(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "nyckel", "värde", 0))
	require.NoError(t, m.Delete(ctx, "nyckel"))

	exists, err := m.Exists(ctx, "nyckel")
	require.NoError(t, err)
	assert.False(t, exists)

	// Deleting an absent key is fine
	require.NoError(t, m.Delete(ctx, "saknas"))
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("nyckel-%d", n%5)
			for j := 0; j < 50; j++ {
				_ = m.Set(ctx, key, "värde", time.Minute)
				_, _ = m.Get(ctx, key)
				_, _ = m.Exists(ctx, key)
			}
		}(i)
	}
	wg.Wait()
}
