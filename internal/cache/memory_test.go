package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_SetGetRoundtrip(t *testing.T) {
	c := NewMemoryCache(4)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))

	val, found, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("v"), val)
}

func TestMemory_GetMissing(t *testing.T) {
	c := NewMemoryCache(4)

	_, found, err := c.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemory_Expiry(t *testing.T) {
	c := NewMemoryCache(4)
	ctx := context.Background()

	now := time.Now()
	c.now = func() time.Time { return now }
	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))

	now = now.Add(2 * time.Minute)
	_, found, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemory_CapacityEvictsOldest(t *testing.T) {
	c := NewMemoryCache(2)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), 0))
	require.NoError(t, c.Set(ctx, "c", []byte("3"), 0))

	_, found, _ := c.Get(ctx, "a")
	assert.False(t, found, "oldest entry should have been evicted")
	_, found, _ = c.Get(ctx, "b")
	assert.True(t, found)
	_, found, _ = c.Get(ctx, "c")
	assert.True(t, found)
}

func TestMemory_Delete(t *testing.T) {
	c := NewMemoryCache(4)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	require.NoError(t, c.Delete(ctx, "k"))

	_, found, _ := c.Get(ctx, "k")
	assert.False(t, found)
}

func TestMemory_IncrWithExpiry(t *testing.T) {
	c := NewMemoryCache(4)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := c.IncrWithExpiry(ctx, "counter", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestMemory_IncrResetsAfterExpiry(t *testing.T) {
	c := NewMemoryCache(4)
	ctx := context.Background()

	now := time.Now()
	c.now = func() time.Time { return now }

	_, err := c.IncrWithExpiry(ctx, "counter", time.Minute)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	got, err := c.IncrWithExpiry(ctx, "counter", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)
}

func TestFolderListKey_SameBucketSameKey(t *testing.T) {
	base := time.Date(2024, 10, 9, 12, 0, 1, 0, time.UTC)

	k1 := FolderListKey("/bacteria", base)
	k2 := FolderListKey("/bacteria", base.Add(time.Minute))
	k3 := FolderListKey("/bacteria", base.Add(10*time.Minute))

	assert.Equal(t, k1, k2, "keys within one 5-minute bucket must collide")
	assert.NotEqual(t, k1, k3, "keys across buckets must differ")
}

func TestFolderListKey_DifferentPaths(t *testing.T) {
	now := time.Now()
	assert.NotEqual(t, FolderListKey("/a", now), FolderListKey("/b", now))
}
