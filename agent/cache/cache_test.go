package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCacheKey_IgnoresKeyOrderingAndUnstableFields(t *testing.T) {
	t.Parallel()

	a := map[string]any{"query": "故宫", "limit": 20, "request_id": "req-1", "timestamp": "t0"}
	b := map[string]any{"request_id": "req-2", "timestamp": "t1", "limit": 20, "query": "故宫"}

	assert.Equal(t, GenerateCacheKey("places.resolve_entities", a, ""), GenerateCacheKey("places.resolve_entities", b, ""))
}

func TestGenerateCacheKey_DiffersOnSemanticInput(t *testing.T) {
	t.Parallel()

	a := map[string]any{"query": "故宫", "limit": 20}
	b := map[string]any{"query": "天坛", "limit": 20}

	assert.NotEqual(t, GenerateCacheKey("places.resolve_entities", a, ""), GenerateCacheKey("places.resolve_entities", b, ""))
}

func TestGenerateCacheKey_CustomTemplateSubstitutes(t *testing.T) {
	t.Parallel()

	key := GenerateCacheKey("places.get_poi_facts", map[string]any{"poi_ids": "a,b"}, "poi_facts:{poi_ids}")
	assert.Equal(t, "poi_facts:a,b", key)
}

func TestMemCache_SetGetRoundtrips(t *testing.T) {
	t.Parallel()

	c := NewMemCache(DefaultCapacity)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k1", map[string]any{"nodes": 3}, time.Minute))

	got, ok := c.Get(ctx, "k1")
	require.True(t, ok)
	assert.Equal(t, 3, got["nodes"])
}

func TestMemCache_GetMutationDoesNotAliasStoredValue(t *testing.T) {
	t.Parallel()

	c := NewMemCache(DefaultCapacity)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k1", map[string]any{"nodes": 3}, time.Minute))

	got, _ := c.Get(ctx, "k1")
	got["nodes"] = 999

	again, _ := c.Get(ctx, "k1")
	assert.Equal(t, 3, again["nodes"])
}

func TestMemCache_ExpiredEntryIsEvictedOnGet(t *testing.T) {
	t.Parallel()

	c := NewMemCache(DefaultCapacity)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k1", map[string]any{"nodes": 3}, time.Millisecond))

	time.Sleep(5 * time.Millisecond)
	_, ok := c.Get(ctx, "k1")
	assert.False(t, ok)
}

func TestMemCache_EvictsOldestWhenOverCapacity(t *testing.T) {
	t.Parallel()

	c := NewMemCache(2)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k1", map[string]any{"v": 1}, time.Minute))
	time.Sleep(time.Millisecond)
	require.NoError(t, c.Set(ctx, "k2", map[string]any{"v": 2}, time.Minute))
	time.Sleep(time.Millisecond)
	require.NoError(t, c.Set(ctx, "k3", map[string]any{"v": 3}, time.Minute))

	_, ok := c.Get(ctx, "k1")
	assert.False(t, ok, "oldest entry should have been evicted")
	_, ok = c.Get(ctx, "k3")
	assert.True(t, ok)
}

func TestMemCache_DeleteByPatternRemovesMatchingKeys(t *testing.T) {
	t.Parallel()

	c := NewMemCache(DefaultCapacity)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "places.resolve_entities:abc", map[string]any{}, time.Minute))
	require.NoError(t, c.Set(ctx, "transport.build_time_matrix:xyz", map[string]any{}, time.Minute))

	require.NoError(t, c.DeleteByPattern(ctx, "places."))

	_, ok := c.Get(ctx, "places.resolve_entities:abc")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "transport.build_time_matrix:xyz")
	assert.True(t, ok)
}
