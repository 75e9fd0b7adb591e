package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fjod/go_cart/cart-service/internal/domain"
)

func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisCache(client), mr
}

func testSnapshot(userID string) domain.Snapshot {
	return domain.Snapshot{
		ID:     "cart-1",
		UserID: userID,
		Status: domain.StatusActive,
		Items: []domain.SnapshotItem{
			{UUID: "a", ProductID: 1, Qty: 2, LineTotal: decimal.RequireFromString("200.00")},
			{UUID: "b", ProductID: 2, Qty: 3, LineTotal: decimal.RequireFromString("30.00")},
		},
		GrandTotal: decimal.RequireFromString("253.00"),
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
}

func TestGet_Success(t *testing.T) {
	cache, mr := setupTestRedis(t)
	userID := "user123"

	data, err := json.Marshal(testSnapshot(userID))
	require.NoError(t, err)
	require.NoError(t, mr.Set(cacheKey(userID), string(data)))

	result, err := cache.Get(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, userID, result.UserID)
	assert.Len(t, result.Items, 2)
	assert.Equal(t, int64(1), result.Items[0].ProductID)
	assert.True(t, decimal.RequireFromString("253").Equal(result.GrandTotal))
}

func TestGet_CacheMiss(t *testing.T) {
	cache, _ := setupTestRedis(t)

	result, err := cache.Get(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Nil(t, result)
}

func TestGet_InvalidJSON(t *testing.T) {
	cache, mr := setupTestRedis(t)
	userID := "user123"

	data, err := json.Marshal(testSnapshot(userID))
	require.NoError(t, err)
	require.NoError(t, mr.Set(cacheKey(userID), string(data[:10])))

	_, err = cache.Get(context.Background(), userID)
	require.ErrorContains(t, err, "unmarshal cart failed")
}

func TestGet_RedisDown(t *testing.T) {
	cache, mr := setupTestRedis(t)
	mr.Close()

	_, err := cache.Get(context.Background(), "user123")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}

func TestSet_Success(t *testing.T) {
	cache, mr := setupTestRedis(t)
	userID := "user456"

	require.NoError(t, cache.Set(context.Background(), userID, testSnapshot(userID)))

	stored, err := mr.Get(cacheKey(userID))
	require.NoError(t, err)

	var snap domain.Snapshot
	require.NoError(t, json.Unmarshal([]byte(stored), &snap))
	assert.Equal(t, userID, snap.UserID)
	assert.Len(t, snap.Items, 2)
}

func TestSet_WithTTL(t *testing.T) {
	cache, mr := setupTestRedis(t)
	userID := "user789"

	require.NoError(t, cache.Set(context.Background(), userID, domain.Snapshot{UserID: userID}))

	ttl := mr.TTL(cacheKey(userID))
	assert.GreaterOrEqual(t, ttl, defaultTTL, "TTL should be at least base TTL")
	assert.Less(t, ttl, defaultTTL+maxJitter*time.Minute, "TTL should be below base + max jitter")
}

func TestSet_ExpiresAfterTTL(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "user1", testSnapshot("user1")))
	mr.FastForward(defaultTTL + maxJitter*time.Minute)

	_, err := cache.Get(ctx, "user1")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestDelete_Success(t *testing.T) {
	cache, mr := setupTestRedis(t)
	userID := "user999"

	require.NoError(t, mr.Set(cacheKey(userID), `{"user_id":"user999"}`))
	assert.True(t, mr.Exists(cacheKey(userID)))

	require.NoError(t, cache.Delete(context.Background(), userID))

	assert.False(t, mr.Exists(cacheKey(userID)))
}

func TestDelete_NonExistentKey(t *testing.T) {
	cache, _ := setupTestRedis(t)

	assert.NoError(t, cache.Delete(context.Background(), "nonexistent"))
}

func TestCacheKey_Format(t *testing.T) {
	assert.Equal(t, "cart:test123", cacheKey("test123"))
}
