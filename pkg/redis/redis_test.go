package redis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/stockpool/pkg/config"
)

func disabledClient(t *testing.T) *Client {
	t.Helper()

	client, err := New(&config.Config{Redis: config.RedisConfig{Enabled: false}})
	require.NoError(t, err)
	return client
}

func TestNewClientDisabled(t *testing.T) {
	client := disabledClient(t)

	assert.False(t, client.Enabled())
	assert.NoError(t, client.Close())
}

func TestRateLimiterDisabledAdmitsEverything(t *testing.T) {
	limiter := NewRateLimiter(disabledClient(t), "stockpool")

	allowed, remaining, err := limiter.Allow(context.Background(), VendorRateLimit)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, VendorRateLimit.Limit, remaining)
}

func TestRateLimiterDisabledWaitReturnsImmediately(t *testing.T) {
	limiter := NewRateLimiter(disabledClient(t), "stockpool")

	assert.NoError(t, limiter.Wait(context.Background(), FundamentalsRateLimit))
}

func TestCacheDisabledIsPassThrough(t *testing.T) {
	cache := NewCache(disabledClient(t), "stockpool")
	ctx := context.Background()

	var cached string
	found, err := cache.Get(ctx, BarSeriesKey("000001.XSHE", "daily"), &cached)
	require.NoError(t, err)
	assert.False(t, found)

	assert.NoError(t, cache.Set(ctx, BarSeriesKey("000001.XSHE", "daily"), "ignored", TTLDaily))
	assert.NoError(t, cache.Delete(ctx, BarSeriesKey("000001.XSHE", "daily")))
}

func TestCacheKeys(t *testing.T) {
	assert.Equal(t, "bars:000001.XSHE:daily", BarSeriesKey("000001.XSHE", "daily"))
	assert.Equal(t, "fundamentals:600519.XSHG:2026-08-31", FundamentalsKey("600519.XSHG", "2026-08-31"))
}
