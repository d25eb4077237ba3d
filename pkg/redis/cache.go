package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Cache is the JSON warm cache in front of the vendor: bar series and
// fundamentals snapshots survive process restarts here. Disabled Redis
// degrades every operation to a no-op miss.
// ⭐ SSOT: 웜 캐시 헬퍼는 여기서만
type Cache struct {
	client *Client
	prefix string
}

// NewCache creates a cache helper under the given key prefix
func NewCache(client *Client, prefix string) *Cache {
	return &Cache{client: client, prefix: prefix}
}

func (c *Cache) key(key string) string {
	return fmt.Sprintf("%s:cache:%s", c.prefix, key)
}

// Get loads a cached value into dest, reporting whether it was found
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !c.client.Enabled() {
		return false, nil
	}

	data, err := c.client.Redis().Get(ctx, c.key(key)).Bytes()
	if err != nil {
		// 키 없음은 미스일 뿐 오류가 아니다
		return false, nil
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache unmarshal failed: %w", err)
	}
	return true, nil
}

// Set stores a value with the given TTL
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !c.client.Enabled() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal failed: %w", err)
	}
	return c.client.Redis().Set(ctx, c.key(key), data, ttl).Err()
}

// Delete drops a cached value
func (c *Cache) Delete(ctx context.Context, key string) error {
	if !c.client.Enabled() {
		return nil
	}
	return c.client.Redis().Del(ctx, c.key(key)).Err()
}

// TTLDaily covers data that refreshes once per trading day
const TTLDaily = 24 * time.Hour

// BarSeriesKey is the warm cache key for one (instrument, timeframe)
func BarSeriesKey(instrument, timeframe string) string {
	return fmt.Sprintf("bars:%s:%s", instrument, timeframe)
}

// FundamentalsKey is the warm cache key for one valuation snapshot
func FundamentalsKey(instrument string, date string) string {
	return fmt.Sprintf("fundamentals:%s:%s", instrument, date)
}
