package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// slidingWindowScript admits a request when fewer than limit requests
// landed inside the window, atomically recording the admitted one
var slidingWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local window_ms = tonumber(ARGV[4])

	redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)

	local count = redis.call('ZCARD', key)
	if count < limit then
		redis.call('ZADD', key, now, now)
		redis.call('PEXPIRE', key, window_ms)
		return {1, limit - count - 1}
	end
	return {0, 0}
`)

// RateLimiter is the sliding-window limit shared by every process
// talking to the same vendor account. The local x/time/rate limiter
// smooths bursts; this one enforces the account-wide cap.
// ⭐ SSOT: 공유 레이트 리밋은 여기서만
type RateLimiter struct {
	client *Client
	prefix string
}

// RateLimitConfig names one limited resource and its budget
type RateLimitConfig struct {
	Key    string // resource name (e.g. "vendor", "fundamentals")
	Limit  int    // requests allowed per window
	Window time.Duration
}

// NewRateLimiter creates a rate limiter under the given key prefix
func NewRateLimiter(client *Client, prefix string) *RateLimiter {
	return &RateLimiter{client: client, prefix: prefix}
}

// Allow reports whether a request fits the budget right now, plus how
// many slots remain in the window. Disabled Redis admits everything.
func (r *RateLimiter) Allow(ctx context.Context, cfg RateLimitConfig) (bool, int, error) {
	if !r.client.Enabled() {
		return true, cfg.Limit, nil
	}

	key := fmt.Sprintf("%s:ratelimit:%s", r.prefix, cfg.Key)
	now := time.Now().UnixMilli()
	windowStart := now - cfg.Window.Milliseconds()

	result, err := slidingWindowScript.Run(ctx, r.client.Redis(), []string{key},
		now,
		windowStart,
		cfg.Limit,
		cfg.Window.Milliseconds(),
	).Slice()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit script failed: %w", err)
	}

	allowed := result[0].(int64) == 1
	remaining := int(result[1].(int64))
	return allowed, remaining, nil
}

// Wait blocks until a slot opens or the context is cancelled
func (r *RateLimiter) Wait(ctx context.Context, cfg RateLimitConfig) error {
	for {
		allowed, _, err := r.Allow(ctx, cfg)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// Budgets for the external endpoints this backend calls
var (
	// 바 데이터 벤더: 초당 20회 제한 (보수적)
	VendorRateLimit = RateLimitConfig{
		Key:    "vendor",
		Limit:  20,
		Window: time.Second,
	}

	// 펀더멘털 벤더: 분당 100회 제한
	FundamentalsRateLimit = RateLimitConfig{
		Key:    "fundamentals",
		Limit:  100,
		Window: time.Minute,
	}
)
