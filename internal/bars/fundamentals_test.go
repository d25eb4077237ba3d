package bars

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/stockpool/internal/contracts"
	"github.com/wonny/stockpool/pkg/config"
	"github.com/wonny/stockpool/pkg/logger"
	"github.com/wonny/stockpool/pkg/redis"
)

type countingFundamentals struct {
	calls int
	data  contracts.Fundamentals
}

func (c *countingFundamentals) FetchFundamentals(ctx context.Context, instrument string, asOf time.Time) (contracts.Fundamentals, error) {
	c.calls++
	return c.data, nil
}

func disabledWarmCache(t *testing.T) *redis.Cache {
	t.Helper()
	cfg := &config.Config{}
	client, err := redis.New(cfg)
	require.NoError(t, err)
	return redis.NewCache(client, "test")
}

func TestCachedFundamentalsPassThroughWhenDisabled(t *testing.T) {
	inner := &countingFundamentals{data: contracts.Fundamentals{PERatio: 12, PBRatio: 1.4, TurnoverRatio: 3, MarketCap: 400e8}}
	cached := NewCachedFundamentals(inner, disabledWarmCache(t), logger.Nop())

	asOf := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)

	f, err := cached.FetchFundamentals(context.Background(), "000001.XSHE", asOf)
	require.NoError(t, err)
	assert.InDelta(t, 12.0, f.PERatio, 1e-9)

	// Disabled Redis never serves a hit; every call reaches the vendor
	_, err = cached.FetchFundamentals(context.Background(), "000001.XSHE", asOf)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestFundamentalsRecordRoundTrip(t *testing.T) {
	f := contracts.Fundamentals{PERatio: 15.5, PBRatio: math.NaN(), TurnoverRatio: 2.2, MarketCap: math.NaN()}

	record := toRecord(f)
	require.NotNil(t, record.PERatio)
	assert.Nil(t, record.PBRatio)
	assert.Nil(t, record.MarketCap)

	back := record.toFundamentals()
	assert.InDelta(t, 15.5, back.PERatio, 1e-9)
	assert.True(t, math.IsNaN(back.PBRatio))
	assert.InDelta(t, 2.2, back.TurnoverRatio, 1e-9)
	assert.True(t, math.IsNaN(back.MarketCap))
}
