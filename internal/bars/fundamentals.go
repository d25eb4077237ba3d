package bars

import (
	"context"
	"math"
	"time"

	"github.com/wonny/stockpool/internal/contracts"
	"github.com/wonny/stockpool/pkg/logger"
	"github.com/wonny/stockpool/pkg/redis"
)

// CachedFundamentals wraps a FundamentalsSource with the Redis warm
// cache, keyed per (instrument, as-of date). Missing metrics are NaN in
// memory and null on the wire.
type CachedFundamentals struct {
	inner  FundamentalsSource
	warm   *redis.Cache
	logger *logger.Logger
}

// fundamentalsRecord is the warm-cache wire form (NaN is not valid JSON)
type fundamentalsRecord struct {
	PERatio       *float64 `json:"pe_ratio"`
	PBRatio       *float64 `json:"pb_ratio"`
	TurnoverRatio *float64 `json:"turnover_ratio"`
	MarketCap     *float64 `json:"market_cap"`
}

// NewCachedFundamentals creates the caching decorator
func NewCachedFundamentals(inner FundamentalsSource, warm *redis.Cache, log *logger.Logger) *CachedFundamentals {
	return &CachedFundamentals{inner: inner, warm: warm, logger: log}
}

// FetchFundamentals serves from the warm cache when possible
func (c *CachedFundamentals) FetchFundamentals(ctx context.Context, instrument string, asOf time.Time) (contracts.Fundamentals, error) {
	key := redis.FundamentalsKey(instrument, asOf.Format("2006-01-02"))

	var record fundamentalsRecord
	if found, err := c.warm.Get(ctx, key, &record); err == nil && found {
		return record.toFundamentals(), nil
	}

	f, err := c.inner.FetchFundamentals(ctx, instrument, asOf)
	if err != nil {
		return f, err
	}

	if err := c.warm.Set(ctx, key, toRecord(f), redis.TTLDaily); err != nil {
		c.logger.WithError(err).WithField("instrument", instrument).Debug("Failed to warm-cache fundamentals")
	}
	return f, nil
}

func (r fundamentalsRecord) toFundamentals() contracts.Fundamentals {
	return contracts.Fundamentals{
		PERatio:       deref(r.PERatio),
		PBRatio:       deref(r.PBRatio),
		TurnoverRatio: deref(r.TurnoverRatio),
		MarketCap:     deref(r.MarketCap),
	}
}

func toRecord(f contracts.Fundamentals) fundamentalsRecord {
	return fundamentalsRecord{
		PERatio:       toPtr(f.PERatio),
		PBRatio:       toPtr(f.PBRatio),
		TurnoverRatio: toPtr(f.TurnoverRatio),
		MarketCap:     toPtr(f.MarketCap),
	}
}

func toPtr(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}
