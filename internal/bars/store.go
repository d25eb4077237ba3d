package bars

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wonny/stockpool/internal/contracts"
	"github.com/wonny/stockpool/pkg/logger"
	"github.com/wonny/stockpool/pkg/redis"
)

// Store holds raw bar series per (instrument, timeframe), Layer 1 of
// the derivation cache. Series are replaced wholesale on refresh, never
// patched in place.
// ⭐ SSOT: 원시 봉 데이터 보관은 여기서만
type Store struct {
	mu     sync.RWMutex
	series map[seriesKey]*storedSeries

	source Source
	repo   *Repository  // optional durable copy
	warm   *redis.Cache // optional cross-process warm cache

	ttl       time.Duration
	warmTTL   time.Duration
	lookback  int
	fetchWait time.Duration
	logger    *logger.Logger
}

type seriesKey struct {
	instrument string
	timeframe  string
}

type storedSeries struct {
	series    *contracts.BarSeries
	fetchedAt time.Time
}

// Options configures optional Store collaborators
type Options struct {
	Repo      *Repository
	Warm      *redis.Cache
	TTL       time.Duration
	WarmTTL   time.Duration
	Lookback  int           // bars fetched per refresh
	FetchWait time.Duration // per-fetch vendor timeout, 0 disables
}

// NewStore creates a bar store backed by the given vendor source
func NewStore(source Source, opts Options, log *logger.Logger) *Store {
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	if opts.Lookback <= 0 {
		opts.Lookback = 250
	}
	return &Store{
		series:    make(map[seriesKey]*storedSeries),
		source:    source,
		repo:      opts.Repo,
		warm:      opts.Warm,
		ttl:       opts.TTL,
		warmTTL:   opts.WarmTTL,
		lookback:  opts.Lookback,
		fetchWait: opts.FetchWait,
		logger:    log,
	}
}

// Get returns the bar series for (instrument, timeframe), fetching from
// the vendor when absent or expired. Returns ErrDataUnavailable when the
// vendor has nothing for the instrument.
func (s *Store) Get(ctx context.Context, instrument, timeframe string) (*contracts.BarSeries, error) {
	key := seriesKey{instrument, timeframe}

	s.mu.RLock()
	stored, ok := s.series[key]
	s.mu.RUnlock()

	if ok && time.Since(stored.fetchedAt) < s.ttl {
		return stored.series, nil
	}

	return s.refresh(ctx, key)
}

// Peek returns the cached series without fetching; nil when absent.
func (s *Store) Peek(instrument, timeframe string) *contracts.BarSeries {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if stored, ok := s.series[seriesKey{instrument, timeframe}]; ok {
		return stored.series
	}
	return nil
}

// TrailingTimestamp returns the newest bar timestamp currently held for
// the key, or the zero time. Used by staleness checks on Layer 2/3.
func (s *Store) TrailingTimestamp(instrument, timeframe string) time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if stored, ok := s.series[seriesKey{instrument, timeframe}]; ok {
		return stored.series.TrailingTimestamp()
	}
	return time.Time{}
}

// Put replaces the stored series wholesale. The series must satisfy the
// ordering invariant.
func (s *Store) Put(series *contracts.BarSeries) error {
	if err := series.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.series[seriesKey{series.Instrument, series.Timeframe}] = &storedSeries{
		series:    series,
		fetchedAt: time.Now(),
	}
	return nil
}

// Evict drops the cached series for one key, including its warm copy
func (s *Store) Evict(instrument, timeframe string) {
	s.mu.Lock()
	delete(s.series, seriesKey{instrument, timeframe})
	s.mu.Unlock()

	if s.warm != nil {
		if err := s.warm.Delete(context.Background(), redis.BarSeriesKey(instrument, timeframe)); err != nil {
			s.logger.WithError(err).WithField("instrument", instrument).Debug("Failed to drop warm-cached bar series")
		}
	}
}

// Clear drops every cached series
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.series = make(map[seriesKey]*storedSeries)
}

// Count returns the number of cached series
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.series)
}

// refresh fetches a fresh series and replaces the stored copy.
// 벤더 호출 중에는 락을 잡지 않는다
func (s *Store) refresh(ctx context.Context, key seriesKey) (*contracts.BarSeries, error) {
	// Cross-process warm cache first
	if s.warm != nil {
		var cached contracts.BarSeries
		found, err := s.warm.Get(ctx, redis.BarSeriesKey(key.instrument, key.timeframe), &cached)
		if err == nil && found && len(cached.Bars) > 0 && time.Since(cached.FetchedAt) < s.ttl {
			_ = s.Put(&cached)
			return &cached, nil
		}
	}

	to := time.Now()
	from := to.AddDate(0, 0, -s.lookback*2) // 휴장일 여유분 포함

	fetchCtx := ctx
	if s.fetchWait > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, s.fetchWait)
		defer cancel()
	}

	series, err := s.source.FetchBars(fetchCtx, key.instrument, key.timeframe, from, to)
	if err != nil {
		if errors.Is(err, contracts.ErrNotFound) {
			return nil, fmt.Errorf("instrument %s/%s: %w", key.instrument, key.timeframe, contracts.ErrDataUnavailable)
		}
		// Vendor down: fall back to the durable copy when present
		if s.repo != nil {
			restored, repoErr := s.repo.LoadSeries(ctx, key.instrument, key.timeframe, from, to)
			if repoErr == nil && restored.Len() > 0 {
				s.logger.WithFields(map[string]interface{}{
					"instrument": key.instrument,
					"timeframe":  key.timeframe,
					"bars":       restored.Len(),
				}).Warn("Vendor fetch failed, serving bars from repository")
				_ = s.Put(restored)
				return restored, nil
			}
		}
		return nil, fmt.Errorf("fetch bars %s/%s: %w", key.instrument, key.timeframe, err)
	}

	if series.Len() == 0 {
		return nil, fmt.Errorf("instrument %s/%s: %w", key.instrument, key.timeframe, contracts.ErrDataUnavailable)
	}

	series.FetchedAt = time.Now()
	if err := s.Put(series); err != nil {
		return nil, err
	}

	if s.repo != nil {
		if err := s.repo.SaveSeries(ctx, series); err != nil {
			s.logger.WithError(err).WithField("instrument", key.instrument).Warn("Failed to persist bar series")
		}
	}
	if s.warm != nil {
		if err := s.warm.Set(ctx, redis.BarSeriesKey(key.instrument, key.timeframe), series, s.warmTTL); err != nil {
			s.logger.WithError(err).WithField("instrument", key.instrument).Debug("Failed to warm-cache bar series")
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"instrument": key.instrument,
		"timeframe":  key.timeframe,
		"bars":       series.Len(),
	}).Debug("Bar series refreshed")

	return series, nil
}
