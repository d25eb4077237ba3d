package cache

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/stockpool/internal/bars"
	"github.com/wonny/stockpool/internal/contracts"
	"github.com/wonny/stockpool/internal/indicator"
	"github.com/wonny/stockpool/pkg/logger"
)

func day(n int) time.Time {
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func quoteSeries(instrument string, n int) *contracts.BarSeries {
	series := &contracts.BarSeries{Instrument: instrument, Timeframe: "daily", FetchedAt: time.Now()}
	price := 100.0
	for i := 0; i < n; i++ {
		if i%3 == 0 {
			price += 1.2
		} else {
			price -= 0.4
		}
		series.Bars = append(series.Bars, contracts.Bar{
			Timestamp: day(i),
			Open:      price - 0.3,
			High:      price + 1.0,
			Low:       price - 1.0,
			Close:     price,
			Volume:    1_000_000 + float64(i%7)*120_000,
		})
	}
	return series
}

type stubSource struct {
	mu     sync.Mutex
	series map[string]*contracts.BarSeries
	calls  int
}

func (s *stubSource) FetchBars(ctx context.Context, instrument, timeframe string, from, to time.Time) (*contracts.BarSeries, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if series, ok := s.series[instrument]; ok {
		return series, nil
	}
	return nil, contracts.ErrNotFound
}

func newTestCache(t *testing.T, instruments ...string) (*Layered, *stubSource) {
	t.Helper()

	source := &stubSource{series: make(map[string]*contracts.BarSeries)}
	for _, instrument := range instruments {
		source.series[instrument] = quoteSeries(instrument, 120)
	}

	store := bars.NewStore(source, bars.Options{TTL: time.Hour}, logger.Nop())
	engine := indicator.NewEngine(indicator.NewRegistry(), 0, logger.Nop())
	return NewLayered(store, engine, "daily", 8, nil, logger.Nop()), source
}

func TestBasicIdempotence(t *testing.T) {
	cache, _ := newTestCache(t, "000001.XSHE")
	ctx := context.Background()

	first, err := cache.GetOrComputeBasic(ctx, "000001.XSHE", "RSI_14", nil)
	require.NoError(t, err)
	assert.Equal(t, indicator.MethodPrimary, first.Method)

	second, err := cache.GetOrComputeBasic(ctx, "000001.XSHE", "RSI_14", nil)
	require.NoError(t, err)
	assert.Same(t, first, second)

	stats := cache.SnapshotStats()
	assert.Equal(t, 1, stats.Basic.Computations)
	assert.Equal(t, 1, stats.Basic.Hits)
	assert.Equal(t, 1, stats.Basic.Misses)
}

func TestBasicDistinctParamsDistinctEntries(t *testing.T) {
	cache, _ := newTestCache(t, "000001.XSHE")
	ctx := context.Background()

	_, err := cache.GetOrComputeBasic(ctx, "000001.XSHE", "SMA_20", nil)
	require.NoError(t, err)
	_, err = cache.GetOrComputeBasic(ctx, "000001.XSHE", "SMA_20", indicator.Params{"period": 30})
	require.NoError(t, err)

	stats := cache.SnapshotStats()
	assert.Equal(t, 2, stats.Basic.Computations)
	assert.Equal(t, 2, stats.Basic.Entries)
}

func TestCompositeReusesWarmDeps(t *testing.T) {
	cache, _ := newTestCache(t, "000001.XSHE")
	ctx := context.Background()

	// Warm the dependency first
	_, err := cache.GetOrComputeBasic(ctx, "000001.XSHE", "STOCH", nil)
	require.NoError(t, err)
	baseline := cache.SnapshotStats().Basic.Computations

	kdj, err := cache.GetOrComputeComposite(ctx, "000001.XSHE", "KDJ")
	require.NoError(t, err)

	stats := cache.SnapshotStats()
	assert.Equal(t, baseline, stats.Basic.Computations, "warm dep must not recompute")
	assert.Equal(t, 1, stats.Basic.Reused)
	assert.Equal(t, 1, kdj.ReuseCount)

	// J = 3K - 2D at every defined index
	k := kdj.Result.Component("k")
	d := kdj.Result.Component("d")
	j := kdj.Result.Component("j")
	require.NotNil(t, j)
	last := k.Len() - 1
	assert.InDelta(t, 3*k.Values[last]-2*d.Values[last], j.Values[last], 1e-9)
}

func TestCompositeColdDepsCascade(t *testing.T) {
	cache, _ := newTestCache(t, "000001.XSHE")
	ctx := context.Background()

	cross, err := cache.GetOrComputeComposite(ctx, "000001.XSHE", "MA_CROSS")
	require.NoError(t, err)

	stats := cache.SnapshotStats()
	assert.Equal(t, 3, stats.Basic.Computations, "three cold SMA deps")
	assert.Equal(t, 0, stats.Basic.Reused)
	assert.Equal(t, 0, cross.ReuseCount)
	assert.Equal(t, 1, stats.Composite.Computations)
}

func TestCompositeThreeWarmDeps(t *testing.T) {
	cache, _ := newTestCache(t, "000001.XSHE")
	ctx := context.Background()

	for _, name := range []string{"SMA_5", "SMA_10", "SMA_20"} {
		_, err := cache.GetOrComputeBasic(ctx, "000001.XSHE", name, nil)
		require.NoError(t, err)
	}

	cross, err := cache.GetOrComputeComposite(ctx, "000001.XSHE", "MA_CROSS")
	require.NoError(t, err)

	stats := cache.SnapshotStats()
	assert.Equal(t, 3, stats.Basic.Computations)
	assert.Equal(t, 3, stats.Basic.Reused)
	assert.Equal(t, 3, cross.ReuseCount, "composite entry carries its warm dep count")
}

func TestConcurrentCallersCountOneMiss(t *testing.T) {
	cache, _ := newTestCache(t, "000001.XSHE")
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.GetOrComputeBasic(ctx, "000001.XSHE", "RSI_14", nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// A miss is counted only alongside a real computation, so the two
	// counters cannot drift apart under contention
	stats := cache.SnapshotStats()
	assert.Equal(t, stats.Basic.Computations, stats.Basic.Misses)
}

func TestCompositeIdempotence(t *testing.T) {
	cache, _ := newTestCache(t, "000001.XSHE")
	ctx := context.Background()

	first, err := cache.GetOrComputeComposite(ctx, "000001.XSHE", "BOLL_POSITION")
	require.NoError(t, err)
	second, err := cache.GetOrComputeComposite(ctx, "000001.XSHE", "BOLL_POSITION")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, cache.SnapshotStats().Composite.Computations)
}

func TestInvalidateBasicCascadesToDependents(t *testing.T) {
	cache, _ := newTestCache(t, "000001.XSHE")
	ctx := context.Background()

	_, err := cache.GetOrComputeComposite(ctx, "000001.XSHE", "MA_CROSS")
	require.NoError(t, err)
	_, err = cache.GetOrComputeComposite(ctx, "000001.XSHE", "CCI")
	require.NoError(t, err)

	dropped := cache.Invalidate("000001.XSHE", LayerBasic)
	assert.Equal(t, 4, dropped, "three SMA entries plus MA_CROSS")

	stats := cache.SnapshotStats()
	assert.Equal(t, 0, stats.Basic.Entries)
	// CCI has no basic dependencies and survives
	assert.Equal(t, 1, stats.Composite.Entries)
}

func TestInvalidateBarsDropsEverything(t *testing.T) {
	cache, _ := newTestCache(t, "000001.XSHE")
	ctx := context.Background()

	_, err := cache.GetOrComputeBasic(ctx, "000001.XSHE", "RSI_14", nil)
	require.NoError(t, err)
	_, err = cache.GetOrComputeComposite(ctx, "000001.XSHE", "CCI")
	require.NoError(t, err)

	dropped := cache.Invalidate("000001.XSHE", LayerBars)
	assert.Equal(t, 2, dropped)

	stats := cache.SnapshotStats()
	assert.Equal(t, 0, stats.Basic.Entries)
	assert.Equal(t, 0, stats.Composite.Entries)
}

func TestInvalidateIndicatorTargetsDependents(t *testing.T) {
	cache, _ := newTestCache(t, "000001.XSHE")
	ctx := context.Background()

	_, err := cache.GetOrComputeComposite(ctx, "000001.XSHE", "KDJ")
	require.NoError(t, err)
	_, err = cache.GetOrComputeComposite(ctx, "000001.XSHE", "MA_CROSS")
	require.NoError(t, err)

	dropped := cache.InvalidateIndicator("000001.XSHE", "STOCH")
	assert.Equal(t, 2, dropped, "the STOCH entry and the KDJ composite built on it")

	stats := cache.SnapshotStats()
	// MA_CROSS does not depend on STOCH and stays
	assert.Equal(t, 1, stats.Composite.Entries)
}

func TestStaleEntryRecomputed(t *testing.T) {
	cache, source := newTestCache(t, "000001.XSHE")
	ctx := context.Background()

	_, err := cache.GetOrComputeBasic(ctx, "000001.XSHE", "SMA_20", nil)
	require.NoError(t, err)

	// New bar arrives: trailing timestamp moves forward
	source.mu.Lock()
	source.series["000001.XSHE"] = quoteSeries("000001.XSHE", 121)
	source.mu.Unlock()
	require.NoError(t, cache.bars.Put(source.series["000001.XSHE"]))

	refreshed, err := cache.GetOrComputeBasic(ctx, "000001.XSHE", "SMA_20", nil)
	require.NoError(t, err)
	assert.Equal(t, day(120), refreshed.SourceTrailing)
	assert.Equal(t, 2, cache.SnapshotStats().Basic.Computations)
}

func TestSingleflightCollapsesConcurrentRequests(t *testing.T) {
	cache, _ := newTestCache(t, "000001.XSHE")
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.GetOrComputeBasic(ctx, "000001.XSHE", "MACD", nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, cache.SnapshotStats().Basic.Computations)
}

func TestCompositeUnknownName(t *testing.T) {
	cache, _ := newTestCache(t, "000001.XSHE")

	_, err := cache.GetOrComputeComposite(context.Background(), "000001.XSHE", "FIBONACCI")
	require.Error(t, err)
}

func TestBasicDataUnavailablePropagates(t *testing.T) {
	cache, _ := newTestCache(t) // no instruments registered

	_, err := cache.GetOrComputeBasic(context.Background(), "999999.XSHE", "RSI_14", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, contracts.ErrDataUnavailable)
}

func TestWilliamsRTracksStochK(t *testing.T) {
	cache, _ := newTestCache(t, "000001.XSHE")
	ctx := context.Background()

	stoch, err := cache.GetOrComputeBasic(ctx, "000001.XSHE", "STOCH", nil)
	require.NoError(t, err)
	willr, err := cache.GetOrComputeComposite(ctx, "000001.XSHE", "WILLIAMS_R")
	require.NoError(t, err)

	k := stoch.Result.Component("k").LastValid()
	got := willr.Result.Component("willr").LastValid()
	assert.InDelta(t, k-100, got, 1e-9)
	assert.False(t, math.IsNaN(got))
}
