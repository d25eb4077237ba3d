package bars

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/stockpool/internal/contracts"
	"github.com/wonny/stockpool/pkg/logger"
)

func day(n int) time.Time {
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func testSeries(instrument string, n int) *contracts.BarSeries {
	series := &contracts.BarSeries{
		Instrument: instrument,
		Timeframe:  "daily",
		FetchedAt:  time.Now(),
	}
	for i := 0; i < n; i++ {
		price := 10.0 + float64(i)*0.1
		series.Bars = append(series.Bars, contracts.Bar{
			Timestamp: day(i),
			Open:      price,
			High:      price + 0.5,
			Low:       price - 0.5,
			Close:     price + 0.2,
			Volume:    1_000_000,
		})
	}
	return series
}

// fakeSource replays canned responses and counts calls
type fakeSource struct {
	series map[string]*contracts.BarSeries
	err    error
	calls  int
}

func (f *fakeSource) FetchBars(ctx context.Context, instrument, timeframe string, from, to time.Time) (*contracts.BarSeries, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	series, ok := f.series[instrument]
	if !ok {
		return nil, contracts.ErrNotFound
	}
	return series, nil
}

func TestStoreGetFetchesOnce(t *testing.T) {
	source := &fakeSource{series: map[string]*contracts.BarSeries{
		"000001.XSHE": testSeries("000001.XSHE", 30),
	}}
	store := NewStore(source, Options{TTL: time.Hour}, logger.Nop())

	first, err := store.Get(context.Background(), "000001.XSHE", "daily")
	require.NoError(t, err)
	assert.Equal(t, 30, first.Len())

	// Fresh series is served from memory, no second vendor call
	second, err := store.Get(context.Background(), "000001.XSHE", "daily")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, source.calls)
}

func TestStoreGetUnknownInstrument(t *testing.T) {
	source := &fakeSource{series: map[string]*contracts.BarSeries{}}
	store := NewStore(source, Options{}, logger.Nop())

	_, err := store.Get(context.Background(), "999999.XSHE", "daily")
	require.Error(t, err)
	assert.ErrorIs(t, err, contracts.ErrDataUnavailable)
}

func TestStoreGetVendorDown(t *testing.T) {
	source := &fakeSource{err: contracts.ErrTransient}
	store := NewStore(source, Options{}, logger.Nop())

	_, err := store.Get(context.Background(), "000001.XSHE", "daily")
	require.Error(t, err)
	assert.ErrorIs(t, err, contracts.ErrTransient)
}

func TestStoreTTLExpiryRefetches(t *testing.T) {
	source := &fakeSource{series: map[string]*contracts.BarSeries{
		"000001.XSHE": testSeries("000001.XSHE", 30),
	}}
	store := NewStore(source, Options{TTL: time.Nanosecond}, logger.Nop())

	_, err := store.Get(context.Background(), "000001.XSHE", "daily")
	require.NoError(t, err)

	time.Sleep(time.Millisecond)

	_, err = store.Get(context.Background(), "000001.XSHE", "daily")
	require.NoError(t, err)
	assert.Equal(t, 2, source.calls)
}

func TestStorePutRejectsUnorderedBars(t *testing.T) {
	store := NewStore(&fakeSource{}, Options{}, logger.Nop())

	series := testSeries("000001.XSHE", 5)
	series.Bars[2].Timestamp = series.Bars[4].Timestamp // 순서 깨뜨림

	err := store.Put(series)
	require.Error(t, err)
	assert.ErrorIs(t, err, contracts.ErrUnorderedBars)
	assert.Equal(t, 0, store.Count())
}

func TestStorePeekAndEvict(t *testing.T) {
	store := NewStore(&fakeSource{}, Options{}, logger.Nop())

	require.NoError(t, store.Put(testSeries("000001.XSHE", 10)))

	assert.NotNil(t, store.Peek("000001.XSHE", "daily"))
	assert.Nil(t, store.Peek("000001.XSHE", "weekly"))

	store.Evict("000001.XSHE", "daily")
	assert.Nil(t, store.Peek("000001.XSHE", "daily"))
	assert.Equal(t, 0, store.Count())
}

func TestStoreTrailingTimestamp(t *testing.T) {
	store := NewStore(&fakeSource{}, Options{}, logger.Nop())

	assert.True(t, store.TrailingTimestamp("000001.XSHE", "daily").IsZero())

	require.NoError(t, store.Put(testSeries("000001.XSHE", 10)))
	assert.Equal(t, day(9), store.TrailingTimestamp("000001.XSHE", "daily"))
}

func TestClassifyStatus(t *testing.T) {
	assert.NoError(t, classifyStatus(200, "000001.XSHE"))
	assert.ErrorIs(t, classifyStatus(404, "000001.XSHE"), contracts.ErrNotFound)
	assert.ErrorIs(t, classifyStatus(429, "000001.XSHE"), contracts.ErrRateLimited)
	assert.ErrorIs(t, classifyStatus(503, "000001.XSHE"), contracts.ErrTransient)

	err := classifyStatus(400, "000001.XSHE")
	require.Error(t, err)
	assert.False(t, errors.Is(err, contracts.ErrTransient))
}
