package indicator

import (
	"math"
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

// walkSeries builds a deterministic pseudo-random walk
func walkSeries(n int) *contracts.BarSeries {
	series := &contracts.BarSeries{Instrument: "000001.XSHE", Timeframe: "daily"}

	price := 100.0
	seed := uint64(42)
	for i := 0; i < n; i++ {
		seed = seed*6364136223846793005 + 1442695040888963407
		step := float64(seed%2001)/1000.0 - 1.0 // [-1, 1]
		price += step
		if price < 1 {
			price = 1
		}
		series.Bars = append(series.Bars, contracts.Bar{
			Timestamp: day(i),
			Open:      price - 0.2,
			High:      price + 0.8,
			Low:       price - 0.8,
			Close:     price,
			Volume:    1_000_000 + float64(seed%500_000),
		})
	}
	return series
}

// risingSeries has closes increasing by exactly 1.0 per bar
func risingSeries(n int) *contracts.BarSeries {
	series := &contracts.BarSeries{Instrument: "000001.XSHE", Timeframe: "daily"}
	for i := 0; i < n; i++ {
		price := 10.0 + float64(i)
		series.Bars = append(series.Bars, contracts.Bar{
			Timestamp: day(i),
			Open:      price,
			High:      price + 0.5,
			Low:       price - 0.5,
			Close:     price,
			Volume:    1_000_000,
		})
	}
	return series
}

func newTestEngine() *Engine {
	return NewEngine(NewRegistry(), 0, logger.Nop())
}

func TestComputeSMAOnRisingCloses(t *testing.T) {
	engine := newTestEngine()
	series := risingSeries(30)

	result, method, err := engine.Compute(series, "SMA_5", nil)
	require.NoError(t, err)
	assert.Equal(t, MethodPrimary, method)

	sma := result.Component("sma")
	require.NotNil(t, sma)
	require.Equal(t, 30, sma.Len())

	// Last close is 39; mean of the last five closes is 37
	assert.InDelta(t, 37.0, sma.Last(), 1e-9)
	assert.Equal(t, day(29), sma.TrailingTimestamp())

	// Warm-up positions carry NaN
	for i := 0; i < 4; i++ {
		assert.True(t, math.IsNaN(sma.Values[i]), "index %d", i)
	}
	assert.False(t, math.IsNaN(sma.Values[4]))
}

func TestComputeUnknownIndicator(t *testing.T) {
	engine := newTestEngine()

	_, method, err := engine.Compute(walkSeries(30), "ICHIMOKU", nil)
	require.Error(t, err)
	assert.Equal(t, MethodFailed, method)
}

func TestComputeMissingColumn(t *testing.T) {
	engine := newTestEngine()
	require.NoError(t, engine.Registry().Register(Spec{
		Name:     "VWAP_TEST",
		Category: "volume",
		Inputs:   []contracts.Column{contracts.Column("vwap")},
		Outputs:  []string{"vwap"},
		Defaults: Params{},
		warmup:   func(Params) int { return 0 },
		primary:  func(s *contracts.BarSeries, p Params) map[string][]float64 { return nil },
		fallback: func(s *contracts.BarSeries, p Params) map[string][]float64 { return nil },
	}))

	_, method, err := engine.Compute(walkSeries(30), "VWAP_TEST", nil)
	require.Error(t, err)
	assert.Equal(t, MethodFailed, method)

	var missing *contracts.MissingColumnError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, contracts.Column("vwap"), missing.Column)
}

func TestComputeShortSeriesShapeCorrect(t *testing.T) {
	engine := newTestEngine()
	series := walkSeries(10) // RSI_14 needs 15 bars

	result, _, err := engine.Compute(series, "RSI_14", nil)
	require.NoError(t, err)

	rsi := result.Component("rsi")
	require.Equal(t, 10, rsi.Len())
	for i, v := range rsi.Values {
		assert.True(t, math.IsNaN(v), "index %d", i)
	}
	assert.True(t, result.Empty())
}

func TestComputeFallbackOnPanic(t *testing.T) {
	engine := newTestEngine()
	require.NoError(t, engine.Registry().Register(Spec{
		Name:     "PANIC_TEST",
		Category: "trend",
		Inputs:   []contracts.Column{contracts.ColumnClose},
		Outputs:  []string{"sma"},
		Defaults: Params{"period": 5},
		warmup:   func(p Params) int { return p.period("period", 5) - 1 },
		primary: func(s *contracts.BarSeries, p Params) map[string][]float64 {
			panic("library blew up")
		},
		fallback: fallbackSMA,
	}))

	result, method, err := engine.Compute(risingSeries(30), "PANIC_TEST", nil)
	require.NoError(t, err)
	assert.Equal(t, MethodFallback, method)
	assert.InDelta(t, 37.0, result.Component("sma").Last(), 1e-9)
}

func TestComputeBothPathsFail(t *testing.T) {
	engine := newTestEngine()
	require.NoError(t, engine.Registry().Register(Spec{
		Name:     "BROKEN_TEST",
		Category: "trend",
		Inputs:   []contracts.Column{contracts.ColumnClose},
		Outputs:  []string{"x"},
		Defaults: Params{},
		warmup:   func(Params) int { return 0 },
		primary: func(s *contracts.BarSeries, p Params) map[string][]float64 {
			return map[string][]float64{"wrong_name": make([]float64, s.Len())}
		},
		fallback: func(s *contracts.BarSeries, p Params) map[string][]float64 {
			panic("no fallback either")
		},
	}))

	_, method, err := engine.Compute(walkSeries(30), "BROKEN_TEST", nil)
	require.Error(t, err)
	assert.Equal(t, MethodFailed, method)
}

func TestPrimaryFallbackEquivalence(t *testing.T) {
	registry := NewRegistry()
	series := walkSeries(120)

	for _, name := range []string{"SMA_5", "SMA_20", "EMA_12", "EMA_26", "RSI_14"} {
		spec, ok := registry.Lookup(name)
		require.True(t, ok, name)

		p := Params{}.merged(spec.Defaults)
		warmup := spec.warmup(p)
		primary := spec.primary(series, p)
		fallback := spec.fallback(series, p)

		for _, output := range spec.Outputs {
			pv, fv := primary[output], fallback[output]
			require.Equal(t, len(pv), len(fv), "%s[%s]", name, output)
			for i := warmup; i < len(pv); i++ {
				assert.True(t, withinTolerance(pv[i], fv[i]),
					"%s[%s] index %d: primary %v fallback %v", name, output, i, pv[i], fv[i])
			}
		}
	}
}

func TestComputeParamOverride(t *testing.T) {
	engine := newTestEngine()
	series := risingSeries(30)

	result, _, err := engine.Compute(series, "SMA_5", Params{"period": 10})
	require.NoError(t, err)

	// Mean of the last ten closes 30..39 is 34.5
	assert.InDelta(t, 34.5, result.Component("sma").Last(), 1e-9)
}

func TestComputeMACDBundle(t *testing.T) {
	engine := newTestEngine()

	result, method, err := engine.Compute(walkSeries(120), "MACD", nil)
	require.NoError(t, err)
	assert.Equal(t, MethodPrimary, method)

	assert.ElementsMatch(t, []string{"macd", "signal", "hist"}, result.ComponentNames())
	for _, name := range []string{"macd", "signal", "hist"} {
		assert.False(t, math.IsNaN(result.Component(name).LastValid()), name)
	}

	// hist is the gap between the macd line and its signal
	macd := result.Component("macd").Last()
	signal := result.Component("signal").Last()
	hist := result.Component("hist").Last()
	assert.InDelta(t, macd-signal, hist, 1e-9)
}

func TestComputeAllCoversCatalog(t *testing.T) {
	engine := newTestEngine()
	series := walkSeries(120)

	results, elapsed := engine.ComputeAll(series)
	assert.Len(t, results, engine.Registry().Len())
	assert.Greater(t, elapsed, time.Duration(0))

	for name, result := range results {
		assert.False(t, result.Empty(), name)
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	registry := NewRegistry()
	spec, _ := registry.Lookup("OBV")

	err := registry.Register(spec)
	require.Error(t, err)
}
