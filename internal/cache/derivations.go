package cache

import (
	"fmt"
	"math"

	"github.com/wonny/stockpool/internal/contracts"
	"github.com/wonny/stockpool/internal/indicator"
)

// DepRef names one basic-layer dependency of a composite
type DepRef struct {
	Indicator string
	Params    indicator.Params
}

// DepSet is what a composite resolver receives: the resolved basic
// results keyed by indicator name, plus the raw source series for
// composites that need it.
type DepSet struct {
	Results map[string]*contracts.IndicatorResult
	Bars    *contracts.BarSeries
}

// Series returns one component series of a resolved dependency
func (d DepSet) Series(indicatorName, component string) *contracts.Series {
	if result, ok := d.Results[indicatorName]; ok {
		return result.Component(component)
	}
	return nil
}

// Derivation declares one composite: its dependency set and the
// resolver that combines resolved dependencies into a result.
// 의존 관계는 설정 테이블로만 선언한다
type Derivation struct {
	Name    string
	Deps    []DepRef
	Resolve func(deps DepSet) (*contracts.IndicatorResult, error)
}

// DefaultDerivations is the stock composite catalog
func DefaultDerivations() map[string]Derivation {
	return map[string]Derivation{
		"KDJ": {
			Name: "KDJ",
			Deps: []DepRef{{Indicator: "STOCH"}},
			Resolve: func(deps DepSet) (*contracts.IndicatorResult, error) {
				k := deps.Series("STOCH", "k")
				d := deps.Series("STOCH", "d")
				if k == nil || d == nil {
					return nil, fmt.Errorf("KDJ: STOCH components missing")
				}

				j := mapPair(k, d, func(kv, dv float64) float64 { return 3*kv - 2*dv })
				return &contracts.IndicatorResult{
					Indicator: "KDJ",
					Components: map[string]*contracts.Series{
						"k": k, // reused as-is
						"d": d, // reused as-is
						"j": j,
					},
				}, nil
			},
		},

		"WILLIAMS_R": {
			Name: "WILLIAMS_R",
			Deps: []DepRef{{Indicator: "STOCH"}},
			Resolve: func(deps DepSet) (*contracts.IndicatorResult, error) {
				if k := deps.Series("STOCH", "k"); k != nil && !math.IsNaN(k.LastValid()) {
					willr := mapSeries(k, func(v float64) float64 { return v - 100 })
					return contracts.NewScalarResult("WILLIAMS_R", "willr", willr), nil
				}
				// Raw-bar fallback when the stochastic is unusable
				return contracts.NewScalarResult("WILLIAMS_R", "willr", williamsR(deps.Bars, 14)), nil
			},
		},

		"CCI": {
			Name: "CCI",
			Deps: nil, // raw bars only
			Resolve: func(deps DepSet) (*contracts.IndicatorResult, error) {
				return contracts.NewScalarResult("CCI", "cci", cci(deps.Bars, 20)), nil
			},
		},

		"MACD_CROSS": {
			Name: "MACD_CROSS",
			Deps: []DepRef{{Indicator: "MACD"}},
			Resolve: func(deps DepSet) (*contracts.IndicatorResult, error) {
				macd := deps.Series("MACD", "macd")
				signal := deps.Series("MACD", "signal")
				if macd == nil || signal == nil {
					return nil, fmt.Errorf("MACD_CROSS: MACD components missing")
				}

				above := mapPair(macd, signal, flagGreater)
				return &contracts.IndicatorResult{
					Indicator: "MACD_CROSS",
					Components: map[string]*contracts.Series{
						"above":      above,
						"cross_up":   edges(above, 1),
						"cross_down": edges(above, 0),
					},
				}, nil
			},
		},

		"BOLL_POSITION": {
			Name: "BOLL_POSITION",
			Deps: []DepRef{{Indicator: "BOLL"}},
			Resolve: func(deps DepSet) (*contracts.IndicatorResult, error) {
				upper := deps.Series("BOLL", "upper")
				middle := deps.Series("BOLL", "middle")
				lower := deps.Series("BOLL", "lower")
				if upper == nil || middle == nil || lower == nil {
					return nil, fmt.Errorf("BOLL_POSITION: BOLL components missing")
				}

				closes := deps.Bars.Columns(contracts.ColumnClose)
				position := &contracts.Series{
					Timestamps: upper.Timestamps,
					Values:     make([]float64, upper.Len()),
				}
				width := &contracts.Series{
					Timestamps: upper.Timestamps,
					Values:     make([]float64, upper.Len()),
				}
				for i := 0; i < upper.Len(); i++ {
					band := upper.Values[i] - lower.Values[i]
					switch {
					case math.IsNaN(band):
						position.Values[i] = math.NaN()
						width.Values[i] = math.NaN()
					case band == 0:
						position.Values[i] = 0.5
						width.Values[i] = 0
					default:
						position.Values[i] = (closes[i] - lower.Values[i]) / band
						width.Values[i] = band / middle.Values[i]
					}
				}
				return &contracts.IndicatorResult{
					Indicator: "BOLL_POSITION",
					Components: map[string]*contracts.Series{
						"position": position,
						"width":    width,
					},
				}, nil
			},
		},

		"MA_CROSS": {
			Name: "MA_CROSS",
			Deps: []DepRef{
				{Indicator: "SMA_5"},
				{Indicator: "SMA_10"},
				{Indicator: "SMA_20"},
			},
			Resolve: func(deps DepSet) (*contracts.IndicatorResult, error) {
				sma5 := deps.Series("SMA_5", "sma")
				sma10 := deps.Series("SMA_10", "sma")
				sma20 := deps.Series("SMA_20", "sma")
				if sma5 == nil || sma10 == nil || sma20 == nil {
					return nil, fmt.Errorf("MA_CROSS: SMA components missing")
				}

				above510 := mapPair(sma5, sma10, flagGreater)
				above1020 := mapPair(sma10, sma20, flagGreater)
				bullish := mapPair(above510, above1020, func(a, b float64) float64 {
					if a == 1 && b == 1 {
						return 1
					}
					return 0
				})
				return &contracts.IndicatorResult{
					Indicator: "MA_CROSS",
					Components: map[string]*contracts.Series{
						"golden_5_10":  edges(above510, 1),
						"death_5_10":   edges(above510, 0),
						"golden_10_20": edges(above1020, 1),
						"death_10_20":  edges(above1020, 0),
						"bullish":      bullish,
					},
				}, nil
			},
		},

		"VOLUME_BREAKOUT": {
			Name: "VOLUME_BREAKOUT",
			Deps: []DepRef{
				{Indicator: "VOLUME_SMA_10"},
				{Indicator: "VOLUME_SMA_20"},
				{Indicator: "VOLUME_RATIO"},
			},
			Resolve: func(deps DepSet) (*contracts.IndicatorResult, error) {
				sma10 := deps.Series("VOLUME_SMA_10", "volume_sma")
				sma20 := deps.Series("VOLUME_SMA_20", "volume_sma")
				ratio := deps.Series("VOLUME_RATIO", "volume_ratio")
				if sma10 == nil || sma20 == nil || ratio == nil {
					return nil, fmt.Errorf("VOLUME_BREAKOUT: volume components missing")
				}

				volume := deps.Bars.Columns(contracts.ColumnVolume)
				n := sma10.Len()
				breakout10 := make([]float64, n)
				breakout20 := make([]float64, n)
				shrink := make([]float64, n)
				highRatio := make([]float64, n)
				for i := 0; i < n; i++ {
					breakout10[i] = flag(!math.IsNaN(sma10.Values[i]) && volume[i] > sma10.Values[i]*2)
					breakout20[i] = flag(!math.IsNaN(sma20.Values[i]) && volume[i] > sma20.Values[i]*1.5)
					shrink[i] = flag(!math.IsNaN(sma20.Values[i]) && volume[i] < sma20.Values[i]*0.5)
					highRatio[i] = flag(!math.IsNaN(ratio.Values[i]) && ratio.Values[i] > 2.0)
				}
				ts := sma10.Timestamps
				return &contracts.IndicatorResult{
					Indicator: "VOLUME_BREAKOUT",
					Components: map[string]*contracts.Series{
						"breakout_10": {Timestamps: ts, Values: breakout10},
						"breakout_20": {Timestamps: ts, Values: breakout20},
						"shrink":      {Timestamps: ts, Values: shrink},
						"high_ratio":  {Timestamps: ts, Values: highRatio},
					},
				}, nil
			},
		},
	}
}

func flag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func flagGreater(a, b float64) float64 {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.NaN()
	}
	return flag(a > b)
}

// mapSeries applies fn elementwise, propagating NaN
func mapSeries(s *contracts.Series, fn func(float64) float64) *contracts.Series {
	out := &contracts.Series{Timestamps: s.Timestamps, Values: make([]float64, s.Len())}
	for i, v := range s.Values {
		if math.IsNaN(v) {
			out.Values[i] = math.NaN()
		} else {
			out.Values[i] = fn(v)
		}
	}
	return out
}

// mapPair applies fn over two aligned series, propagating NaN
func mapPair(a, b *contracts.Series, fn func(float64, float64) float64) *contracts.Series {
	out := &contracts.Series{Timestamps: a.Timestamps, Values: make([]float64, a.Len())}
	for i := range out.Values {
		av, bv := a.Values[i], b.Values[i]
		if math.IsNaN(av) || math.IsNaN(bv) {
			out.Values[i] = math.NaN()
		} else {
			out.Values[i] = fn(av, bv)
		}
	}
	return out
}

// edges marks positions where a 0/1 series first reaches target
func edges(s *contracts.Series, target float64) *contracts.Series {
	out := &contracts.Series{Timestamps: s.Timestamps, Values: make([]float64, s.Len())}
	for i := 1; i < s.Len(); i++ {
		cur, prev := s.Values[i], s.Values[i-1]
		if math.IsNaN(cur) || math.IsNaN(prev) {
			out.Values[i] = math.NaN()
			continue
		}
		out.Values[i] = flag(cur == target && prev != target)
	}
	return out
}

// williamsR is the raw-bar Williams %R over a lookback window
func williamsR(series *contracts.BarSeries, period int) *contracts.Series {
	high := series.Columns(contracts.ColumnHigh)
	low := series.Columns(contracts.ColumnLow)
	closes := series.Columns(contracts.ColumnClose)

	out := &contracts.Series{Timestamps: series.Timestamps(), Values: make([]float64, series.Len())}
	for i := range out.Values {
		if i < period-1 {
			out.Values[i] = math.NaN()
			continue
		}
		highest, lowest := high[i], low[i]
		for j := i - period + 1; j <= i; j++ {
			highest = math.Max(highest, high[j])
			lowest = math.Min(lowest, low[j])
		}
		if highest == lowest {
			out.Values[i] = 0
			continue
		}
		out.Values[i] = -100 * (highest - closes[i]) / (highest - lowest)
	}
	return out
}

// cci is the commodity channel index over typical prices
func cci(series *contracts.BarSeries, period int) *contracts.Series {
	high := series.Columns(contracts.ColumnHigh)
	low := series.Columns(contracts.ColumnLow)
	closes := series.Columns(contracts.ColumnClose)

	tp := make([]float64, series.Len())
	for i := range tp {
		tp[i] = (high[i] + low[i] + closes[i]) / 3
	}

	out := &contracts.Series{Timestamps: series.Timestamps(), Values: make([]float64, series.Len())}
	for i := range out.Values {
		if i < period-1 {
			out.Values[i] = math.NaN()
			continue
		}

		var sum float64
		for j := i - period + 1; j <= i; j++ {
			sum += tp[j]
		}
		mean := sum / float64(period)

		var dev float64
		for j := i - period + 1; j <= i; j++ {
			dev += math.Abs(tp[j] - mean)
		}
		mad := dev / float64(period)
		if mad == 0 {
			out.Values[i] = 0
			continue
		}
		out.Values[i] = (tp[i] - mean) / (0.015 * mad)
	}
	return out
}
