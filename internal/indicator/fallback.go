package indicator

import (
	"math"

	"github.com/wonny/stockpool/internal/contracts"
)

// Fallback computation paths: the same textbook definitions the primary
// library implements, in plain arithmetic. Kept numerically aligned with
// the primary path so the audit comparison holds to tight tolerance.

func rollingMean(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if period <= 0 || len(values) < period {
		return out
	}

	var sum float64
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// rollingStdDev is the population standard deviation over a window,
// matching the primary library's convention.
func rollingStdDev(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	means := rollingMean(values, period)

	for i := period - 1; i < len(values); i++ {
		var sq float64
		for j := i - period + 1; j <= i; j++ {
			d := values[j] - means[i]
			sq += d * d
		}
		out[i] = math.Sqrt(sq / float64(period))
	}
	return out
}

// emaSeries is an exponential moving average seeded with the simple
// mean of the first period values.
func emaSeries(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if period <= 0 || len(values) < period {
		return out
	}

	k := 2.0 / float64(period+1)

	var sum float64
	for i := 0; i < period; i++ {
		sum += values[i]
	}
	prev := sum / float64(period)
	out[period-1] = prev

	for i := period; i < len(values); i++ {
		prev = (values[i]-prev)*k + prev
		out[i] = prev
	}
	return out
}

func fallbackSMA(s *contracts.BarSeries, p Params) map[string][]float64 {
	return map[string][]float64{
		"sma": rollingMean(s.Columns(contracts.ColumnClose), p.period("period", 20)),
	}
}

func fallbackEMA(s *contracts.BarSeries, p Params) map[string][]float64 {
	return map[string][]float64{
		"ema": emaSeries(s.Columns(contracts.ColumnClose), p.period("period", 20)),
	}
}

func fallbackWMA(s *contracts.BarSeries, p Params) map[string][]float64 {
	period := p.period("period", 5)
	closes := s.Columns(contracts.ColumnClose)
	out := make([]float64, len(closes))

	denom := float64(period*(period+1)) / 2
	for i := period - 1; i < len(closes); i++ {
		var weighted float64
		for j := 0; j < period; j++ {
			weighted += closes[i-period+1+j] * float64(j+1)
		}
		out[i] = weighted / denom
	}
	return map[string][]float64{"wma": out}
}

// fallbackRSI uses Wilder smoothing: seed averages over the first
// period changes, then recursive (prev*(n-1)+cur)/n.
func fallbackRSI(s *contracts.BarSeries, p Params) map[string][]float64 {
	period := p.period("period", 14)
	closes := s.Columns(contracts.ColumnClose)
	out := make([]float64, len(closes))
	if len(closes) <= period {
		return map[string][]float64{"rsi": out}
	}

	var gain, loss float64
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gain += change
		} else {
			loss -= change
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		var g, l float64
		if change > 0 {
			g = change
		} else {
			l = -change
		}
		avgGain = (avgGain*float64(period-1) + g) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + l) / float64(period)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return map[string][]float64{"rsi": out}
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgGain+avgLoss == 0 {
		return 0
	}
	return 100 * avgGain / (avgGain + avgLoss)
}

func fallbackMACD(s *contracts.BarSeries, p Params) map[string][]float64 {
	fast := p.period("fast", 12)
	slow := p.period("slow", 26)
	signalPeriod := p.period("signal", 9)
	closes := s.Columns(contracts.ColumnClose)

	n := len(closes)
	macd := make([]float64, n)
	signal := make([]float64, n)
	hist := make([]float64, n)
	if n < slow+signalPeriod-1 {
		return map[string][]float64{"macd": macd, "signal": signal, "hist": hist}
	}

	fastEMA := emaSeries(closes, fast)
	slowEMA := emaSeries(closes, slow)
	for i := slow - 1; i < n; i++ {
		macd[i] = fastEMA[i] - slowEMA[i]
	}

	// Signal line: EMA of the MACD values that exist, re-anchored at
	// the first defined MACD index.
	signalEMA := emaSeries(macd[slow-1:], signalPeriod)
	for i, v := range signalEMA {
		signal[slow-1+i] = v
	}
	for i := slow + signalPeriod - 2; i < n; i++ {
		hist[i] = macd[i] - signal[i]
	}
	return map[string][]float64{"macd": macd, "signal": signal, "hist": hist}
}

func fallbackBOLL(s *contracts.BarSeries, p Params) map[string][]float64 {
	period := p.period("period", 20)
	dev := p.value("stddev", 2)
	closes := s.Columns(contracts.ColumnClose)

	middle := rollingMean(closes, period)
	stddev := rollingStdDev(closes, period)

	upper := make([]float64, len(closes))
	lower := make([]float64, len(closes))
	for i := period - 1; i < len(closes); i++ {
		upper[i] = middle[i] + dev*stddev[i]
		lower[i] = middle[i] - dev*stddev[i]
	}
	return map[string][]float64{"upper": upper, "middle": middle, "lower": lower}
}

func fallbackSTOCH(s *contracts.BarSeries, p Params) map[string][]float64 {
	fastK := p.period("fastk", 14)
	slowK := p.period("slowk", 3)
	slowD := p.period("slowd", 3)

	high := s.Columns(contracts.ColumnHigh)
	low := s.Columns(contracts.ColumnLow)
	closes := s.Columns(contracts.ColumnClose)
	n := len(closes)

	rawK := make([]float64, n)
	for i := fastK - 1; i < n; i++ {
		highest, lowest := high[i], low[i]
		for j := i - fastK + 1; j <= i; j++ {
			highest = math.Max(highest, high[j])
			lowest = math.Min(lowest, low[j])
		}
		if highest > lowest {
			rawK[i] = 100 * (closes[i] - lowest) / (highest - lowest)
		}
	}

	k := shiftedMean(rawK, fastK-1, slowK)
	d := shiftedMean(k, fastK+slowK-2, slowD)
	return map[string][]float64{"k": k, "d": d}
}

// shiftedMean is a rolling mean applied only from the first defined
// index of the input, so undefined leading positions never pollute the
// averages.
func shiftedMean(values []float64, firstValid, period int) []float64 {
	out := make([]float64, len(values))
	if firstValid >= len(values) {
		return out
	}
	for i, v := range rollingMean(values[firstValid:], period) {
		out[firstValid+i] = v
	}
	return out
}

// fallbackATR uses Wilder smoothing over the true range
func fallbackATR(s *contracts.BarSeries, p Params) map[string][]float64 {
	period := p.period("period", 14)
	high := s.Columns(contracts.ColumnHigh)
	low := s.Columns(contracts.ColumnLow)
	closes := s.Columns(contracts.ColumnClose)
	n := len(closes)

	out := make([]float64, n)
	if n <= period {
		return map[string][]float64{"atr": out}
	}

	tr := make([]float64, n)
	for i := 1; i < n; i++ {
		hl := high[i] - low[i]
		hc := math.Abs(high[i] - closes[i-1])
		lc := math.Abs(low[i] - closes[i-1])
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}

	var sum float64
	for i := 1; i <= period; i++ {
		sum += tr[i]
	}
	prev := sum / float64(period)
	out[period] = prev

	for i := period + 1; i < n; i++ {
		prev = (prev*float64(period-1) + tr[i]) / float64(period)
		out[i] = prev
	}
	return map[string][]float64{"atr": out}
}

func fallbackOBV(s *contracts.BarSeries, p Params) map[string][]float64 {
	closes := s.Columns(contracts.ColumnClose)
	volume := s.Columns(contracts.ColumnVolume)

	out := make([]float64, len(closes))
	if len(closes) == 0 {
		return map[string][]float64{"obv": out}
	}

	out[0] = volume[0]
	for i := 1; i < len(closes); i++ {
		switch {
		case closes[i] > closes[i-1]:
			out[i] = out[i-1] + volume[i]
		case closes[i] < closes[i-1]:
			out[i] = out[i-1] - volume[i]
		default:
			out[i] = out[i-1]
		}
	}
	return map[string][]float64{"obv": out}
}

func fallbackROC(s *contracts.BarSeries, p Params) map[string][]float64 {
	period := p.period("period", 10)
	closes := s.Columns(contracts.ColumnClose)

	out := make([]float64, len(closes))
	for i := period; i < len(closes); i++ {
		if closes[i-period] != 0 {
			out[i] = 100 * (closes[i] - closes[i-period]) / closes[i-period]
		}
	}
	return map[string][]float64{"roc": out}
}

func fallbackVolatility(s *contracts.BarSeries, p Params) map[string][]float64 {
	period := p.period("period", 20)
	closes := s.Columns(contracts.ColumnClose)

	logReturns := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		logReturns[i] = math.Log(closes[i] / closes[i-1])
	}

	stddev := rollingStdDev(logReturns, period)
	out := make([]float64, len(closes))
	for i := range out {
		out[i] = stddev[i] * math.Sqrt(252)
	}
	return map[string][]float64{"volatility": out}
}

func fallbackVolumeSMA(s *contracts.BarSeries, p Params) map[string][]float64 {
	return map[string][]float64{
		"volume_sma": rollingMean(s.Columns(contracts.ColumnVolume), p.period("period", 20)),
	}
}

func fallbackVolumeRatio(s *contracts.BarSeries, p Params) map[string][]float64 {
	period := p.period("period", 20)
	volume := s.Columns(contracts.ColumnVolume)
	sma := rollingMean(volume, period)

	out := make([]float64, len(volume))
	for i := range out {
		if sma[i] != 0 {
			out[i] = volume[i] / sma[i]
		}
	}
	return map[string][]float64{"volume_ratio": out}
}
