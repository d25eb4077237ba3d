package indicator

import (
	"math"

	"github.com/markcheno/go-talib"

	"github.com/wonny/stockpool/internal/contracts"
)

// Primary computation paths backed by go-talib. Each function returns
// full-length arrays aligned with the source bars; warm-up masking is
// the engine's job.

func primarySMA(s *contracts.BarSeries, p Params) map[string][]float64 {
	return map[string][]float64{
		"sma": talib.Sma(s.Columns(contracts.ColumnClose), p.period("period", 20)),
	}
}

func primaryEMA(s *contracts.BarSeries, p Params) map[string][]float64 {
	return map[string][]float64{
		"ema": talib.Ema(s.Columns(contracts.ColumnClose), p.period("period", 20)),
	}
}

func primaryWMA(s *contracts.BarSeries, p Params) map[string][]float64 {
	return map[string][]float64{
		"wma": talib.Wma(s.Columns(contracts.ColumnClose), p.period("period", 5)),
	}
}

func primaryRSI(s *contracts.BarSeries, p Params) map[string][]float64 {
	return map[string][]float64{
		"rsi": talib.Rsi(s.Columns(contracts.ColumnClose), p.period("period", 14)),
	}
}

func primaryMACD(s *contracts.BarSeries, p Params) map[string][]float64 {
	macd, signal, hist := talib.Macd(s.Columns(contracts.ColumnClose),
		p.period("fast", 12), p.period("slow", 26), p.period("signal", 9))
	return map[string][]float64{"macd": macd, "signal": signal, "hist": hist}
}

func primaryBOLL(s *contracts.BarSeries, p Params) map[string][]float64 {
	dev := p.value("stddev", 2)
	upper, middle, lower := talib.BBands(s.Columns(contracts.ColumnClose),
		p.period("period", 20), dev, dev, 0)
	return map[string][]float64{"upper": upper, "middle": middle, "lower": lower}
}

func primarySTOCH(s *contracts.BarSeries, p Params) map[string][]float64 {
	k, d := talib.Stoch(
		s.Columns(contracts.ColumnHigh),
		s.Columns(contracts.ColumnLow),
		s.Columns(contracts.ColumnClose),
		p.period("fastk", 14), p.period("slowk", 3), 0, p.period("slowd", 3), 0)
	return map[string][]float64{"k": k, "d": d}
}

func primaryATR(s *contracts.BarSeries, p Params) map[string][]float64 {
	return map[string][]float64{
		"atr": talib.Atr(
			s.Columns(contracts.ColumnHigh),
			s.Columns(contracts.ColumnLow),
			s.Columns(contracts.ColumnClose),
			p.period("period", 14)),
	}
}

func primaryOBV(s *contracts.BarSeries, p Params) map[string][]float64 {
	return map[string][]float64{
		"obv": talib.Obv(s.Columns(contracts.ColumnClose), s.Columns(contracts.ColumnVolume)),
	}
}

func primaryROC(s *contracts.BarSeries, p Params) map[string][]float64 {
	return map[string][]float64{
		"roc": talib.Roc(s.Columns(contracts.ColumnClose), p.period("period", 10)),
	}
}

// primaryVolatility computes the annualized standard deviation of log
// returns over a rolling window.
func primaryVolatility(s *contracts.BarSeries, p Params) map[string][]float64 {
	period := p.period("period", 20)
	closes := s.Columns(contracts.ColumnClose)

	logReturns := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		logReturns[i] = math.Log(closes[i] / closes[i-1])
	}

	stddev := talib.StdDev(logReturns, period, 1.0)

	out := make([]float64, len(closes))
	for i := range out {
		out[i] = stddev[i] * math.Sqrt(252)
	}
	return map[string][]float64{"volatility": out}
}

func primaryVolumeSMA(s *contracts.BarSeries, p Params) map[string][]float64 {
	return map[string][]float64{
		"volume_sma": talib.Sma(s.Columns(contracts.ColumnVolume), p.period("period", 20)),
	}
}

func primaryVolumeRatio(s *contracts.BarSeries, p Params) map[string][]float64 {
	volume := s.Columns(contracts.ColumnVolume)
	sma := talib.Sma(volume, p.period("period", 20))

	out := make([]float64, len(volume))
	for i := range out {
		if sma[i] != 0 {
			out[i] = volume[i] / sma[i]
		}
	}
	return map[string][]float64{"volume_ratio": out}
}
