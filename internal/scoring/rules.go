package scoring

import (
	"math"

	"github.com/wonny/stockpool/internal/contracts"
)

// Input is the per-instrument view the scoring stages consume:
// fundamentals plus the newest value of every derived indicator,
// flattened under conventional keys (RSI_14, MACD, MACD_SIGNAL,
// VOLATILITY_20D, ...).
type Input struct {
	Instrument   string
	Fundamentals contracts.Fundamentals
	LatestValues map[string]float64
}

// Latest returns a flattened indicator value; NaN when absent
func (in Input) Latest(key string) float64 {
	if v, ok := in.LatestValues[key]; ok {
		return v
	}
	return math.NaN()
}

// Range is a closed numeric interval
type Range struct {
	Min, Max float64
}

// Contains reports whether v falls inside the interval
func (r Range) Contains(v float64) bool {
	return !math.IsNaN(v) && r.Min <= v && v <= r.Max
}

// Rule scores one metric by range membership: full points inside the
// ideal interval, partial inside the good interval, zero otherwise.
// Missing values contribute zero, never an error.
type Rule struct {
	Name       string
	Value      func(Input) float64
	Ideal      Range
	IdealScore float64
	Good       Range
	GoodScore  float64
}

// Apply returns the rule's contribution for one input
func (r Rule) Apply(in Input) float64 {
	v := r.Value(in)
	if math.IsNaN(v) {
		return 0
	}
	if r.Ideal.Contains(v) {
		return r.IdealScore
	}
	if r.Good.Contains(v) {
		return r.GoodScore
	}
	return 0
}

// basicRules is the base-layer rule table. Contributions sit on top of
// the 50-point baseline.
func basicRules() []Rule {
	return []Rule{
		{
			Name:       "pe",
			Value:      func(in Input) float64 { return in.Fundamentals.PERatio },
			Ideal:      Range{8, 25},
			IdealScore: 15,
			Good:       Range{5, 40},
			GoodScore:  8,
		},
		{
			Name:       "pb",
			Value:      func(in Input) float64 { return in.Fundamentals.PBRatio },
			Ideal:      Range{0.5, 3.0},
			IdealScore: 12,
			Good:       Range{0.3, 5.0},
			GoodScore:  6,
		},
		{
			Name:       "rsi",
			Value:      func(in Input) float64 { return in.Latest("RSI_14") },
			Ideal:      Range{40, 60},
			IdealScore: 10,
			Good:       Range{30, 70},
			GoodScore:  5,
		},
		{
			Name:       "turnover",
			Value:      func(in Input) float64 { return in.Fundamentals.TurnoverRatio },
			Ideal:      Range{1.0, 8.0},
			IdealScore: 8,
			Good:       Range{0.5, 15.0},
			GoodScore:  4,
		},
	}
}
