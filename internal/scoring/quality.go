package scoring

import (
	"fmt"
	"math"
)

// Coverage thresholds the required inputs must clear before any
// scoring stage runs. Fundamentals and indicator snapshots are judged
// as separate groups; either group failing rejects the candidate.
const (
	fundamentalsMinValidRatio = 0.7
	fundamentalsMaxNaNRatio   = 0.5
	indicatorsMinValidRatio   = 0.6
	indicatorsMaxNaNRatio     = 0.4
)

// requiredIndicators are the snapshot values the funnel stages read
var requiredIndicators = []string{"RSI_14", "MACD", "MACD_SIGNAL", "VOLATILITY_20D"}

// QualityGate is the first scoring stage: it rejects inputs whose data
// cannot be trusted. Present-but-impossible values fail outright, and
// a snapshot missing too many required fields fails on the coverage
// ratios. A failed gate is a terminal zero score with the reasons
// recorded, not an error.
type QualityGate struct{}

// Evaluate returns whether the input passes plus the flags raised.
// 음수 PE처럼 존재하지만 말이 안 되는 값, 그리고 대부분 비어 있는 스냅샷을 걸러낸다
func (QualityGate) Evaluate(in Input) (bool, []string) {
	var flags []string

	f := in.Fundamentals
	fundNaN, fundBad := 0, 0

	switch {
	case !present(f.PERatio):
		fundNaN++
	case f.PERatio <= 0:
		fundBad++
		flags = append(flags, fmt.Sprintf("pe_not_positive:%.2f", f.PERatio))
	}
	switch {
	case !present(f.PBRatio):
		fundNaN++
	case f.PBRatio <= 0:
		fundBad++
		flags = append(flags, fmt.Sprintf("pb_not_positive:%.2f", f.PBRatio))
	}
	switch {
	case !present(f.TurnoverRatio):
		fundNaN++
	case f.TurnoverRatio < 0:
		fundBad++
		flags = append(flags, fmt.Sprintf("turnover_negative:%.2f", f.TurnoverRatio))
	}
	switch {
	case !present(f.MarketCap):
		fundNaN++
	case f.MarketCap <= 0:
		fundBad++
		flags = append(flags, fmt.Sprintf("market_cap_not_positive:%.0f", f.MarketCap))
	}

	indNaN, indBad := 0, 0
	for _, name := range requiredIndicators {
		v := in.Latest(name)
		if !present(v) {
			indNaN++
			continue
		}
		switch name {
		case "RSI_14":
			if v < 0 || v > 100 {
				indBad++
				flags = append(flags, fmt.Sprintf("rsi_out_of_range:%.2f", v))
			}
		case "VOLATILITY_20D":
			if v < 0 {
				indBad++
				flags = append(flags, fmt.Sprintf("volatility_negative:%.2f", v))
			}
		}
	}

	flags = append(flags, coverageFlags("fundamentals", fundamentalFields, fundNaN, fundBad,
		fundamentalsMinValidRatio, fundamentalsMaxNaNRatio)...)
	flags = append(flags, coverageFlags("indicators", len(requiredIndicators), indNaN, indBad,
		indicatorsMinValidRatio, indicatorsMaxNaNRatio)...)

	return len(flags) == 0, flags
}

const fundamentalFields = 4

// coverageFlags applies the per-group ratio thresholds: too many NaN
// fields, or too few fields that survived both presence and range
// checks, rejects the group.
func coverageFlags(group string, total, nan, bad int, minValid, maxNaN float64) []string {
	nanRatio := float64(nan) / float64(total)
	validRatio := float64(total-nan-bad) / float64(total)

	switch {
	case nanRatio > maxNaN:
		return []string{fmt.Sprintf("%s_nan_ratio:%.2f", group, nanRatio)}
	case validRatio < minValid:
		return []string{fmt.Sprintf("%s_valid_ratio:%.2f", group, validRatio)}
	}
	return nil
}

func present(v float64) bool {
	return !math.IsNaN(v)
}
