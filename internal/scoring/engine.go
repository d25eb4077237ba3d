package scoring

import (
	"math"
	"time"

	"github.com/wonny/stockpool/internal/contracts"
	"github.com/wonny/stockpool/pkg/logger"
)

const baseScore = 50.0

// Engine runs the sequential scoring stages:
// QualityGate → Basic → Watch → Core. Each stage clamps its result to
// [0,100] before the next stage reads it; a stage whose entry gate is
// not met carries the previous score forward unchanged.
// ⭐ SSOT: 점수 계산은 여기서만
type Engine struct {
	rules  []Rule
	gate   QualityGate
	logger *logger.Logger
}

// NewEngine creates a scoring engine with the standard rule table
func NewEngine(log *logger.Logger) *Engine {
	return &Engine{rules: basicRules(), logger: log}
}

// Score produces the full scored candidate for one input
func (e *Engine) Score(in Input) contracts.ScoredCandidate {
	candidate := contracts.ScoredCandidate{
		Instrument:   in.Instrument,
		Fundamentals: in.Fundamentals,
		LatestValues: in.LatestValues,
		ScoredAt:     time.Now(),
	}

	passed, flags := e.gate.Evaluate(in)
	candidate.QualityFlags = flags
	if !passed {
		e.logger.WithFields(map[string]interface{}{
			"instrument": in.Instrument,
			"flags":      flags,
		}).Debug("Quality gate rejected instrument")
		return candidate // all scores zero
	}

	candidate.BasicScore = e.basicScore(in)
	candidate.WatchScore = e.watchScore(in, candidate.BasicScore)
	candidate.CoreScore = e.coreScore(in, candidate.WatchScore)

	e.logger.WithFields(map[string]interface{}{
		"instrument": in.Instrument,
		"basic":      candidate.BasicScore,
		"watch":      candidate.WatchScore,
		"core":       candidate.CoreScore,
	}).Debug("Instrument scored")
	return candidate
}

// basicScore is the 50-point baseline plus the rule-table contributions
func (e *Engine) basicScore(in Input) float64 {
	score := baseScore
	for _, rule := range e.rules {
		score += rule.Apply(in)
	}
	return clamp(score)
}

// watchScore adds size and momentum bonuses once the basic score
// clears 30. Below the gate the basic score passes through untouched.
func (e *Engine) watchScore(in Input, basic float64) float64 {
	if basic < 30 {
		return basic
	}

	var bonus float64

	// 200억~1000억 위안 시가총액이 최적 구간
	if mcap := in.Fundamentals.MarketCap; present(mcap) {
		switch {
		case 200e8 <= mcap && mcap <= 1000e8:
			bonus += 5
		case 100e8 <= mcap && mcap <= 2000e8:
			bonus += 3
		}
	}

	macd := in.Latest("MACD")
	signal := in.Latest("MACD_SIGNAL")
	if present(macd) && present(signal) {
		switch {
		case macd > signal:
			bonus += 5
		case math.Abs(macd-signal) < math.Abs(signal)*0.01:
			bonus += 2
		}
	}

	return clamp(basic + bonus)
}

// coreScore applies the stricter valuation bonuses and the volatility
// penalty once the watch score clears 60.
func (e *Engine) coreScore(in Input, watch float64) float64 {
	if watch < 60 {
		return watch
	}

	var bonus float64

	if pb := in.Fundamentals.PBRatio; present(pb) && pb > 0 {
		switch {
		case pb < 2:
			bonus += 8
		case pb < 3:
			bonus += 5
		case pb < 5:
			bonus += 3
		}
	}

	if pe := in.Fundamentals.PERatio; present(pe) {
		switch {
		case 8 <= pe && pe <= 25:
			bonus += 5
		case 5 <= pe && pe <= 40:
			bonus += 3
		}
	}

	if vol := in.Latest("VOLATILITY_20D"); present(vol) {
		switch {
		case vol > 0.4:
			bonus -= 5
		case vol > 0.3:
			bonus -= 3
		}
	}

	return clamp(watch + bonus)
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}
