package contracts

import (
	"math"
	"time"
)

// Fundamentals is the per-instrument valuation snapshot used by the
// scoring funnel. NaN marks a missing field, matching the vendor feed.
type Fundamentals struct {
	PERatio       float64 `json:"pe_ratio"`
	PBRatio       float64 `json:"pb_ratio"`
	TurnoverRatio float64 `json:"turnover_ratio"` // 환전율 (%)
	MarketCap     float64 `json:"market_cap"`     // 시가총액 (통화 단위)
}

// EmptyFundamentals returns a snapshot with every field marked missing
func EmptyFundamentals() Fundamentals {
	nan := math.NaN()
	return Fundamentals{PERatio: nan, PBRatio: nan, TurnoverRatio: nan, MarketCap: nan}
}

// ScoredCandidate is one instrument after the scoring funnel.
// Immutable once produced; the pool builder only reads it.
type ScoredCandidate struct {
	Instrument string  `json:"instrument"`
	BasicScore float64 `json:"basic_score"`
	WatchScore float64 `json:"watch_score"`
	CoreScore  float64 `json:"core_score"`

	Fundamentals Fundamentals       `json:"fundamentals"`
	LatestValues map[string]float64 `json:"latest_values"` // 지표 최신값 스냅샷
	QualityFlags []string           `json:"quality_flags"` // 품질 게이트 실패 사유
	ScoredAt     time.Time          `json:"scored_at"`
}

// Rejected reports whether the candidate failed the quality gate
func (c *ScoredCandidate) Rejected() bool {
	return len(c.QualityFlags) > 0
}

// Pool names
const (
	PoolBasic = "basic"
	PoolWatch = "watch"
	PoolCore  = "core"
)

// Pool is one named ranked pool snapshot.
// 중첩 불변식: core ⊆ watch ⊆ basic
type Pool struct {
	Name    string            `json:"name"`
	AsOf    time.Time         `json:"as_of"`
	Members []ScoredCandidate `json:"members"`
}

// Instruments returns the member instrument ids in rank order
func (p *Pool) Instruments() []string {
	ids := make([]string, len(p.Members))
	for i, m := range p.Members {
		ids[i] = m.Instrument
	}
	return ids
}

// Contains reports whether the instrument is a pool member
func (p *Pool) Contains(instrument string) bool {
	for _, m := range p.Members {
		if m.Instrument == instrument {
			return true
		}
	}
	return false
}

// PoolSet is the full funnel output for one as-of date
type PoolSet struct {
	AsOf  time.Time `json:"as_of"`
	Basic *Pool     `json:"basic"`
	Watch *Pool     `json:"watch"`
	Core  *Pool     `json:"core"`
}
