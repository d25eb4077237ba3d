package contracts

import (
	"math"
	"time"
)

// Series is one named numeric series aligned with a source bar index.
// Values[i] belongs to Timestamps[i]; NaN marks warm-up positions.
type Series struct {
	Timestamps []time.Time `json:"timestamps"`
	Values     []float64   `json:"values"`
}

// Len returns the series length
func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Values)
}

// Last returns the newest value, or NaN for an empty series
func (s *Series) Last() float64 {
	if s.Len() == 0 {
		return math.NaN()
	}
	return s.Values[len(s.Values)-1]
}

// LastValid returns the newest non-NaN value, or NaN when none exists
func (s *Series) LastValid() float64 {
	for i := len(s.Values) - 1; i >= 0; i-- {
		if !math.IsNaN(s.Values[i]) {
			return s.Values[i]
		}
	}
	return math.NaN()
}

// TrailingTimestamp returns the timestamp of the newest point,
// or the zero time when the series is empty.
func (s *Series) TrailingTimestamp() time.Time {
	if s.Len() == 0 {
		return time.Time{}
	}
	return s.Timestamps[len(s.Timestamps)-1]
}

// IndicatorResult is the output of one indicator computation: either a
// single named series or a named bundle (e.g. MACD's macd/signal/hist).
// ⭐ SSOT: 지표 계산 결과 전달은 이 타입으로만
type IndicatorResult struct {
	Indicator  string             `json:"indicator"`
	Components map[string]*Series `json:"components"`
}

// NewScalarResult builds a single-series result under the given name
func NewScalarResult(indicator, name string, series *Series) *IndicatorResult {
	return &IndicatorResult{
		Indicator:  indicator,
		Components: map[string]*Series{name: series},
	}
}

// Component returns the named component series, or nil
func (r *IndicatorResult) Component(name string) *Series {
	if r == nil {
		return nil
	}
	return r.Components[name]
}

// ComponentNames returns the set of component keys present
func (r *IndicatorResult) ComponentNames() []string {
	names := make([]string, 0, len(r.Components))
	for name := range r.Components {
		names = append(names, name)
	}
	return names
}

// Empty reports whether every component has zero usable values
func (r *IndicatorResult) Empty() bool {
	for _, s := range r.Components {
		if !math.IsNaN(s.LastValid()) {
			return false
		}
	}
	return true
}

// LatestValues flattens the newest valid value of every component into
// a name → value map, the shape the scoring stage consumes.
func (r *IndicatorResult) LatestValues() map[string]float64 {
	out := make(map[string]float64, len(r.Components))
	for name, s := range r.Components {
		out[name] = s.LastValid()
	}
	return out
}
