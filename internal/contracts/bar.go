package contracts

import (
	"fmt"
	"time"
)

// Column identifies one OHLCV input column of a bar series.
type Column string

const (
	ColumnOpen   Column = "open"
	ColumnHigh   Column = "high"
	ColumnLow    Column = "low"
	ColumnClose  Column = "close"
	ColumnVolume Column = "volume"
)

// Bar represents one OHLCV record for an instrument at a point in time
type Bar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// BarSeries is an ordered bar sequence for one (instrument, timeframe)
// ⭐ SSOT: 원시 봉 데이터 전달은 이 타입으로만
type BarSeries struct {
	Instrument string    `json:"instrument"`
	Timeframe  string    `json:"timeframe"`
	Bars       []Bar     `json:"bars"`
	FetchedAt  time.Time `json:"fetched_at"`
}

// Len returns the number of bars in the series
func (s *BarSeries) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Bars)
}

// TrailingTimestamp returns the timestamp of the newest bar,
// or the zero time when the series is empty.
func (s *BarSeries) TrailingTimestamp() time.Time {
	if s.Len() == 0 {
		return time.Time{}
	}
	return s.Bars[len(s.Bars)-1].Timestamp
}

// Timestamps returns the full timestamp index of the series
func (s *BarSeries) Timestamps() []time.Time {
	ts := make([]time.Time, len(s.Bars))
	for i, b := range s.Bars {
		ts[i] = b.Timestamp
	}
	return ts
}

// Columns extracts one named column as a float slice.
// 지표 계산 입력용 컬럼 추출
func (s *BarSeries) Columns(col Column) []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		switch col {
		case ColumnOpen:
			out[i] = b.Open
		case ColumnHigh:
			out[i] = b.High
		case ColumnLow:
			out[i] = b.Low
		case ColumnClose:
			out[i] = b.Close
		case ColumnVolume:
			out[i] = b.Volume
		}
	}
	return out
}

// HasColumn reports whether the series carries the given column.
// A populated series always carries all five OHLCV columns; the check
// exists so that engine validation has a single authority to ask.
func (s *BarSeries) HasColumn(col Column) bool {
	switch col {
	case ColumnOpen, ColumnHigh, ColumnLow, ColumnClose, ColumnVolume:
		return true
	default:
		return false
	}
}

// Validate checks the bar ordering invariant: timestamps strictly
// increasing, no duplicates.
func (s *BarSeries) Validate() error {
	for i := 1; i < len(s.Bars); i++ {
		prev, cur := s.Bars[i-1].Timestamp, s.Bars[i].Timestamp
		if !cur.After(prev) {
			return fmt.Errorf("bar series %s/%s: timestamp %s at index %d not after %s: %w",
				s.Instrument, s.Timeframe, cur.Format(time.RFC3339), i, prev.Format(time.RFC3339),
				ErrUnorderedBars)
		}
	}
	return nil
}
