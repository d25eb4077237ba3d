package contracts

import (
	"errors"
	"fmt"
)

// Failure taxonomy for the derivation and scoring pipeline.
// Failures are contained at the smallest scope that makes sense:
// one indicator failing never fails an instrument, one instrument
// failing never fails the batch.
var (
	// ErrDataUnavailable: no bars exist for an (instrument, timeframe).
	// The instrument is skipped; the batch continues.
	ErrDataUnavailable = errors.New("bar data unavailable")

	// ErrUnorderedBars: the strictly-increasing timestamp invariant broke.
	ErrUnorderedBars = errors.New("bar timestamps not strictly increasing")

	// ErrStaleDependency: a cache entry is older than its source. Internal
	// recompute trigger only; callers never see it surfaced.
	ErrStaleDependency = errors.New("cache entry older than source data")

	// ErrNotFound: the vendor has no data for the instrument.
	ErrNotFound = errors.New("instrument not found at vendor")

	// ErrRateLimited: the vendor rejected the request for throttling.
	ErrRateLimited = errors.New("vendor rate limited")

	// ErrTransient: a retryable vendor failure (timeout, 5xx).
	ErrTransient = errors.New("transient vendor failure")
)

// MissingColumnError reports a SchemaMismatch: an indicator required an
// input column the series does not carry.
type MissingColumnError struct {
	Indicator string
	Column    Column
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("indicator %s: required input column %q missing", e.Indicator, e.Column)
}

// DivergenceError reports primary and fallback paths disagreeing beyond
// tolerance. Logged as a warning; the primary result is still used.
type DivergenceError struct {
	Indicator string
	Component string
	Index     int
	Primary   float64
	Fallback  float64
}

func (e *DivergenceError) Error() string {
	return fmt.Sprintf("indicator %s[%s]: primary %.9f and fallback %.9f diverge at index %d",
		e.Indicator, e.Component, e.Primary, e.Fallback, e.Index)
}

// Issue is one contained per-instrument/per-indicator failure surfaced
// with a batch's partial results.
type Issue struct {
	Instrument string `json:"instrument"`
	Indicator  string `json:"indicator,omitempty"`
	Stage      string `json:"stage"` // fetch, indicator, scoring, persist
	Err        string `json:"error"`
}

func (i Issue) String() string {
	if i.Indicator != "" {
		return fmt.Sprintf("%s/%s [%s]: %s", i.Instrument, i.Indicator, i.Stage, i.Err)
	}
	return fmt.Sprintf("%s [%s]: %s", i.Instrument, i.Stage, i.Err)
}
