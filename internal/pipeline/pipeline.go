package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/stockpool/internal/bars"
	"github.com/wonny/stockpool/internal/cache"
	"github.com/wonny/stockpool/internal/contracts"
	"github.com/wonny/stockpool/internal/pool"
	"github.com/wonny/stockpool/internal/scoring"
	"github.com/wonny/stockpool/pkg/logger"
)

// scoringIndicators are the basic derivations every instrument needs
// before the funnel can score it.
var scoringIndicators = []string{"RSI_14", "MACD", "VOLATILITY_20D"}

// enrichmentComposites are derived per instrument so their latest
// values travel with the candidate snapshot.
var enrichmentComposites = []string{"KDJ", "MACD_CROSS", "BOLL_POSITION", "MA_CROSS", "VOLUME_BREAKOUT"}

// Sink persists finished pool sets
type Sink interface {
	SavePoolSet(ctx context.Context, set *contracts.PoolSet) error
}

// Runner drives one batch: bounded workers derive and score every
// instrument, then the pools are built from whatever survived.
// ⭐ SSOT: 배치 실행 흐름은 여기서만
type Runner struct {
	cache        *cache.Layered
	fundamentals bars.FundamentalsSource // optional
	scorer       *scoring.Engine
	builder      *pool.Builder
	sink         Sink // optional
	workers      int
	logger       *logger.Logger
}

// NewRunner wires a batch runner. fundamentals and sink may be nil.
func NewRunner(layered *cache.Layered, fundamentals bars.FundamentalsSource, scorer *scoring.Engine, builder *pool.Builder, sink Sink, workers int, log *logger.Logger) *Runner {
	if workers < 1 {
		workers = 1
	}
	return &Runner{
		cache:        layered,
		fundamentals: fundamentals,
		scorer:       scorer,
		builder:      builder,
		sink:         sink,
		workers:      workers,
		logger:       log,
	}
}

// RunResult carries the batch outcome: the pools, every scored
// candidate, and the contained per-instrument failures.
type RunResult struct {
	Pools    *contracts.PoolSet
	Scored   []contracts.ScoredCandidate
	Issues   []contracts.Issue
	Started  time.Time
	Finished time.Time
	Skipped  int
}

// Run processes one instrument batch. Instruments fail individually;
// the batch fails only when cancelled or when no instrument had data
// at all. On cancellation nothing is persisted.
func (r *Runner) Run(ctx context.Context, instruments []string, asOf time.Time) (*RunResult, error) {
	if len(instruments) == 0 {
		return nil, errors.New("empty instrument batch")
	}

	result := &RunResult{Started: time.Now()}

	var mu sync.Mutex
	unavailable := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for _, instrument := range instruments {
		instrument := instrument
		g.Go(func() error {
			// 취소 협조: 종목 사이에서만 멈춘다
			if err := gctx.Err(); err != nil {
				return err
			}

			candidate, issues, err := r.processInstrument(gctx, instrument)

			mu.Lock()
			defer mu.Unlock()
			result.Issues = append(result.Issues, issues...)
			if err != nil {
				result.Skipped++
				if errors.Is(err, contracts.ErrDataUnavailable) {
					unavailable++
				}
				return nil // contained
			}
			result.Scored = append(result.Scored, candidate)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		// Cancelled mid-batch: partial pools are discarded
		r.logger.WithError(err).Warn("Batch cancelled, discarding partial results")
		return nil, err
	}

	if unavailable == len(instruments) {
		return nil, fmt.Errorf("batch of %d instruments: %w", len(instruments), contracts.ErrDataUnavailable)
	}

	result.Pools = r.builder.Build(result.Scored, asOf)
	result.Finished = time.Now()

	if r.sink != nil {
		if err := r.sink.SavePoolSet(ctx, result.Pools); err != nil {
			result.Issues = append(result.Issues, contracts.Issue{
				Stage: "persist",
				Err:   err.Error(),
			})
			r.logger.WithError(err).Error("Failed to persist pool set")
		}
	}

	r.logger.WithFields(map[string]interface{}{
		"instruments": len(instruments),
		"scored":      len(result.Scored),
		"skipped":     result.Skipped,
		"issues":      len(result.Issues),
		"duration":    result.Finished.Sub(result.Started),
	}).Info("Batch completed")
	return result, nil
}

// processInstrument runs the full derivation and scoring pass for one
// instrument. Indicator failures are contained as issues; only missing
// bar data skips the instrument.
func (r *Runner) processInstrument(ctx context.Context, instrument string) (contracts.ScoredCandidate, []contracts.Issue, error) {
	var issues []contracts.Issue
	latest := make(map[string]float64)

	for _, name := range scoringIndicators {
		entry, err := r.cache.GetOrComputeBasic(ctx, instrument, name, nil)
		if err != nil {
			if errors.Is(err, contracts.ErrDataUnavailable) {
				issues = append(issues, issueFor(instrument, name, "fetch", err))
				return contracts.ScoredCandidate{}, issues, err
			}
			issues = append(issues, issueFor(instrument, name, "indicator", err))
			continue
		}
		flatten(latest, name, entry.Result)
	}

	for _, name := range enrichmentComposites {
		entry, err := r.cache.GetOrComputeComposite(ctx, instrument, name)
		if err != nil {
			issues = append(issues, issueFor(instrument, name, "indicator", err))
			continue
		}
		flatten(latest, name, entry.Result)
	}

	fundamentals := contracts.EmptyFundamentals()
	if r.fundamentals != nil {
		f, err := r.fundamentals.FetchFundamentals(ctx, instrument, time.Now())
		if err != nil {
			issues = append(issues, issueFor(instrument, "", "fetch", err))
		} else {
			fundamentals = f
		}
	}

	candidate := r.scorer.Score(scoring.Input{
		Instrument:   instrument,
		Fundamentals: fundamentals,
		LatestValues: latest,
	})
	return candidate, issues, nil
}

// flatten folds a result's newest valid values into the latest-value
// map: single-component results under the indicator name, bundles
// under NAME_COMPONENT.
func flatten(latest map[string]float64, indicatorName string, result *contracts.IndicatorResult) {
	values := result.LatestValues()
	if len(values) == 1 {
		for _, v := range values {
			latest[indicatorName] = v
		}
		return
	}
	for component, v := range values {
		if strings.EqualFold(component, indicatorName) {
			// MACD's macd line lands under plain "MACD"
			latest[indicatorName] = v
			continue
		}
		latest[indicatorName+"_"+strings.ToUpper(component)] = v
	}
}

func issueFor(instrument, indicator, stage string, err error) contracts.Issue {
	return contracts.Issue{
		Instrument: instrument,
		Indicator:  indicator,
		Stage:      stage,
		Err:        err.Error(),
	}
}
