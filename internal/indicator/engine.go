package indicator

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/wonny/stockpool/internal/contracts"
	"github.com/wonny/stockpool/pkg/logger"
)

// Method records which computation path produced a result
type Method string

const (
	MethodPrimary  Method = "primary"
	MethodFallback Method = "fallback"
	MethodFailed   Method = "failed"
)

// equivalenceTolerance is the relative tolerance under which the two
// computation paths are considered to agree.
const equivalenceTolerance = 1e-6

// Engine computes indicators over bar series. The primary path runs
// through the TA library; when it fails the fallback arithmetic path is
// used instead. A configurable fraction of primary computations is
// audited against the fallback.
// ⭐ SSOT: 지표 계산 실행은 여기서만
type Engine struct {
	registry   *Registry
	auditRatio float64
	logger     *logger.Logger
}

// NewEngine creates an engine over the given registry.
// auditRatio in [0,1] is the fraction of primary computations that also
// run the fallback for comparison.
func NewEngine(registry *Registry, auditRatio float64, log *logger.Logger) *Engine {
	return &Engine{
		registry:   registry,
		auditRatio: math.Min(math.Max(auditRatio, 0), 1),
		logger:     log,
	}
}

// Registry exposes the engine's catalog
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Compute runs one indicator over a series. params overrides the spec
// defaults. A series shorter than the indicator's minimum yields a
// shape-correct all-NaN result, not an error.
func (e *Engine) Compute(series *contracts.BarSeries, name string, params Params) (*contracts.IndicatorResult, Method, error) {
	spec, ok := e.registry.Lookup(name)
	if !ok {
		return nil, MethodFailed, fmt.Errorf("unknown indicator %q", name)
	}

	for _, col := range spec.Inputs {
		if !series.HasColumn(col) {
			return nil, MethodFailed, &contracts.MissingColumnError{Indicator: name, Column: col}
		}
	}

	effective := params.merged(spec.Defaults)
	warmup := spec.warmup(effective)

	if series.Len() <= warmup {
		e.logger.WithFields(map[string]interface{}{
			"indicator": name,
			"bars":      series.Len(),
			"min_bars":  warmup + 1,
		}).Debug("Series too short for indicator, returning empty result")
		return emptyResult(series, spec), MethodPrimary, nil
	}

	raw, err := runPath(spec.primary, series, effective)
	method := MethodPrimary
	if err == nil {
		err = validateShape(raw, spec, series.Len())
	}
	if err != nil {
		e.logger.WithError(err).WithField("indicator", name).Warn("Primary indicator path failed, using fallback")

		raw, err = runPath(spec.fallback, series, effective)
		method = MethodFallback
		if err == nil {
			err = validateShape(raw, spec, series.Len())
		}
		if err != nil {
			return nil, MethodFailed, fmt.Errorf("indicator %s: both paths failed: %w", name, err)
		}
	}

	if method == MethodPrimary && e.auditRatio > 0 && rand.Float64() < e.auditRatio {
		e.audit(series, spec, effective, warmup, raw)
	}

	return buildResult(series, spec, raw, warmup), method, nil
}

// runPath executes one computation path, converting panics into errors
func runPath(fn computeFunc, series *contracts.BarSeries, p Params) (out map[string][]float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("computation panicked: %v", r)
		}
	}()
	return fn(series, p), nil
}

// validateShape checks the declared output contract: exactly the
// declared component names, all full length.
func validateShape(raw map[string][]float64, spec Spec, n int) error {
	if len(raw) != len(spec.Outputs) {
		return fmt.Errorf("indicator %s: produced %d components, declared %d", spec.Name, len(raw), len(spec.Outputs))
	}
	for _, name := range spec.Outputs {
		values, ok := raw[name]
		if !ok {
			return fmt.Errorf("indicator %s: declared component %q missing from output", spec.Name, name)
		}
		if len(values) != n {
			return fmt.Errorf("indicator %s[%s]: %d values for %d bars", spec.Name, name, len(values), n)
		}
	}
	return nil
}

// audit compares the primary output against the fallback path and logs
// divergence beyond tolerance. The primary result is kept either way.
func (e *Engine) audit(series *contracts.BarSeries, spec Spec, p Params, warmup int, primary map[string][]float64) {
	fallback, err := runPath(spec.fallback, series, p)
	if err != nil || validateShape(fallback, spec, series.Len()) != nil {
		return
	}

	for _, name := range spec.Outputs {
		pv, fv := primary[name], fallback[name]
		for i := warmup; i < len(pv); i++ {
			if math.IsNaN(pv[i]) || math.IsNaN(fv[i]) {
				continue
			}
			if !withinTolerance(pv[i], fv[i]) {
				divergence := &contracts.DivergenceError{
					Indicator: spec.Name,
					Component: name,
					Index:     i,
					Primary:   pv[i],
					Fallback:  fv[i],
				}
				e.logger.WithFields(map[string]interface{}{
					"indicator": spec.Name,
					"component": name,
					"index":     i,
				}).Warn(divergence.Error())
				break
			}
		}
	}
}

func withinTolerance(a, b float64) bool {
	diff := math.Abs(a - b)
	scale := math.Max(math.Abs(a), math.Abs(b))
	if scale < 1 {
		scale = 1
	}
	return diff <= equivalenceTolerance*scale
}

// buildResult masks warm-up positions to NaN and attaches the source
// timestamp index to every component.
func buildResult(series *contracts.BarSeries, spec Spec, raw map[string][]float64, warmup int) *contracts.IndicatorResult {
	timestamps := series.Timestamps()

	components := make(map[string]*contracts.Series, len(spec.Outputs))
	for _, name := range spec.Outputs {
		values := raw[name]
		for i := 0; i < warmup && i < len(values); i++ {
			values[i] = math.NaN()
		}
		components[name] = &contracts.Series{Timestamps: timestamps, Values: values}
	}
	return &contracts.IndicatorResult{Indicator: spec.Name, Components: components}
}

// emptyResult is the shape-correct all-NaN result for too-short series
func emptyResult(series *contracts.BarSeries, spec Spec) *contracts.IndicatorResult {
	timestamps := series.Timestamps()

	components := make(map[string]*contracts.Series, len(spec.Outputs))
	for _, name := range spec.Outputs {
		values := make([]float64, series.Len())
		for i := range values {
			values[i] = math.NaN()
		}
		components[name] = &contracts.Series{Timestamps: timestamps, Values: values}
	}
	return &contracts.IndicatorResult{Indicator: spec.Name, Components: components}
}

// ComputeAll runs every registered indicator over a series, returning
// per-indicator results keyed by name plus the time spent.
func (e *Engine) ComputeAll(series *contracts.BarSeries) (map[string]*contracts.IndicatorResult, time.Duration) {
	start := time.Now()
	results := make(map[string]*contracts.IndicatorResult)

	for _, name := range e.registry.Names() {
		result, _, err := e.Compute(series, name, nil)
		if err != nil {
			e.logger.WithError(err).WithFields(map[string]interface{}{
				"indicator":  name,
				"instrument": series.Instrument,
			}).Warn("Indicator computation failed")
			continue
		}
		results[name] = result
	}
	return results, time.Since(start)
}
