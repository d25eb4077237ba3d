package indicator

import (
	"fmt"
	"sort"
	"sync"

	"github.com/wonny/stockpool/internal/contracts"
)

// Params holds numeric indicator parameters (periods, multipliers)
type Params map[string]float64

// merged overlays p on top of defaults without mutating either
func (p Params) merged(defaults Params) Params {
	out := make(Params, len(defaults)+len(p))
	for k, v := range defaults {
		out[k] = v
	}
	for k, v := range p {
		out[k] = v
	}
	return out
}

func (p Params) period(key string, fallback int) int {
	if v, ok := p[key]; ok && v >= 1 {
		return int(v)
	}
	return fallback
}

func (p Params) value(key string, fallback float64) float64 {
	if v, ok := p[key]; ok {
		return v
	}
	return fallback
}

// computeFunc produces raw component arrays, one per declared output,
// each aligned 1:1 with the source bar index.
type computeFunc func(series *contracts.BarSeries, p Params) map[string][]float64

// Spec declares one computable indicator: its inputs, outputs, default
// parameters and both computation paths.
type Spec struct {
	Name     string
	Category string // trend, momentum, volatility, volume
	Inputs   []contracts.Column
	Outputs  []string
	Defaults Params

	// warmup is the number of leading positions without a defined value;
	// the engine masks them to NaN on both paths.
	warmup func(p Params) int

	primary  computeFunc
	fallback computeFunc
}

// MinBars is the shortest series that yields at least one defined value
func (s Spec) MinBars(p Params) int {
	return s.warmup(p.merged(s.Defaults)) + 1
}

// Registry is the immutable catalog of computable indicators.
// ⭐ SSOT: 지표 정의는 여기서만
type Registry struct {
	mu    sync.RWMutex
	specs map[string]Spec
}

// NewRegistry builds the registry with the built-in catalog
func NewRegistry() *Registry {
	r := &Registry{specs: make(map[string]Spec)}
	for _, spec := range builtinSpecs() {
		r.specs[spec.Name] = spec
	}
	return r
}

// Lookup returns the spec for a name
func (r *Registry) Lookup(name string) (Spec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.specs[name]
	return spec, ok
}

// Register adds a spec; duplicate names are rejected
func (r *Registry) Register(spec Spec) error {
	if spec.Name == "" || spec.primary == nil || spec.fallback == nil || len(spec.Outputs) == 0 {
		return fmt.Errorf("incomplete indicator spec %q", spec.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.specs[spec.Name]; exists {
		return fmt.Errorf("indicator %q already registered", spec.Name)
	}
	r.specs[spec.Name] = spec
	return nil
}

// Names returns all registered indicator names, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.specs))
	for name := range r.specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered specs
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.specs)
}

// builtinSpecs lists the stock catalog. Periodized families get one
// spec per conventional period; parameters can still be overridden per
// computation.
func builtinSpecs() []Spec {
	closeOnly := []contracts.Column{contracts.ColumnClose}
	hlc := []contracts.Column{contracts.ColumnHigh, contracts.ColumnLow, contracts.ColumnClose}

	periodWarmup := func(p Params) int { return p.period("period", 1) - 1 }

	specs := []Spec{}

	for _, period := range []int{5, 10, 20, 60} {
		specs = append(specs, Spec{
			Name:     fmt.Sprintf("SMA_%d", period),
			Category: "trend",
			Inputs:   closeOnly,
			Outputs:  []string{"sma"},
			Defaults: Params{"period": float64(period)},
			warmup:   periodWarmup,
			primary:  primarySMA,
			fallback: fallbackSMA,
		})
	}

	for _, period := range []int{5, 10, 12, 20, 26} {
		specs = append(specs, Spec{
			Name:     fmt.Sprintf("EMA_%d", period),
			Category: "trend",
			Inputs:   closeOnly,
			Outputs:  []string{"ema"},
			Defaults: Params{"period": float64(period)},
			warmup:   periodWarmup,
			primary:  primaryEMA,
			fallback: fallbackEMA,
		})
	}

	specs = append(specs,
		Spec{
			Name:     "WMA",
			Category: "trend",
			Inputs:   closeOnly,
			Outputs:  []string{"wma"},
			Defaults: Params{"period": 5},
			warmup:   periodWarmup,
			primary:  primaryWMA,
			fallback: fallbackWMA,
		},
	)

	for _, period := range []int{7, 14} {
		specs = append(specs, Spec{
			Name:     fmt.Sprintf("RSI_%d", period),
			Category: "momentum",
			Inputs:   closeOnly,
			Outputs:  []string{"rsi"},
			Defaults: Params{"period": float64(period)},
			warmup:   func(p Params) int { return p.period("period", 14) },
			primary:  primaryRSI,
			fallback: fallbackRSI,
		})
	}

	specs = append(specs,
		Spec{
			Name:     "MACD",
			Category: "momentum",
			Inputs:   closeOnly,
			Outputs:  []string{"macd", "signal", "hist"},
			Defaults: Params{"fast": 12, "slow": 26, "signal": 9},
			warmup: func(p Params) int {
				return p.period("slow", 26) + p.period("signal", 9) - 2
			},
			primary:  primaryMACD,
			fallback: fallbackMACD,
		},
		Spec{
			Name:     "BOLL",
			Category: "volatility",
			Inputs:   closeOnly,
			Outputs:  []string{"upper", "middle", "lower"},
			Defaults: Params{"period": 20, "stddev": 2},
			warmup:   periodWarmup,
			primary:  primaryBOLL,
			fallback: fallbackBOLL,
		},
		Spec{
			Name:     "STOCH",
			Category: "momentum",
			Inputs:   hlc,
			Outputs:  []string{"k", "d"},
			Defaults: Params{"fastk": 14, "slowk": 3, "slowd": 3},
			warmup: func(p Params) int {
				return p.period("fastk", 14) + p.period("slowk", 3) + p.period("slowd", 3) - 3
			},
			primary:  primarySTOCH,
			fallback: fallbackSTOCH,
		},
		Spec{
			Name:     "ATR_14",
			Category: "volatility",
			Inputs:   hlc,
			Outputs:  []string{"atr"},
			Defaults: Params{"period": 14},
			warmup:   func(p Params) int { return p.period("period", 14) },
			primary:  primaryATR,
			fallback: fallbackATR,
		},
		Spec{
			Name:     "OBV",
			Category: "volume",
			Inputs:   []contracts.Column{contracts.ColumnClose, contracts.ColumnVolume},
			Outputs:  []string{"obv"},
			Defaults: Params{},
			warmup:   func(Params) int { return 0 },
			primary:  primaryOBV,
			fallback: fallbackOBV,
		},
		Spec{
			Name:     "ROC",
			Category: "momentum",
			Inputs:   closeOnly,
			Outputs:  []string{"roc"},
			Defaults: Params{"period": 10},
			warmup:   func(p Params) int { return p.period("period", 10) },
			primary:  primaryROC,
			fallback: fallbackROC,
		},
		Spec{
			Name:     "VOLATILITY_20D",
			Category: "volatility",
			Inputs:   closeOnly,
			Outputs:  []string{"volatility"},
			Defaults: Params{"period": 20},
			warmup:   func(p Params) int { return p.period("period", 20) },
			primary:  primaryVolatility,
			fallback: fallbackVolatility,
		},
	)

	for _, period := range []int{5, 10, 20} {
		specs = append(specs, Spec{
			Name:     fmt.Sprintf("VOLUME_SMA_%d", period),
			Category: "volume",
			Inputs:   []contracts.Column{contracts.ColumnVolume},
			Outputs:  []string{"volume_sma"},
			Defaults: Params{"period": float64(period)},
			warmup:   periodWarmup,
			primary:  primaryVolumeSMA,
			fallback: fallbackVolumeSMA,
		})
	}

	specs = append(specs, Spec{
		Name:     "VOLUME_RATIO",
		Category: "volume",
		Inputs:   []contracts.Column{contracts.ColumnVolume},
		Outputs:  []string{"volume_ratio"},
		Defaults: Params{"period": 20},
		warmup:   periodWarmup,
		primary:  primaryVolumeRatio,
		fallback: fallbackVolumeRatio,
	})

	return specs
}
