package pool

import (
	"sort"
	"time"

	"github.com/wonny/stockpool/internal/contracts"
	"github.com/wonny/stockpool/pkg/logger"
)

// Caps bound the member count of each pool
type Caps struct {
	Basic int
	Watch int
	Core  int
}

// Thresholds are the promotion score floors
type Thresholds struct {
	WatchMin float64
	CoreMin  float64
}

// Builder assembles the nested pools from scored candidates. Watch
// members are drawn from the basic pool and core members from the
// watch pool, so containment holds by construction.
// ⭐ SSOT: 풀 구성은 여기서만
type Builder struct {
	caps       Caps
	thresholds Thresholds
	logger     *logger.Logger
}

// NewBuilder creates a pool builder
func NewBuilder(caps Caps, thresholds Thresholds, log *logger.Logger) *Builder {
	return &Builder{caps: caps, thresholds: thresholds, logger: log}
}

// Build produces the pool set for one as-of date. Identical input
// always yields identical pools: ordering is by score descending with
// ties broken by instrument id ascending.
func (b *Builder) Build(candidates []contracts.ScoredCandidate, asOf time.Time) *contracts.PoolSet {
	accepted := make([]contracts.ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		if !c.Rejected() {
			accepted = append(accepted, c)
		}
	}

	basic := rank(accepted, func(c contracts.ScoredCandidate) float64 { return c.BasicScore })
	basic = truncate(basic, b.caps.Basic)

	watch := filter(basic, func(c contracts.ScoredCandidate) bool {
		return c.WatchScore >= b.thresholds.WatchMin
	})
	watch = rank(watch, func(c contracts.ScoredCandidate) float64 { return c.WatchScore })
	watch = truncate(watch, b.caps.Watch)

	core := filter(watch, func(c contracts.ScoredCandidate) bool {
		return c.CoreScore >= b.thresholds.CoreMin
	})
	core = rank(core, func(c contracts.ScoredCandidate) float64 { return c.CoreScore })
	core = truncate(core, b.caps.Core)

	b.logger.WithFields(map[string]interface{}{
		"scored": len(candidates),
		"basic":  len(basic),
		"watch":  len(watch),
		"core":   len(core),
	}).Info("Pools built")

	return &contracts.PoolSet{
		AsOf:  asOf,
		Basic: &contracts.Pool{Name: contracts.PoolBasic, AsOf: asOf, Members: basic},
		Watch: &contracts.Pool{Name: contracts.PoolWatch, AsOf: asOf, Members: watch},
		Core:  &contracts.Pool{Name: contracts.PoolCore, AsOf: asOf, Members: core},
	}
}

// rank sorts a copy by score descending, instrument ascending on ties
func rank(candidates []contracts.ScoredCandidate, score func(contracts.ScoredCandidate) float64) []contracts.ScoredCandidate {
	out := make([]contracts.ScoredCandidate, len(candidates))
	copy(out, candidates)

	sort.SliceStable(out, func(i, j int) bool {
		si, sj := score(out[i]), score(out[j])
		if si != sj {
			return si > sj
		}
		return out[i].Instrument < out[j].Instrument
	})
	return out
}

func filter(candidates []contracts.ScoredCandidate, keep func(contracts.ScoredCandidate) bool) []contracts.ScoredCandidate {
	out := make([]contracts.ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}

func truncate(candidates []contracts.ScoredCandidate, limit int) []contracts.ScoredCandidate {
	if limit > 0 && len(candidates) > limit {
		return candidates[:limit]
	}
	return candidates
}
