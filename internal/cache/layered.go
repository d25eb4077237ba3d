package cache

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/wonny/stockpool/internal/bars"
	"github.com/wonny/stockpool/internal/contracts"
	"github.com/wonny/stockpool/internal/indicator"
	"github.com/wonny/stockpool/pkg/logger"
)

// Layer identifies one tier of the derivation cache
type Layer int

const (
	LayerBars      Layer = 1 // raw bar series
	LayerBasic     Layer = 2 // single-pass indicators
	LayerComposite Layer = 3 // derivations over basic results
)

// Entry is one cached derivation with its bookkeeping
type Entry struct {
	Key            Key
	Result         *contracts.IndicatorResult
	ComputedAt     time.Time
	SourceTrailing time.Time
	Method         indicator.Method
	Deps           []Key // composite entries only
	ReuseCount     int   // composite entries: warm deps reused at compute time
	ComputeTime    time.Duration
}

// LayerStats is the per-layer counter snapshot
type LayerStats struct {
	Entries          int
	Hits             int
	Misses           int
	Computations     int
	Reused           int
	Primary          int
	Fallback         int
	Failed           int
	TotalComputeTime time.Duration
}

// AvgComputeTime is the mean time per computation
func (s LayerStats) AvgComputeTime() time.Duration {
	if s.Computations == 0 {
		return 0
	}
	return s.TotalComputeTime / time.Duration(s.Computations)
}

// Stats is the full cache snapshot
type Stats struct {
	Basic     LayerStats
	Composite LayerStats
}

// Layered is the in-memory derivation cache over a bar store: Layer 2
// holds single-pass indicator results, Layer 3 holds composites that
// reuse Layer 2 entries. Entries are sharded by instrument; concurrent
// computations of the same key collapse into one via singleflight.
// ⭐ SSOT: 지표 캐시 조회/저장은 여기서만
type Layered struct {
	bars        *bars.Store
	engine      *indicator.Engine
	derivations map[string]Derivation
	revDeps     map[string][]string // basic indicator -> dependent composites
	timeframe   string

	shards []*shard
	group  singleflight.Group

	statsMu sync.Mutex
	stats   Stats

	logger *logger.Logger
}

type shard struct {
	mu        sync.RWMutex
	basic     map[Key]*Entry
	composite map[Key]*Entry
}

// NewLayered creates the cache. shardCount must be >= 1; derivations
// nil means the default composite catalog.
func NewLayered(store *bars.Store, engine *indicator.Engine, timeframe string, shardCount int, derivations map[string]Derivation, log *logger.Logger) *Layered {
	if shardCount < 1 {
		shardCount = 1
	}
	if derivations == nil {
		derivations = DefaultDerivations()
	}

	shards := make([]*shard, shardCount)
	for i := range shards {
		shards[i] = &shard{
			basic:     make(map[Key]*Entry),
			composite: make(map[Key]*Entry),
		}
	}

	revDeps := make(map[string][]string)
	for name, deriv := range derivations {
		for _, dep := range deriv.Deps {
			revDeps[dep.Indicator] = append(revDeps[dep.Indicator], name)
		}
	}

	return &Layered{
		bars:        store,
		engine:      engine,
		derivations: derivations,
		revDeps:     revDeps,
		timeframe:   timeframe,
		shards:      shards,
		logger:      log,
	}
}

func (c *Layered) shardFor(instrument string) *shard {
	h := fnv.New32a()
	h.Write([]byte(instrument))
	return c.shards[int(h.Sum32())%len(c.shards)]
}

// GetOrComputeBasic returns the Layer 2 entry for (instrument,
// indicator, params), computing it when absent or stale. Identical
// concurrent requests share one computation.
func (c *Layered) GetOrComputeBasic(ctx context.Context, instrument, indicatorName string, params indicator.Params) (*Entry, error) {
	key := NewKey(instrument, indicatorName, params)

	if entry := c.freshBasic(key); entry != nil {
		c.count(func(s *Stats) { s.Basic.Hits++ })
		return entry, nil
	}

	v, err, _ := c.group.Do("basic|"+key.String(), func() (interface{}, error) {
		if entry := c.freshBasic(key); entry != nil {
			c.count(func(s *Stats) { s.Basic.Hits++ })
			return entry, nil
		}
		// 미스는 실제 계산과 함께 한 번만 센다
		c.count(func(s *Stats) { s.Basic.Misses++ })
		return c.computeBasic(ctx, key, instrument, indicatorName, params)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Entry), nil
}

// freshBasic returns the cached entry unless missing or stale
func (c *Layered) freshBasic(key Key) *Entry {
	sh := c.shardFor(key.Instrument)
	sh.mu.RLock()
	entry := sh.basic[key]
	sh.mu.RUnlock()

	if entry == nil {
		return nil
	}
	if IsStale(entry, c.bars.TrailingTimestamp(key.Instrument, c.timeframe)) {
		return nil
	}
	return entry
}

// computeBasic runs the engine and stores the entry. Bar fetches happen
// here, outside any shard lock.
func (c *Layered) computeBasic(ctx context.Context, key Key, instrument, indicatorName string, params indicator.Params) (*Entry, error) {
	series, err := c.bars.Get(ctx, instrument, c.timeframe)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, method, err := c.engine.Compute(series, indicatorName, params)
	elapsed := time.Since(start)

	if err != nil {
		c.count(func(s *Stats) { s.Basic.Failed++ })
		return nil, fmt.Errorf("compute %s for %s: %w", indicatorName, instrument, err)
	}

	entry := &Entry{
		Key:            key,
		Result:         result,
		ComputedAt:     time.Now(),
		SourceTrailing: series.TrailingTimestamp(),
		Method:         method,
		ComputeTime:    elapsed,
	}

	sh := c.shardFor(instrument)
	sh.mu.Lock()
	sh.basic[key] = entry
	sh.mu.Unlock()

	c.count(func(s *Stats) {
		s.Basic.Computations++
		s.Basic.TotalComputeTime += elapsed
		switch method {
		case indicator.MethodPrimary:
			s.Basic.Primary++
		case indicator.MethodFallback:
			s.Basic.Fallback++
		}
	})
	return entry, nil
}

// GetOrComputeComposite returns the Layer 3 entry for a named
// composite. Warm Layer 2 dependencies are reused and counted; cold
// ones cascade into the basic path.
func (c *Layered) GetOrComputeComposite(ctx context.Context, instrument, compositeName string) (*Entry, error) {
	deriv, ok := c.derivations[compositeName]
	if !ok {
		return nil, fmt.Errorf("unknown composite %q", compositeName)
	}

	key := NewKey(instrument, compositeName, nil)

	if entry := c.freshComposite(key); entry != nil {
		c.count(func(s *Stats) { s.Composite.Hits++ })
		return entry, nil
	}

	v, err, _ := c.group.Do("composite|"+key.String(), func() (interface{}, error) {
		if entry := c.freshComposite(key); entry != nil {
			c.count(func(s *Stats) { s.Composite.Hits++ })
			return entry, nil
		}
		c.count(func(s *Stats) { s.Composite.Misses++ })
		return c.computeComposite(ctx, key, instrument, deriv)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Entry), nil
}

func (c *Layered) freshComposite(key Key) *Entry {
	sh := c.shardFor(key.Instrument)
	sh.mu.RLock()
	entry := sh.composite[key]
	sh.mu.RUnlock()

	if entry == nil {
		return nil
	}
	if IsStale(entry, c.bars.TrailingTimestamp(key.Instrument, c.timeframe)) {
		return nil
	}
	return entry
}

func (c *Layered) computeComposite(ctx context.Context, key Key, instrument string, deriv Derivation) (*Entry, error) {
	series, err := c.bars.Get(ctx, instrument, c.timeframe)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	depSet := DepSet{Results: make(map[string]*contracts.IndicatorResult), Bars: series}
	depKeys := make([]Key, 0, len(deriv.Deps))
	reused := 0

	for _, ref := range deriv.Deps {
		depKey := NewKey(instrument, ref.Indicator, ref.Params)
		depKeys = append(depKeys, depKey)

		if warm := c.freshBasic(depKey); warm != nil {
			// 웜 의존성 재사용: 공개된 엔트리는 변경하지 않는다
			reused++
			c.count(func(s *Stats) { s.Basic.Reused++ })
			depSet.Results[ref.Indicator] = warm.Result
			continue
		}

		cold, err := c.GetOrComputeBasic(ctx, instrument, ref.Indicator, ref.Params)
		if err != nil {
			return nil, fmt.Errorf("composite %s dependency %s: %w", deriv.Name, ref.Indicator, err)
		}
		depSet.Results[ref.Indicator] = cold.Result
	}

	result, err := deriv.Resolve(depSet)
	elapsed := time.Since(start)
	if err != nil {
		c.count(func(s *Stats) { s.Composite.Failed++ })
		return nil, fmt.Errorf("resolve composite %s for %s: %w", deriv.Name, instrument, err)
	}

	entry := &Entry{
		Key:            key,
		Result:         result,
		ComputedAt:     time.Now(),
		SourceTrailing: series.TrailingTimestamp(),
		Method:         indicator.MethodPrimary,
		Deps:           depKeys,
		ReuseCount:     reused,
		ComputeTime:    elapsed,
	}

	sh := c.shardFor(instrument)
	sh.mu.Lock()
	sh.composite[key] = entry
	sh.mu.Unlock()

	c.count(func(s *Stats) {
		s.Composite.Computations++
		s.Composite.TotalComputeTime += elapsed
		s.Composite.Primary++
	})
	return entry, nil
}

// Invalidate drops cached entries for one instrument at the given
// layer and cascades downstream: bars clear both indicator layers,
// basic entries drag the composites that declared them as deps.
// Returns the number of dropped entries.
func (c *Layered) Invalidate(instrument string, layer Layer) int {
	sh := c.shardFor(instrument)

	dropped := 0
	switch layer {
	case LayerBars:
		c.bars.Evict(instrument, c.timeframe)
		sh.mu.Lock()
		dropped += dropInstrument(sh.basic, instrument)
		dropped += dropInstrument(sh.composite, instrument)
		sh.mu.Unlock()

	case LayerBasic:
		sh.mu.Lock()
		cascade := make(map[string]bool)
		for key := range sh.basic {
			if key.Instrument != instrument {
				continue
			}
			delete(sh.basic, key)
			dropped++
			for _, dependent := range c.revDeps[key.Indicator] {
				cascade[dependent] = true
			}
		}
		for key := range sh.composite {
			if key.Instrument == instrument && cascade[key.Indicator] {
				delete(sh.composite, key)
				dropped++
			}
		}
		sh.mu.Unlock()

	case LayerComposite:
		sh.mu.Lock()
		dropped += dropInstrument(sh.composite, instrument)
		sh.mu.Unlock()
	}

	if dropped > 0 {
		c.logger.WithFields(map[string]interface{}{
			"instrument": instrument,
			"layer":      int(layer),
			"dropped":    dropped,
		}).Debug("Cache entries invalidated")
	}
	return dropped
}

// InvalidateIndicator drops one basic entry family for an instrument
// plus every composite that declared it as a dependency.
func (c *Layered) InvalidateIndicator(instrument, indicatorName string) int {
	sh := c.shardFor(instrument)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	dropped := 0
	for key := range sh.basic {
		if key.Instrument == instrument && key.Indicator == indicatorName {
			delete(sh.basic, key)
			dropped++
		}
	}

	dependents := make(map[string]bool)
	for _, name := range c.revDeps[indicatorName] {
		dependents[name] = true
	}
	for key := range sh.composite {
		if key.Instrument == instrument && dependents[key.Indicator] {
			delete(sh.composite, key)
			dropped++
		}
	}
	return dropped
}

func dropInstrument(entries map[Key]*Entry, instrument string) int {
	dropped := 0
	for key := range entries {
		if key.Instrument == instrument {
			delete(entries, key)
			dropped++
		}
	}
	return dropped
}

// Derivations lists the registered composite names
func (c *Layered) Derivations() []string {
	names := make([]string, 0, len(c.derivations))
	for name := range c.derivations {
		names = append(names, name)
	}
	return names
}

// SnapshotStats returns a copy of the counters with live entry counts
func (c *Layered) SnapshotStats() Stats {
	c.statsMu.Lock()
	snapshot := c.stats
	c.statsMu.Unlock()

	for _, sh := range c.shards {
		sh.mu.RLock()
		snapshot.Basic.Entries += len(sh.basic)
		snapshot.Composite.Entries += len(sh.composite)
		sh.mu.RUnlock()
	}
	return snapshot
}

func (c *Layered) count(fn func(*Stats)) {
	c.statsMu.Lock()
	fn(&c.stats)
	c.statsMu.Unlock()
}
