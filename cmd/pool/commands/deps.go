package commands

import (
	"fmt"

	"github.com/wonny/stockpool/internal/bars"
	"github.com/wonny/stockpool/internal/cache"
	"github.com/wonny/stockpool/internal/indicator"
	"github.com/wonny/stockpool/internal/pipeline"
	"github.com/wonny/stockpool/internal/pool"
	"github.com/wonny/stockpool/internal/scoring"
	"github.com/wonny/stockpool/pkg/config"
	"github.com/wonny/stockpool/pkg/database"
	"github.com/wonny/stockpool/pkg/logger"
	"github.com/wonny/stockpool/pkg/redis"
)

// app holds the wired dependency graph shared by the CLI commands
type app struct {
	cfg *config.Config
	log *logger.Logger
	db  *database.DB  // nil without DATABASE_URL
	rdb *redis.Client // nil when disabled

	store    *bars.Store
	cache    *cache.Layered
	poolRepo *pool.Repository // nil without db
	runner   *pipeline.Runner
}

// initApp wires the full dependency graph. The database and Redis are
// optional collaborators; without them the pipeline runs in-memory only.
// ⭐ 의존성 조립은 여기서만
func initApp() (*app, func(), error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	cleanups := []func(){}
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	// 3. Connect to database (optional)
	var db *database.DB
	if cfg.Database.URL != "" {
		db, err = database.New(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to database: %w", err)
		}
		cleanups = append(cleanups, db.Close)
	}

	// 4. Connect to Redis (optional)
	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb, err = redis.New(cfg)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("connect to redis: %w", err)
		}
		cleanups = append(cleanups, func() { _ = rdb.Close() })
	}

	// 5. Vendor client with optional shared rate limit
	vendor := bars.NewVendorClient(cfg, log)
	if rdb != nil {
		vendor.WithSharedLimiter(redis.NewRateLimiter(rdb, "stockpool"))
	}

	// 6. Bar store (Layer 1)
	storeOpts := bars.Options{
		TTL:       cfg.Cache.BarTTL,
		Lookback:  cfg.Pipeline.Lookback,
		FetchWait: cfg.Pipeline.FetchWait,
	}
	if db != nil {
		storeOpts.Repo = bars.NewRepository(db.Pool)
	}
	if rdb != nil && cfg.Cache.WarmCache {
		storeOpts.Warm = redis.NewCache(rdb, "stockpool")
		storeOpts.WarmTTL = cfg.Cache.WarmTTL
	}
	store := bars.NewStore(vendor, storeOpts, log)

	// 7. Indicator engine and layered cache (Layers 2/3)
	registry := indicator.NewRegistry()
	engine := indicator.NewEngine(registry, cfg.Cache.AuditRatio, log)
	layered := cache.NewLayered(store, engine, cfg.Pipeline.Timeframe, cfg.Cache.Shards, nil, log)

	// 8. Scoring funnel
	scorer := scoring.NewEngine(log)
	builder := pool.NewBuilder(
		pool.Caps{Basic: cfg.Pool.BasicCap, Watch: cfg.Pool.WatchCap, Core: cfg.Pool.CoreCap},
		pool.Thresholds{WatchMin: cfg.Pool.WatchMin, CoreMin: cfg.Pool.CoreMin},
		log,
	)

	// 9. Pool persistence (optional)
	var poolRepo *pool.Repository
	var sink pipeline.Sink
	if db != nil {
		poolRepo = pool.NewRepository(db.Pool)
		sink = poolRepo
	}

	// 10. Pipeline runner; fundamentals go through the warm cache when
	// Redis is up
	var fundamentals bars.FundamentalsSource = vendor
	if rdb != nil {
		fundamentals = bars.NewCachedFundamentals(vendor, redis.NewCache(rdb, "stockpool"), log)
	}
	runner := pipeline.NewRunner(layered, fundamentals, scorer, builder, sink, cfg.Pipeline.Workers, log)

	return &app{
		cfg:      cfg,
		log:      log,
		db:       db,
		rdb:      rdb,
		store:    store,
		cache:    layered,
		poolRepo: poolRepo,
		runner:   runner,
	}, cleanup, nil
}

// requireDB returns the wired pool repository or an instructive error
func (a *app) requireDB() (*pool.Repository, error) {
	if a.poolRepo == nil {
		return nil, fmt.Errorf("DATABASE_URL is not set; this command needs PostgreSQL")
	}
	return a.poolRepo, nil
}
