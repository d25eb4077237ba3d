package jobs

import (
	"context"

	"github.com/wonny/stockpool/internal/cache"
	"github.com/wonny/stockpool/pkg/logger"
)

// CacheReportJob periodically logs layered cache statistics
type CacheReportJob struct {
	cache    *cache.Layered
	schedule string
	logger   *logger.Logger
}

// NewCacheReportJob creates a new cache report job
func NewCacheReportJob(layered *cache.Layered, schedule string, log *logger.Logger) *CacheReportJob {
	return &CacheReportJob{
		cache:    layered,
		schedule: schedule,
		logger:   log,
	}
}

// Name returns the job name
func (j *CacheReportJob) Name() string {
	return "cache_report"
}

// Schedule returns the cron schedule (default: hourly)
func (j *CacheReportJob) Schedule() string {
	return j.schedule
}

// Run logs a snapshot of the cache counters per layer
func (j *CacheReportJob) Run(ctx context.Context) error {
	stats := j.cache.SnapshotStats()

	for layer, s := range map[string]cache.LayerStats{
		"basic":     stats.Basic,
		"composite": stats.Composite,
	} {
		j.logger.WithFields(map[string]interface{}{
			"layer":            layer,
			"entries":          s.Entries,
			"hits":             s.Hits,
			"misses":           s.Misses,
			"computations":     s.Computations,
			"reused":           s.Reused,
			"primary":          s.Primary,
			"fallback":         s.Fallback,
			"failed":           s.Failed,
			"avg_compute_time": s.AvgComputeTime().String(),
		}).Info("Cache layer snapshot")
	}

	return nil
}
