package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/stockpool/internal/pipeline"
	"github.com/wonny/stockpool/pkg/logger"
)

// RebuildPoolsJob rebuilds the selection pools daily after market close
// ⭐ SSOT: 풀 재구성 스케줄은 이 Job에서만
type RebuildPoolsJob struct {
	runner      *pipeline.Runner
	instruments []string
	schedule    string
	logger      *logger.Logger
}

// NewRebuildPoolsJob creates a new pool rebuild job
func NewRebuildPoolsJob(runner *pipeline.Runner, instruments []string, schedule string, log *logger.Logger) *RebuildPoolsJob {
	return &RebuildPoolsJob{
		runner:      runner,
		instruments: instruments,
		schedule:    schedule,
		logger:      log,
	}
}

// Name returns the job name
func (j *RebuildPoolsJob) Name() string {
	return "rebuild_pools"
}

// Schedule returns the cron schedule (default: 3:30 PM on trading days)
func (j *RebuildPoolsJob) Schedule() string {
	return j.schedule
}

// Run executes a full pool rebuild over the configured universe
func (j *RebuildPoolsJob) Run(ctx context.Context) error {
	if len(j.instruments) == 0 {
		return fmt.Errorf("no instruments configured for pool rebuild")
	}

	asOf := time.Now()
	j.logger.WithFields(map[string]interface{}{
		"instruments": len(j.instruments),
		"as_of":       asOf.Format("2006-01-02"),
	}).Info("Starting scheduled pool rebuild")

	result, err := j.runner.Run(ctx, j.instruments, asOf)
	if err != nil {
		return fmt.Errorf("pool rebuild: %w", err)
	}

	for _, issue := range result.Issues {
		j.logger.WithFields(map[string]interface{}{
			"instrument": issue.Instrument,
			"indicator":  issue.Indicator,
			"stage":      issue.Stage,
			"error":      issue.Err,
		}).Warn("Instrument skipped or degraded during rebuild")
	}

	j.logger.WithFields(map[string]interface{}{
		"basic":    len(result.Pools.Basic.Members),
		"watch":    len(result.Pools.Watch.Members),
		"core":     len(result.Pools.Core.Members),
		"scored":   len(result.Scored),
		"skipped":  result.Skipped,
		"duration": result.Finished.Sub(result.Started),
	}).Info("Scheduled pool rebuild completed")

	return nil
}
