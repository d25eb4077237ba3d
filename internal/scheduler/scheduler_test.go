package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/stockpool/pkg/logger"
)

type stubJob struct {
	name     string
	schedule string
	failN    int32 // fail the first N runs
	runs     atomic.Int32
}

func (j *stubJob) Name() string     { return j.name }
func (j *stubJob) Schedule() string { return j.schedule }

func (j *stubJob) Run(ctx context.Context) error {
	n := j.runs.Add(1)
	if n <= j.failN {
		return fmt.Errorf("run %d failed", n)
	}
	return nil
}

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	return New(context.Background(), logger.Nop()).WithRetry(2, time.Millisecond)
}

func TestAddJobRejectsDuplicates(t *testing.T) {
	s := newTestScheduler(t)

	job := &stubJob{name: "rebuild_pools", schedule: "0 30 15 * * MON-FRI"}
	require.NoError(t, s.AddJob(job))

	err := s.AddJob(&stubJob{name: "rebuild_pools", schedule: "@daily"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	assert.Equal(t, []string{"rebuild_pools"}, s.GetAllJobs())
}

func TestAddJobRejectsBadSchedule(t *testing.T) {
	s := newTestScheduler(t)

	err := s.AddJob(&stubJob{name: "broken", schedule: "not a cron expression"})
	require.Error(t, err)

	assert.Empty(t, s.GetAllJobs())
}

func TestRunJobUnknownName(t *testing.T) {
	s := newTestScheduler(t)

	err := s.RunJob("missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestRunJobRecordsSuccess(t *testing.T) {
	s := newTestScheduler(t)

	job := &stubJob{name: "cache_report", schedule: "0 0 * * * *"}
	require.NoError(t, s.AddJob(job))

	s.runJob(job)

	history, err := s.GetJobHistory("cache_report")
	require.NoError(t, err)
	require.Len(t, history.Results, 1)

	result := history.Results[0]
	assert.True(t, result.Success)
	assert.Empty(t, result.Error)
	assert.Equal(t, int32(1), job.runs.Load())
}

func TestRunJobRetriesUntilSuccess(t *testing.T) {
	s := newTestScheduler(t)

	job := &stubJob{name: "flaky", schedule: "@hourly", failN: 2}
	require.NoError(t, s.AddJob(job))

	s.runJob(job)

	history, err := s.GetJobHistory("flaky")
	require.NoError(t, err)
	require.Len(t, history.Results, 1)
	assert.True(t, history.Results[0].Success)

	// 2 failures + 1 success within maxRetries=2
	assert.Equal(t, int32(3), job.runs.Load())
}

func TestRunJobExhaustsRetries(t *testing.T) {
	s := newTestScheduler(t)

	job := &stubJob{name: "doomed", schedule: "@hourly", failN: 100}
	require.NoError(t, s.AddJob(job))

	s.runJob(job)

	history, err := s.GetJobHistory("doomed")
	require.NoError(t, err)
	require.Len(t, history.Results, 1)

	result := history.Results[0]
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "failed")

	// initial attempt + 2 retries
	assert.Equal(t, int32(3), job.runs.Load())
}

func TestRunJobStopsWhenBaseContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New(ctx, logger.Nop()).WithRetry(2, time.Millisecond)
	job := &stubJob{name: "cancelled", schedule: "@hourly"}
	require.NoError(t, s.AddJob(job))

	s.runJob(job)

	history, err := s.GetJobHistory("cancelled")
	require.NoError(t, err)
	require.Len(t, history.Results, 1)
	assert.False(t, history.Results[0].Success)
	assert.Equal(t, int32(0), job.runs.Load())
}

func TestRunJobWait(t *testing.T) {
	s := newTestScheduler(t)

	require.NoError(t, s.AddJob(&stubJob{name: "ok", schedule: "@daily"}))
	require.NoError(t, s.AddJob(&stubJob{name: "bad", schedule: "@daily", failN: 100}))

	require.NoError(t, s.RunJobWait("ok"))

	err := s.RunJobWait("bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad failed")

	err = s.RunJobWait("missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestGetJobStats(t *testing.T) {
	s := newTestScheduler(t)

	ok := &stubJob{name: "steady", schedule: "@daily"}
	bad := &stubJob{name: "shaky", schedule: "@daily", failN: 100}
	require.NoError(t, s.AddJob(ok))
	require.NoError(t, s.AddJob(bad))

	s.runJob(ok)
	s.runJob(ok)
	s.runJob(bad)

	stats := s.GetJobStats()
	require.Len(t, stats, 2)

	steady := stats["steady"]
	assert.Equal(t, 2, steady.TotalRuns)
	assert.Equal(t, 2, steady.SuccessCount)
	assert.Equal(t, 0, steady.FailureCount)
	assert.InDelta(t, 1.0, steady.SuccessRate, 1e-9)
	require.NotNil(t, steady.LastSuccess)
	assert.Nil(t, steady.LastFailure)

	shaky := stats["shaky"]
	assert.Equal(t, 1, shaky.TotalRuns)
	assert.Equal(t, 1, shaky.FailureCount)
	assert.InDelta(t, 0.0, shaky.SuccessRate, 1e-9)
	require.NotNil(t, shaky.LastFailure)
}

func TestJobHistoryKeepsRecentResults(t *testing.T) {
	history := &JobHistory{}
	for i := 0; i < historyLimit+20; i++ {
		history.AddResult(JobResult{JobName: "x", Success: i%2 == 0})
	}

	assert.Len(t, history.Results, historyLimit)

	latest := history.GetLatestResults(3)
	require.Len(t, latest, 3)

	assert.NotEmpty(t, history.GetFailedResults())
	assert.InDelta(t, 0.5, history.GetSuccessRate(), 0.02)
}

func TestSchedulerStartStop(t *testing.T) {
	s := newTestScheduler(t)
	require.NoError(t, s.AddJob(&stubJob{name: "idle", schedule: "0 0 3 * * *"}))

	s.Start()
	s.Stop()
}
