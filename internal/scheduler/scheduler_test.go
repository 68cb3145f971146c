package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ibeckermayer/hnpipe/internal/logger"
	"github.com/ibeckermayer/hnpipe/internal/types"
)

func newTestScheduler(t *testing.T, timeout time.Duration) *Scheduler {
	t.Helper()
	s, err := New("UTC", timeout, logger.NewNop())
	require.NoError(t, err)
	return s
}

func noop(context.Context) error { return nil }

func TestNew_InvalidTimezone(t *testing.T) {
	_, err := New("Mars/Olympus", time.Minute, logger.NewNop())
	assert.Error(t, err)
}

func TestNew_DefaultTimeout(t *testing.T) {
	s := newTestScheduler(t, 0)
	assert.Equal(t, DefaultJobTimeout, s.timeout)
}

func TestAddPipelineJob(t *testing.T) {
	s := newTestScheduler(t, time.Minute)

	require.NoError(t, s.AddPipelineJob(types.VariantAPI, "0 * * * *", noop))
	require.NoError(t, s.AddPipelineJob(types.VariantSnapshot, "*/15 * * * *", noop))

	jobs := s.ListJobs()
	require.Len(t, jobs, 2)
	names := []string{jobs[0].Name, jobs[1].Name}
	assert.ElementsMatch(t, []string{"pipeline_api", "pipeline_snapshot"}, names)
}

func TestAddJob_InvalidSchedule(t *testing.T) {
	s := newTestScheduler(t, time.Minute)
	err := s.AddJob("broken", "not a cron line", noop)
	assert.Error(t, err)
	assert.Empty(t, s.ListJobs())
}

func TestAddJob_ReplacesSameName(t *testing.T) {
	s := newTestScheduler(t, time.Minute)
	require.NoError(t, s.AddJob("job", "0 * * * *", noop))
	require.NoError(t, s.AddJob("job", "30 * * * *", noop))

	assert.Len(t, s.ListJobs(), 1)
	assert.Len(t, s.cron.Entries(), 1)
}

func TestRemoveJob(t *testing.T) {
	s := newTestScheduler(t, time.Minute)
	require.NoError(t, s.AddJob("job", "0 * * * *", noop))

	s.RemoveJob("job")
	s.RemoveJob("missing")
	assert.Empty(t, s.ListJobs())
}

func TestRunNow_AppliesTimeout(t *testing.T) {
	s := newTestScheduler(t, 20*time.Millisecond)

	err := s.RunNow(context.Background(), "slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunNow_LogsFailure(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	s, err := New("UTC", time.Minute, logger.FromZap(zap.New(core)))
	require.NoError(t, err)

	boom := errors.New("boom")
	err = s.RunNow(context.Background(), "pipeline_api", func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)

	failed := logs.FilterMessage("job failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, "pipeline_api", failed[0].ContextMap()["job"])
	assert.Equal(t, "scheduler", failed[0].ContextMap()["component"])
}

func TestScheduledJobRuns(t *testing.T) {
	s := newTestScheduler(t, time.Minute)

	var calls atomic.Int32
	require.NoError(t, s.AddJob("tick", "@every 1s", func(context.Context) error {
		calls.Add(1)
		return nil
	}))

	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool { return calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)

	jobs := s.ListJobs()
	require.Len(t, jobs, 1)
	assert.False(t, jobs[0].NextRun.IsZero())
}

func TestScheduledJobSkipsOverlap(t *testing.T) {
	s := newTestScheduler(t, time.Minute)

	var running, maxRunning atomic.Int32
	release := make(chan struct{})
	require.NoError(t, s.AddJob("slow", "@every 1s", func(context.Context) error {
		n := running.Add(1)
		defer running.Add(-1)
		for {
			m := maxRunning.Load()
			if n <= m || maxRunning.CompareAndSwap(m, n) {
				break
			}
		}
		<-release
		return nil
	}))

	s.Start()
	time.Sleep(2500 * time.Millisecond)
	close(release)
	<-s.Stop().Done()

	assert.Equal(t, int32(1), maxRunning.Load())
}

func TestKVFields(t *testing.T) {
	fields := kvFields([]interface{}{"entry", 3, "now", "x", "dangling"})
	require.Len(t, fields, 2)
	assert.Equal(t, "entry", fields[0].Key)
	assert.Equal(t, "now", fields[1].Key)
}
