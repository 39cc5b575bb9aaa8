package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testConfig() Config {
	return Config{Workers: 2, JobTimeout: time.Second, RetryAttempts: 2, RetryDelay: time.Millisecond, QueueSize: 8}
}

func startScheduler(t *testing.T, cfg Config) *Scheduler {
	t.Helper()
	s, err := NewScheduler(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	})
	return s
}

func waitDone(t *testing.T, job *Job) {
	t.Helper()
	select {
	case <-job.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("job %s did not finish", job.Name)
	}
}

func TestNewScheduler_RejectsInvalidConfig(t *testing.T) {
	_, err := NewScheduler(Config{Workers: 0, JobTimeout: time.Second}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewScheduler(Config{Workers: 1}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestScheduler_RunsJob(t *testing.T) {
	s := startScheduler(t, testConfig())

	var ran atomic.Int32
	job := NewJob("reconcile", func(context.Context) error {
		ran.Add(1)
		return nil
	}, 0)
	require.NoError(t, s.Submit(job))
	waitDone(t, job)

	assert.Equal(t, int32(1), ran.Load())
	assert.Equal(t, JobStatusSuccess, job.Status)
	assert.NotNil(t, job.CompletedAt)
}

func TestScheduler_RetriesThenGivesUp(t *testing.T) {
	s := startScheduler(t, testConfig())

	var attempts atomic.Int32
	job := NewJob("cleanup", func(context.Context) error {
		attempts.Add(1)
		return errors.New("bucket unavailable")
	}, 2)
	require.NoError(t, s.Submit(job))
	waitDone(t, job)

	assert.Equal(t, int32(3), attempts.Load())
	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, "bucket unavailable", job.Error)
}

func TestScheduler_RetrySucceeds(t *testing.T) {
	s := startScheduler(t, testConfig())

	var attempts atomic.Int32
	job := NewJob("cleanup", func(context.Context) error {
		if attempts.Add(1) == 1 {
			return errors.New("transient")
		}
		return nil
	}, 2)
	require.NoError(t, s.Submit(job))
	waitDone(t, job)

	assert.Equal(t, int32(2), attempts.Load())
	assert.Equal(t, JobStatusSuccess, job.Status)
	assert.Equal(t, 1, job.RetryCount)
}

func TestScheduler_TimeoutCancelsTask(t *testing.T) {
	cfg := testConfig()
	cfg.JobTimeout = 20 * time.Millisecond
	s := startScheduler(t, cfg)

	job := NewJob("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, 0)
	require.NoError(t, s.Submit(job))
	waitDone(t, job)

	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Contains(t, job.Error, "deadline exceeded")
}

func TestScheduler_PanicBecomesFailure(t *testing.T) {
	s := startScheduler(t, testConfig())

	job := NewJob("broken", func(context.Context) error { panic("nil map") }, 0)
	require.NoError(t, s.Submit(job))
	waitDone(t, job)

	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Contains(t, job.Error, "nil map")
}

func TestScheduler_SubmitWhenStopped(t *testing.T) {
	s, err := NewScheduler(testConfig(), nil)
	require.NoError(t, err)

	err = s.Submit(NewJob("x", func(context.Context) error { return nil }, 0))
	assert.ErrorIs(t, err, ErrSchedulerNotRunning)
}

func TestScheduler_QueueFull(t *testing.T) {
	cfg := testConfig()
	cfg.Workers = 1
	cfg.QueueSize = 1
	s := startScheduler(t, cfg)

	release := make(chan struct{})
	defer close(release)
	blocking := NewJob("blocking", func(context.Context) error {
		<-release
		return nil
	}, 0)
	require.NoError(t, s.Submit(blocking))
	require.Eventually(t, func() bool { return len(s.jobs) == 0 }, time.Second, time.Millisecond)

	require.NoError(t, s.Submit(NewJob("queued", func(context.Context) error { return nil }, 0)))
	err := s.Submit(NewJob("overflow", func(context.Context) error { return nil }, 0))
	assert.ErrorIs(t, err, ErrJobQueueFull)
}

func TestIntervalTrigger_SubmitsPeriodically(t *testing.T) {
	s := startScheduler(t, testConfig())

	var runs atomic.Int32
	trigger := NewIntervalTrigger(s, zaptest.NewLogger(t)).
		Every("reconcile", 10*time.Millisecond, func(context.Context) error {
			runs.Add(1)
			return nil
		}).
		Every("disabled", 0, func(context.Context) error {
			t.Error("disabled job ran")
			return nil
		})
	require.NoError(t, trigger.Start(context.Background()))

	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, trigger.Stop(context.Background()))
}

func TestIntervalTrigger_SkipsWhileInFlight(t *testing.T) {
	s := startScheduler(t, testConfig())

	release := make(chan struct{})
	var runs atomic.Int32
	trigger := NewIntervalTrigger(s, nil).Every("cleanup", 5*time.Millisecond, func(context.Context) error {
		runs.Add(1)
		<-release
		return nil
	})
	require.NoError(t, trigger.Start(context.Background()))

	require.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())

	close(release)
	require.NoError(t, trigger.Stop(context.Background()))
}
