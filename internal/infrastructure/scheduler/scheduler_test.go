package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingExecutor struct {
	mu       sync.Mutex
	tenants  []uuid.UUID
	failures map[uuid.UUID]int // remaining failures per tenant
}

func (e *recordingExecutor) Execute(_ context.Context, job *Job) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tenants = append(e.tenants, job.TenantID)
	if e.failures[job.TenantID] > 0 {
		e.failures[job.TenantID]--
		return errors.New("database unavailable")
	}
	return nil
}

func (e *recordingExecutor) runs() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.tenants)
}

func startScheduler(t *testing.T, cfg SchedulerConfig, exec JobExecutor) *Scheduler {
	t.Helper()
	s := NewScheduler(cfg, exec, zap.NewNop())
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	})
	return s
}

func TestJob_Lifecycle(t *testing.T) {
	job := NewJob(uuid.New(), 1)
	assert.Equal(t, JobStatusPending, job.Status)

	job.Start()
	assert.Equal(t, JobStatusRunning, job.Status)
	require.NotNil(t, job.StartedAt)

	job.Fail("boom")
	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, "boom", job.Error)
	assert.True(t, job.ShouldRetry())

	job.RetryCount = 1
	assert.False(t, job.ShouldRetry())

	job.Start()
	assert.Empty(t, job.Error)
	job.Complete()
	assert.Equal(t, JobStatusSuccess, job.Status)
	assert.False(t, job.ShouldRetry())
}

func TestScheduler_RunsSubmittedJobs(t *testing.T) {
	exec := &recordingExecutor{}
	s := startScheduler(t, SchedulerConfig{MaxConcurrentJobs: 2}, exec)

	for i := 0; i < 5; i++ {
		_, err := s.Schedule(uuid.New())
		require.NoError(t, err)
	}
	assert.Eventually(t, func() bool { return exec.runs() == 5 }, time.Second, 5*time.Millisecond)
}

func TestScheduler_RetriesFailedJobs(t *testing.T) {
	tenant := uuid.New()
	exec := &recordingExecutor{failures: map[uuid.UUID]int{tenant: 2}}
	s := startScheduler(t, SchedulerConfig{MaxConcurrentJobs: 1, RetryAttempts: 2, RetryDelay: 10 * time.Millisecond}, exec)

	_, err := s.Schedule(tenant)
	require.NoError(t, err)

	// two failures then a success
	assert.Eventually(t, func() bool { return exec.runs() == 3 }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 3, exec.runs())
}

func TestScheduler_GivesUpAfterRetryBudget(t *testing.T) {
	tenant := uuid.New()
	exec := &recordingExecutor{failures: map[uuid.UUID]int{tenant: 10}}
	s := startScheduler(t, SchedulerConfig{MaxConcurrentJobs: 1, RetryAttempts: 1, RetryDelay: 5 * time.Millisecond}, exec)

	_, err := s.Schedule(tenant)
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return exec.runs() == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 2, exec.runs())
}

func TestScheduler_SubmitErrors(t *testing.T) {
	s := NewScheduler(SchedulerConfig{QueueSize: 1}, ExecutorFunc(func(context.Context, *Job) error { return nil }), nil)
	_, err := s.Schedule(uuid.New())
	assert.ErrorIs(t, err, ErrSchedulerNotRunning)

	block := make(chan struct{})
	s = startScheduler(t, SchedulerConfig{MaxConcurrentJobs: 1, QueueSize: 1}, ExecutorFunc(func(ctx context.Context, _ *Job) error {
		select {
		case <-block:
		case <-ctx.Done():
		}
		return nil
	}))
	defer close(block)

	var queueFull atomic.Bool
	for i := 0; i < 5; i++ {
		if _, err := s.Schedule(uuid.New()); errors.Is(err, ErrJobQueueFull) {
			queueFull.Store(true)
		}
	}
	assert.True(t, queueFull.Load())
}

func TestScheduler_StopIsIdempotent(t *testing.T) {
	s := NewScheduler(DefaultSchedulerConfig(), ExecutorFunc(func(context.Context, *Job) error { return nil }), nil)
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
	require.NoError(t, s.Stop(context.Background()))

	_, err := s.Schedule(uuid.New())
	assert.ErrorIs(t, err, ErrSchedulerNotRunning)
}
