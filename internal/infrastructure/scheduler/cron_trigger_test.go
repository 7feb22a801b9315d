package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type staticTenants struct {
	ids []uuid.UUID
	err error
}

func (p staticTenants) ActiveTenants(context.Context) ([]uuid.UUID, error) {
	return p.ids, p.err
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func at(day, hour, minute int) time.Time {
	return time.Date(2026, time.March, day, hour, minute, 0, 0, time.Local)
}

func newTestTrigger(t *testing.T, tenants TenantProvider, clock *fakeClock) (*CronTrigger, *recordingExecutor) {
	t.Helper()
	exec := &recordingExecutor{}
	s := startScheduler(t, SchedulerConfig{MaxConcurrentJobs: 1}, exec)
	trigger := NewCronTrigger(CronTriggerConfig{Hour: 2, Minute: 30}, s, tenants, zap.NewNop())
	trigger.now = clock.Now
	return trigger, exec
}

func TestCronTrigger_FiresOncePerDay(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: at(1, 1, 0)}
	trigger, exec := newTestTrigger(t, staticTenants{ids: []uuid.UUID{uuid.New(), uuid.New()}}, clock)

	assert.False(t, trigger.checkAndTrigger(ctx), "before the slot")

	clock.Set(at(1, 2, 30))
	assert.True(t, trigger.checkAndTrigger(ctx))
	assert.Eventually(t, func() bool { return exec.runs() == 2 }, time.Second, 5*time.Millisecond)

	clock.Set(at(1, 2, 31))
	assert.False(t, trigger.checkAndTrigger(ctx), "already ran today")
	clock.Set(at(1, 23, 59))
	assert.False(t, trigger.checkAndTrigger(ctx))

	clock.Set(at(2, 2, 29))
	assert.False(t, trigger.checkAndTrigger(ctx))
	clock.Set(at(2, 2, 45))
	assert.True(t, trigger.checkAndTrigger(ctx), "a late check still fires")
	assert.Eventually(t, func() bool { return exec.runs() == 4 }, time.Second, 5*time.Millisecond)
}

func TestCronTrigger_StartedAfterSlotWaitsForNextDay(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: at(1, 10, 0)}
	trigger, exec := newTestTrigger(t, staticTenants{ids: []uuid.UUID{uuid.New()}}, clock)

	assert.False(t, trigger.checkAndTrigger(ctx))
	clock.Set(at(1, 11, 0))
	assert.False(t, trigger.checkAndTrigger(ctx))

	clock.Set(at(2, 2, 30))
	assert.True(t, trigger.checkAndTrigger(ctx))
	assert.Eventually(t, func() bool { return exec.runs() == 1 }, time.Second, 5*time.Millisecond)
}

func TestCronTrigger_StartedOnTheSlotFires(t *testing.T) {
	clock := &fakeClock{now: at(1, 2, 30)}
	trigger, _ := newTestTrigger(t, staticTenants{}, clock)

	assert.True(t, trigger.checkAndTrigger(context.Background()))
}

func TestCronTrigger_TriggerNow(t *testing.T) {
	clock := &fakeClock{now: at(1, 12, 0)}
	trigger, exec := newTestTrigger(t, staticTenants{ids: []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}}, clock)

	queued, err := trigger.TriggerNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, queued)
	assert.Eventually(t, func() bool { return exec.runs() == 3 }, time.Second, 5*time.Millisecond)
}

func TestCronTrigger_TriggerNowProviderError(t *testing.T) {
	clock := &fakeClock{now: at(1, 12, 0)}
	boom := errors.New("connection refused")
	trigger, _ := newTestTrigger(t, staticTenants{err: boom}, clock)

	queued, err := trigger.TriggerNow(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, queued)
}

type flakyTenants struct {
	mu  sync.Mutex
	ids []uuid.UUID
	err error
}

func (p *flakyTenants) ActiveTenants(context.Context) ([]uuid.UUID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ids, p.err
}

func (p *flakyTenants) reconnect() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = nil
}

func TestCronTrigger_FailedRunRetriesSameDay(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: at(1, 1, 0)}
	tenants := &flakyTenants{ids: []uuid.UUID{uuid.New()}, err: errors.New("connection refused")}
	trigger, exec := newTestTrigger(t, tenants, clock)
	assert.False(t, trigger.checkAndTrigger(ctx))

	clock.Set(at(1, 2, 30))
	assert.False(t, trigger.checkAndTrigger(ctx), "tenant listing failed")
	assert.Zero(t, exec.runs())

	tenants.reconnect()
	clock.Set(at(1, 2, 31))
	assert.True(t, trigger.checkAndTrigger(ctx), "the day is still open")
	assert.Eventually(t, func() bool { return exec.runs() == 1 }, time.Second, 5*time.Millisecond)

	clock.Set(at(1, 2, 32))
	assert.False(t, trigger.checkAndTrigger(ctx), "already ran today")
}

func TestCronTrigger_StartStop(t *testing.T) {
	clock := &fakeClock{now: at(1, 12, 0)}
	trigger, _ := newTestTrigger(t, staticTenants{}, clock)
	trigger.config.CheckInterval = 5 * time.Millisecond

	require.NoError(t, trigger.Start(context.Background()))
	require.NoError(t, trigger.Start(context.Background()))
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, trigger.Stop(ctx))
	require.NoError(t, trigger.Stop(ctx))
}
