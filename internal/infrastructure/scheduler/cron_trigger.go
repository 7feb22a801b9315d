package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TenantProvider lists the tenants a daily run covers
type TenantProvider interface {
	ActiveTenants(ctx context.Context) ([]uuid.UUID, error)
}

// CronTriggerConfig holds configuration for the cron trigger
type CronTriggerConfig struct {
	// Hour and Minute are the local time of the daily run
	Hour   int
	Minute int

	// CheckInterval is how often the clock is checked
	CheckInterval time.Duration
}

// DefaultCronTriggerConfig runs at 02:00
func DefaultCronTriggerConfig() CronTriggerConfig {
	return CronTriggerConfig{
		Hour:          2,
		Minute:        0,
		CheckInterval: time.Minute,
	}
}

// CronTrigger submits one job per active tenant once a day
type CronTrigger struct {
	config         CronTriggerConfig
	scheduler      *Scheduler
	tenantProvider TenantProvider
	logger         *zap.Logger
	now            func() time.Time

	cancel      context.CancelFunc
	wg          sync.WaitGroup
	mu          sync.Mutex
	isRunning   bool
	triggering  bool
	lastRunDate string
}

// NewCronTrigger creates a new cron trigger
func NewCronTrigger(
	config CronTriggerConfig,
	scheduler *Scheduler,
	tenantProvider TenantProvider,
	logger *zap.Logger,
) *CronTrigger {
	if config.CheckInterval <= 0 {
		config.CheckInterval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CronTrigger{
		config:         config,
		scheduler:      scheduler,
		tenantProvider: tenantProvider,
		logger:         logger,
		now:            time.Now,
	}
}

// Start starts the cron trigger
func (c *CronTrigger) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = true
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go c.runLoop(ctx)

	c.logger.Info("Cron trigger started",
		zap.Int("hour", c.config.Hour),
		zap.Int("minute", c.config.Minute),
		zap.Duration("check_interval", c.config.CheckInterval),
	)
	return nil
}

// Stop stops the cron trigger
func (c *CronTrigger) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = false
	c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("Cron trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *CronTrigger) runLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.checkAndTrigger(ctx)
		}
	}
}

// checkAndTrigger fires at most once per calendar day, on the first check
// at or after the configured time. A server started after that time waits
// for the next day. A run whose tenant listing fails leaves the day open,
// so the next check tries again.
func (c *CronTrigger) checkAndTrigger(ctx context.Context) bool {
	now := c.now()
	today := now.Format("2006-01-02")

	c.mu.Lock()
	if c.lastRunDate == "" {
		// first check decides whether today's slot is already past
		c.lastRunDate = "-"
		if c.due(now) && !c.exact(now) {
			c.lastRunDate = today
		}
	}
	if c.triggering || c.lastRunDate == today || !c.due(now) {
		c.mu.Unlock()
		return false
	}
	c.triggering = true
	c.mu.Unlock()

	c.logger.Info("Triggering daily run")
	_, err := c.TriggerNow(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.triggering = false
	if err != nil {
		c.logger.Warn("Daily run failed, retrying on the next check", zap.Error(err))
		return false
	}
	c.lastRunDate = today
	return true
}

func (c *CronTrigger) due(now time.Time) bool {
	return now.Hour() > c.config.Hour || (now.Hour() == c.config.Hour && now.Minute() >= c.config.Minute)
}

func (c *CronTrigger) exact(now time.Time) bool {
	return now.Hour() == c.config.Hour && now.Minute() == c.config.Minute
}

// TriggerNow submits a job for every active tenant and returns how many
// were queued
func (c *CronTrigger) TriggerNow(ctx context.Context) (int, error) {
	tenantIDs, err := c.tenantProvider.ActiveTenants(ctx)
	if err != nil {
		c.logger.Error("Failed to list tenants", zap.Error(err))
		return 0, err
	}

	queued := 0
	for _, tenantID := range tenantIDs {
		if _, err := c.scheduler.Schedule(tenantID); err != nil {
			c.logger.Error("Failed to schedule tenant",
				zap.String("tenant_id", tenantID.String()),
				zap.Error(err),
			)
			continue
		}
		queued++
	}
	c.logger.Info("Scheduled tenants", zap.Int("queued", queued), zap.Int("tenants", len(tenantIDs)))
	return queued, nil
}
