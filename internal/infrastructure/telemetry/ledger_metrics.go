package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// LedgerMetrics counts ledger activity and samples ledger state.
//
// Movements, payments and postings are counted from the domain events the
// outbox delivers, so every committed mutation is counted exactly once per
// successful delivery. Rejections are counted at the HTTP edge by error
// code. Availability and outbox backlog are sampled periodically.
type LedgerMetrics struct {
	logger *zap.Logger

	eventsDelivered *Counter
	eventsFailed    *Counter
	rejections      *Counter
	auditFindings   *Gauge
	outboxBacklog   *Gauge
	metalAvailable  *FloatGauge

	provider LedgerSnapshotProvider
	stopChan chan struct{}
	stopOnce sync.Once
	runOnce  sync.Once
	wg       sync.WaitGroup
}

// MetalAvailability is the available weight of one pool and key
type MetalAvailability struct {
	Pool      string
	MetalKey  string
	Available float64
}

// LedgerSnapshotProvider reads the state sampled into gauges
type LedgerSnapshotProvider interface {
	ActiveTenants(ctx context.Context) ([]uuid.UUID, error)
	MetalAvailability(ctx context.Context, tenantID uuid.UUID) ([]MetalAvailability, error)
	OutboxBacklog(ctx context.Context) (map[string]int64, error)
}

// NewLedgerMetrics creates the ledger instruments. provider may be nil when
// no periodic sampling is wanted.
func NewLedgerMetrics(meter metric.Meter, provider LedgerSnapshotProvider, logger *zap.Logger) (*LedgerMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &LedgerMetrics{logger: logger, provider: provider, stopChan: make(chan struct{})}

	var err error
	if m.eventsDelivered, err = NewCounter(meter, "jewel_ledger_events_delivered_total",
		"Ledger events delivered to their handlers, by event type", "{events}"); err != nil {
		return nil, err
	}
	if m.eventsFailed, err = NewCounter(meter, "jewel_ledger_events_failed_total",
		"Failed ledger event deliveries, by event type and outcome", "{events}"); err != nil {
		return nil, err
	}
	if m.rejections, err = NewCounter(meter, "jewel_ledger_rejections_total",
		"Ledger operations refused with a business error, by error code", "{operations}"); err != nil {
		return nil, err
	}
	if m.auditFindings, err = NewGauge(meter, "jewel_ledger_audit_findings",
		"Inconsistencies found by the last audit run", "{findings}"); err != nil {
		return nil, err
	}
	if m.outboxBacklog, err = NewGauge(meter, "jewel_outbox_entries",
		"Outbox entries by status", "{entries}"); err != nil {
		return nil, err
	}
	if m.metalAvailable, err = NewFloatGauge(meter, "jewel_metal_available_weight",
		"Available weight per pool and metal key", "g"); err != nil {
		return nil, err
	}
	return m, nil
}

// OutboxDelivered counts a successful delivery
func (m *LedgerMetrics) OutboxDelivered(ctx context.Context, eventType string) {
	m.eventsDelivered.Inc(ctx, AttrEventType.String(eventType))
}

// OutboxFailed counts a failed delivery; dead marks an exhausted entry
func (m *LedgerMetrics) OutboxFailed(ctx context.Context, eventType string, dead bool) {
	outcome := "retry"
	if dead {
		outcome = "dead"
	}
	m.eventsFailed.Inc(ctx, AttrEventType.String(eventType), AttrOutcome.String(outcome))
}

// RecordRejection counts an operation refused with a domain error code
func (m *LedgerMetrics) RecordRejection(ctx context.Context, code string) {
	m.rejections.Inc(ctx, AttrErrorCode.String(code))
}

// RecordAudit stores the number of findings of an audit run
func (m *LedgerMetrics) RecordAudit(ctx context.Context, tenantID uuid.UUID, findings int) {
	m.auditFindings.Record(ctx, int64(findings), AttrTenantID.String(tenantID.String()))
}

// StartPeriodicCollection samples gauges every interval (default one
// minute) until Stop or ctx is done.
func (m *LedgerMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	if m.provider == nil {
		return
	}
	m.runOnce.Do(func() {
		if interval <= 0 {
			interval = time.Minute
		}
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			m.Collect(ctx)
			for {
				select {
				case <-m.stopChan:
					return
				case <-ctx.Done():
					return
				case <-ticker.C:
					m.Collect(ctx)
				}
			}
		}()
	})
}

// Collect samples the gauges once
func (m *LedgerMetrics) Collect(ctx context.Context) {
	if m.provider == nil {
		return
	}
	backlog, err := m.provider.OutboxBacklog(ctx)
	if err != nil {
		m.logger.Warn("Failed to read outbox backlog", zap.Error(err))
	}
	for status, n := range backlog {
		m.outboxBacklog.Record(ctx, n, AttrOutcome.String(status))
	}

	tenants, err := m.provider.ActiveTenants(ctx)
	if err != nil {
		m.logger.Error("Failed to list tenants for ledger metrics", zap.Error(err))
		return
	}
	for _, tenantID := range tenants {
		rows, err := m.provider.MetalAvailability(ctx, tenantID)
		if err != nil {
			m.logger.Warn("Failed to read metal availability",
				zap.String("tenant_id", tenantID.String()),
				zap.Error(err))
			continue
		}
		for _, r := range rows {
			m.metalAvailable.Record(ctx, r.Available,
				AttrTenantID.String(tenantID.String()),
				AttrPool.String(r.Pool),
				AttrMetalKey.String(r.MetalKey))
		}
	}
}

// Stop ends periodic collection. Safe to call more than once.
func (m *LedgerMetrics) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopChan)
		m.wg.Wait()
	})
}

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewLedgerMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
