package telemetry

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormLedgerSnapshotProvider reads gauge samples straight from the ledger
// tables.
type GormLedgerSnapshotProvider struct {
	db *gorm.DB
}

// NewGormLedgerSnapshotProvider creates a new GormLedgerSnapshotProvider.
func NewGormLedgerSnapshotProvider(db *gorm.DB) *GormLedgerSnapshotProvider {
	return &GormLedgerSnapshotProvider{db: db}
}

// ActiveTenants returns every tenant holding a metal account
func (p *GormLedgerSnapshotProvider) ActiveTenants(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := p.db.WithContext(ctx).
		Table("metal_accounts").
		Distinct("tenant_id").
		Pluck("tenant_id", &ids).Error
	return ids, err
}

// MetalAvailability returns the available weight of each account of a tenant
func (p *GormLedgerSnapshotProvider) MetalAvailability(ctx context.Context, tenantID uuid.UUID) ([]MetalAvailability, error) {
	var rows []MetalAvailability
	err := p.db.WithContext(ctx).
		Table("metal_accounts").
		Select("pool, metal_key, CAST(available AS FLOAT) AS available").
		Where("tenant_id = ?", tenantID).
		Order("pool, metal_key").
		Scan(&rows).Error
	return rows, err
}

// OutboxBacklog counts outbox entries per status
func (p *GormLedgerSnapshotProvider) OutboxBacklog(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := p.db.WithContext(ctx).
		Table("outbox_events").
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.Count
	}
	return out, nil
}
