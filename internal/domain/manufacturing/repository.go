package manufacturing

import (
	"context"

	"github.com/google/uuid"

	"github.com/jewelryerp/backend/internal/domain/shared"
)

// RecordRepository persists manufacturing records with their items
type RecordRepository interface {
	Create(ctx context.Context, rec *ManufacturingRecord) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*ManufacturingRecord, error)
	FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*ManufacturingRecord, error)
	ExistsByNumber(ctx context.Context, tenantID uuid.UUID, number string) (bool, error)
	List(ctx context.Context, tenantID uuid.UUID, purchaseEventID *uuid.UUID, page shared.Page) ([]ManufacturingRecord, int64, error)
	// Save writes the record status and each item's reversal marker
	Save(ctx context.Context, rec *ManufacturingRecord) error
}

// LinkRepository persists consumption links
type LinkRepository interface {
	ListByEvent(ctx context.Context, tenantID, purchaseEventID uuid.UUID) ([]ConsumptionLink, error)
	GetOrCreateForUpdate(ctx context.Context, tenantID, purchaseEventID uuid.UUID, key string) (*ConsumptionLink, error)
	SaveWithLock(ctx context.Context, link *ConsumptionLink) error
}
