package purchase

import (
	"context"

	"github.com/google/uuid"

	"github.com/jewelryerp/backend/internal/domain/shared"
)

// Repository persists purchase events with their lines
type Repository interface {
	Create(ctx context.Context, ev *PurchaseEvent) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*PurchaseEvent, error)
	FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*PurchaseEvent, error)
	ExistsByNumber(ctx context.Context, tenantID, supplierID uuid.UUID, number string) (bool, error)
	List(ctx context.Context, tenantID uuid.UUID, page shared.Page) ([]PurchaseEvent, int64, error)
	// Save writes header status and line/exchange reversal markers
	Save(ctx context.Context, ev *PurchaseEvent) error
}
