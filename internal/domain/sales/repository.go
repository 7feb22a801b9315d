package sales

import (
	"context"

	"github.com/google/uuid"

	"github.com/jewelryerp/backend/internal/domain/shared"
)

// Repository persists sale bills with items and exchange lines
type Repository interface {
	Create(ctx context.Context, b *SaleBill) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*SaleBill, error)
	FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*SaleBill, error)
	ExistsByNumber(ctx context.Context, tenantID uuid.UUID, number string) (bool, error)
	List(ctx context.Context, tenantID uuid.UUID, page shared.Page) ([]SaleBill, int64, error)
	Save(ctx context.Context, b *SaleBill) error
}
