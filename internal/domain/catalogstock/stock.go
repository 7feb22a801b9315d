package catalogstock

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jewelryerp/backend/internal/domain/shared"
)

// Level is the on-hand quantity of one finished catalog item.
// Catalog details live elsewhere; only id, name and quantity are kept here.
type Level struct {
	shared.TenantAggregateRoot
	CatalogItemID uuid.UUID
	Name          string
	Quantity      decimal.Decimal
}

// NewLevel creates a stock level for a catalog item
func NewLevel(tenantID, catalogItemID uuid.UUID, name string, qty decimal.Decimal) (*Level, error) {
	if catalogItemID == uuid.Nil {
		return nil, shared.NewValidationError("catalog item is required")
	}
	if qty.IsNegative() {
		return nil, shared.NewValidationError("quantity cannot be negative")
	}
	return &Level{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		CatalogItemID:       catalogItemID,
		Name:                name,
		Quantity:            qty,
	}, nil
}

// Reduce removes sold pieces
func (l *Level) Reduce(qty decimal.Decimal) error {
	if !qty.IsPositive() {
		return shared.NewValidationError("quantity must be positive")
	}
	if l.Quantity.LessThan(qty) {
		return shared.NewInsufficientStockError("catalog item "+l.Name, l.Quantity, qty)
	}
	l.Quantity = l.Quantity.Sub(qty)
	l.Touch()
	l.IncrementVersion()
	return nil
}

// Restore puts pieces back
func (l *Level) Restore(qty decimal.Decimal) error {
	if !qty.IsPositive() {
		return shared.NewValidationError("quantity must be positive")
	}
	l.Quantity = l.Quantity.Add(qty)
	l.Touch()
	l.IncrementVersion()
	return nil
}

// Repository persists catalog stock levels
type Repository interface {
	Upsert(ctx context.Context, level *Level) error
	FindByItem(ctx context.Context, tenantID, catalogItemID uuid.UUID) (*Level, error)
	FindByItemForUpdate(ctx context.Context, tenantID, catalogItemID uuid.UUID) (*Level, error)
	List(ctx context.Context, tenantID uuid.UUID) ([]Level, error)
	SaveWithLock(ctx context.Context, level *Level) error
}
