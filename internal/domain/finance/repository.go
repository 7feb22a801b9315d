package finance

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jewelryerp/backend/internal/domain/shared"
)

// ObligationFilter narrows obligation listings
type ObligationFilter struct {
	Kind     ObligationKind
	PartyID  *uuid.UUID
	Statuses []ObligationStatus
	OrderBy  string
	OrderDir string
}

// ObligationRepository persists invoices and bills
type ObligationRepository interface {
	Create(ctx context.Context, o *Obligation) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Obligation, error)
	FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*Obligation, error)
	FindBySourceForUpdate(ctx context.Context, tenantID uuid.UUID, kind ObligationKind, sourceID uuid.UUID) (*Obligation, error)
	// FindOutstandingForUpdate locks the party's obligations with pending > 0 in
	// id order and returns them oldest first
	FindOutstandingForUpdate(ctx context.Context, tenantID uuid.UUID, kind ObligationKind, partyID uuid.UUID) ([]Obligation, error)
	// FindPaidForUpdate locks the party's obligations with paid > 0 in id order
	// and returns them newest first
	FindPaidForUpdate(ctx context.Context, tenantID uuid.UUID, kind ObligationKind, partyID uuid.UUID) ([]Obligation, error)
	List(ctx context.Context, tenantID uuid.UUID, filter ObligationFilter, page shared.Page) ([]Obligation, int64, error)
	ListAll(ctx context.Context, tenantID uuid.UUID) ([]Obligation, error)
	PendingTotal(ctx context.Context, tenantID uuid.UUID, kind ObligationKind, partyID uuid.UUID) (decimal.Decimal, error)
	SaveWithLock(ctx context.Context, o *Obligation) error
}

// ReceiptRepository persists payment receipts
type ReceiptRepository interface {
	Create(ctx context.Context, r *PaymentReceipt) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*PaymentReceipt, error)
	FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*PaymentReceipt, error)
	// ExistsByReference reports an active receipt of the party carrying the same external reference
	ExistsByReference(ctx context.Context, tenantID, partyID uuid.UUID, reference string) (bool, error)
	ListByParty(ctx context.Context, tenantID, partyID uuid.UUID, page shared.Page) ([]PaymentReceipt, int64, error)
	SaveWithLock(ctx context.Context, r *PaymentReceipt) error
}
