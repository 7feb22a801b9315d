package sales

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jewelryerp/backend/internal/domain/shared"
)

const (
	AggregateTypeSaleBill = "SaleBill"

	EventTypeCatalogStockReductionRequested = "CatalogStockReductionRequested"
	EventTypeCatalogStockRestoreRequested   = "CatalogStockRestoreRequested"
)

// StockLine is a catalog quantity change carried by the stock events
type StockLine struct {
	CatalogItemID uuid.UUID       `json:"catalog_item_id"`
	Quantity      decimal.Decimal `json:"quantity"`
}

// CatalogStockChangeEvent asks the catalog stock to reduce or restore
// quantities after a sale bill commits. It travels through the outbox.
type CatalogStockChangeEvent struct {
	shared.BaseDomainEvent
	BillID     uuid.UUID   `json:"bill_id"`
	BillNumber string      `json:"bill_number"`
	Lines      []StockLine `json:"lines"`
}

func newStockChangeEvent(eventType string, b *SaleBill) *CatalogStockChangeEvent {
	lines := make([]StockLine, 0, len(b.Items))
	for _, it := range b.Items {
		lines = append(lines, StockLine{CatalogItemID: it.CatalogItemID, Quantity: it.Quantity})
	}
	return &CatalogStockChangeEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeSaleBill, b.ID, b.TenantID),
		BillID:          b.ID,
		BillNumber:      b.BillNumber,
		Lines:           lines,
	}
}

// RequestStockReduction queues the reduction event on the bill
func (b *SaleBill) RequestStockReduction() {
	b.AddDomainEvent(newStockChangeEvent(EventTypeCatalogStockReductionRequested, b))
}

// RequestStockRestore queues the restore event on the bill
func (b *SaleBill) RequestStockRestore() {
	b.AddDomainEvent(newStockChangeEvent(EventTypeCatalogStockRestoreRequested, b))
}
