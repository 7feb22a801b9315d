package metal

import (
	"time"

	"github.com/google/uuid"
)

// Pool separates the shop's own stock from metal received in customer exchanges
type Pool string

const (
	PoolStock    Pool = "STOCK"
	PoolExchange Pool = "EXCHANGE"
)

func (p Pool) IsValid() bool {
	return p == PoolStock || p == PoolExchange
}

func (p Pool) String() string { return string(p) }

// Direction of a ledger entry
type Direction string

const (
	DirectionIn  Direction = "IN"
	DirectionOut Direction = "OUT"
)

// SourceKind names the business event behind a ledger entry
type SourceKind string

const (
	SourcePurchase         SourceKind = "PURCHASE"
	SourceCustomerExchange SourceKind = "CUSTOMER_EXCHANGE"
	SourceSupplierSale     SourceKind = "SUPPLIER_SALE"
	SourceConsumption      SourceKind = "CONSUMPTION"
	SourceReversal         SourceKind = "REVERSAL"
	SourceManualAdjustment SourceKind = "MANUAL_ADJUSTMENT"
)

func (s SourceKind) IsValid() bool {
	switch s {
	case SourcePurchase, SourceCustomerExchange, SourceSupplierSale,
		SourceConsumption, SourceReversal, SourceManualAdjustment:
		return true
	}
	return false
}

// Reference points at the document that caused a movement
type Reference struct {
	Type   string
	ID     uuid.UUID
	Number string
}

// Common reference types
const (
	RefPurchaseInvoice     = "PURCHASE_INVOICE"
	RefSaleBill            = "SALE_BILL"
	RefManufacturingRecord = "MANUFACTURING_RECORD"
	RefAdjustment          = "ADJUSTMENT"
	RefOpeningBalance      = "OPENING_BALANCE"
)

// Movement carries the descriptive part of a ledger mutation
type Movement struct {
	Source       SourceKind
	Reference    Reference
	Counterparty string
	Note         string
	OccurredAt   time.Time
}

func (m Movement) at() time.Time {
	if m.OccurredAt.IsZero() {
		return time.Now().UTC()
	}
	return m.OccurredAt
}
