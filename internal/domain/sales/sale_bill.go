package sales

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jewelryerp/backend/internal/domain/metal"
	"github.com/jewelryerp/backend/internal/domain/shared"
)

// Status of a sale bill
type Status string

const (
	StatusPosted             Status = "POSTED"
	StatusPartiallyCancelled Status = "PARTIALLY_CANCELLED"
	StatusCancelled          Status = "CANCELLED"
)

// Item is a finished catalog piece sold on the bill
type Item struct {
	ID            uuid.UUID
	CatalogItemID uuid.UUID
	Name          string
	Quantity      decimal.Decimal
	UnitPrice     decimal.Decimal
	Amount        decimal.Decimal
}

// ExchangeLine is old metal the customer handed in against the bill
type ExchangeLine struct {
	ID          uuid.UUID
	Key         metal.MetalKey
	GrossWeight decimal.Decimal
	NetWeight   decimal.Decimal
	Value       decimal.Decimal
	ReversedAt  *time.Time
}

// SaleBill is a posted customer sale
type SaleBill struct {
	shared.TenantAggregateRoot
	BillNumber    string
	CustomerID    uuid.UUID
	CustomerName  string
	BillDate      time.Time
	Items         []Item
	Exchanges     []ExchangeLine
	ItemsTotal    decimal.Decimal
	ExchangeTotal decimal.Decimal
	GrandTotal    decimal.Decimal
	Status        Status
	CancelledAt   *time.Time
}

// ItemInput describes a sold catalog item
type ItemInput struct {
	CatalogItemID uuid.UUID
	Name          string
	Quantity      decimal.Decimal
	UnitPrice     decimal.Decimal
}

// ExchangeInput describes customer metal taken in exchange
type ExchangeInput struct {
	MetalID     *uuid.UUID
	MetalType   string
	Purity      string
	GrossWeight decimal.Decimal
	NetWeight   decimal.Decimal
	Value       decimal.Decimal
}

// NewSaleBill validates a sale. The amount the customer owes is the items
// total less the value of exchanged metal, never below zero.
func NewSaleBill(tenantID uuid.UUID, number string, customerID uuid.UUID, customerName string, date time.Time,
	items []ItemInput, exchanges []ExchangeInput) (*SaleBill, error) {
	if strings.TrimSpace(number) == "" {
		return nil, shared.NewValidationError("bill number is required")
	}
	if customerID == uuid.Nil {
		return nil, shared.NewValidationError("customer is required")
	}
	if len(items) == 0 {
		return nil, shared.NewValidationError("a sale bill needs at least one item")
	}
	if date.IsZero() {
		date = time.Now().UTC()
	}

	b := &SaleBill{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		BillNumber:          strings.TrimSpace(number),
		CustomerID:          customerID,
		CustomerName:        customerName,
		BillDate:            date,
		Items:               make([]Item, 0, len(items)),
		Exchanges:           make([]ExchangeLine, 0, len(exchanges)),
		ItemsTotal:          decimal.Zero,
		ExchangeTotal:       decimal.Zero,
		Status:              StatusPosted,
	}
	for i, in := range items {
		if in.CatalogItemID == uuid.Nil {
			return nil, shared.NewValidationError("item %d: catalog item is required", i+1)
		}
		if !in.Quantity.IsPositive() || in.UnitPrice.IsNegative() {
			return nil, shared.NewValidationError("item %d: quantity must be positive and price not negative", i+1)
		}
		amount := in.Quantity.Mul(in.UnitPrice).Round(2)
		b.Items = append(b.Items, Item{
			ID:            uuid.New(),
			CatalogItemID: in.CatalogItemID,
			Name:          in.Name,
			Quantity:      in.Quantity,
			UnitPrice:     in.UnitPrice,
			Amount:        amount,
		})
		b.ItemsTotal = b.ItemsTotal.Add(amount)
	}
	for i, in := range exchanges {
		key, err := metal.NewMetalKey(in.MetalID, in.MetalType, in.Purity)
		if err != nil {
			return nil, shared.NewValidationError("exchange %d: %s", i+1, err.Error())
		}
		if !in.GrossWeight.IsPositive() || !in.NetWeight.IsPositive() || in.NetWeight.GreaterThan(in.GrossWeight) {
			return nil, shared.NewValidationError("exchange %d: net weight must be positive and not exceed gross weight", i+1)
		}
		if in.Value.IsNegative() {
			return nil, shared.NewValidationError("exchange %d: value cannot be negative", i+1)
		}
		v := in.Value.Round(2)
		b.Exchanges = append(b.Exchanges, ExchangeLine{ID: uuid.New(), Key: key, GrossWeight: in.GrossWeight, NetWeight: in.NetWeight, Value: v})
		b.ExchangeTotal = b.ExchangeTotal.Add(v)
	}
	b.GrandTotal = decimal.Max(b.ItemsTotal.Sub(b.ExchangeTotal), decimal.Zero)
	return b, nil
}

// Reference is the ledger reference for this bill
func (b *SaleBill) Reference() metal.Reference {
	return metal.Reference{Type: metal.RefSaleBill, ID: b.ID, Number: b.BillNumber}
}

// MarkCancelled records the outcome of a cancellation attempt
func (b *SaleBill) MarkCancelled(complete bool, at time.Time) {
	if complete {
		b.Status = StatusCancelled
		b.CancelledAt = &at
	} else {
		b.Status = StatusPartiallyCancelled
	}
	b.Touch()
	b.IncrementVersion()
}

func (b *SaleBill) IsCancelled() bool {
	return b.Status == StatusCancelled
}

// MarkExchangeReversed flags exchange metal taken back out of the exchange pool
func (b *SaleBill) MarkExchangeReversed(lineID uuid.UUID, at time.Time) error {
	for i := range b.Exchanges {
		if b.Exchanges[i].ID != lineID {
			continue
		}
		if b.Exchanges[i].ReversedAt != nil {
			return shared.NewDomainError(shared.CodeDuplicateProcessing, "exchange line "+lineID.String()+" is already reversed")
		}
		b.Exchanges[i].ReversedAt = &at
		b.Touch()
		return nil
	}
	return shared.NewDomainError(shared.CodeNotFound, "exchange line "+lineID.String()+" not found on "+b.BillNumber)
}

// PendingExchanges returns exchange lines still counted in the exchange pool
func (b *SaleBill) PendingExchanges() []ExchangeLine {
	out := make([]ExchangeLine, 0, len(b.Exchanges))
	for _, x := range b.Exchanges {
		if x.ReversedAt == nil {
			out = append(out, x)
		}
	}
	return out
}
