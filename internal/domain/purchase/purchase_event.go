package purchase

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jewelryerp/backend/internal/domain/metal"
	"github.com/jewelryerp/backend/internal/domain/shared"
)

// Status of a posted purchase
type Status string

const (
	StatusPosted             Status = "POSTED"
	StatusPartiallyCancelled Status = "PARTIALLY_CANCELLED"
	StatusCancelled          Status = "CANCELLED"
)

// MetalLine is one metal lot bought on a purchase invoice
type MetalLine struct {
	ID          uuid.UUID
	Key         metal.MetalKey
	GrossWeight decimal.Decimal
	NetWeight   decimal.Decimal
	Rate        decimal.Decimal
	Amount      decimal.Decimal
	ReversedAt  *time.Time
}

// ExchangeSettlement is exchange metal handed to the supplier as part payment
type ExchangeSettlement struct {
	ID         uuid.UUID
	Key        metal.MetalKey
	Weight     decimal.Decimal
	Value      decimal.Decimal
	RestoredAt *time.Time
}

// PurchaseEvent is a posted supplier purchase invoice as seen by the ledgers:
// the metal it brought in and what it cost.
type PurchaseEvent struct {
	shared.TenantAggregateRoot
	InvoiceNumber string
	SupplierID    uuid.UUID
	SupplierName  string
	EventDate     time.Time
	Lines         []MetalLine
	Exchanges     []ExchangeSettlement
	GrandTotal    decimal.Decimal
	Status        Status
	CancelledAt   *time.Time
}

// LineInput describes a purchased lot before keys are normalized
type LineInput struct {
	MetalID     *uuid.UUID
	MetalType   string
	Purity      string
	GrossWeight decimal.Decimal
	NetWeight   decimal.Decimal
	Rate        decimal.Decimal
}

// ExchangeInput describes exchange metal given to the supplier
type ExchangeInput struct {
	MetalID   *uuid.UUID
	MetalType string
	Purity    string
	Weight    decimal.Decimal
	Value     decimal.Decimal
}

// NewPurchaseEvent validates and normalizes a purchase invoice. The grand
// total is the value of the lines less the value of exchange metal given.
func NewPurchaseEvent(tenantID uuid.UUID, number string, supplierID uuid.UUID, supplierName string, date time.Time,
	lines []LineInput, exchanges []ExchangeInput) (*PurchaseEvent, error) {
	if strings.TrimSpace(number) == "" {
		return nil, shared.NewValidationError("invoice number is required")
	}
	if supplierID == uuid.Nil {
		return nil, shared.NewValidationError("supplier is required")
	}
	if date.IsZero() {
		date = time.Now().UTC()
	}

	ev := &PurchaseEvent{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		InvoiceNumber:       strings.TrimSpace(number),
		SupplierID:          supplierID,
		SupplierName:        supplierName,
		EventDate:           date,
		Lines:               make([]MetalLine, 0, len(lines)),
		Exchanges:           make([]ExchangeSettlement, 0, len(exchanges)),
		GrandTotal:          decimal.Zero,
		Status:              StatusPosted,
	}

	for i, in := range lines {
		key, err := metal.NewMetalKey(in.MetalID, in.MetalType, in.Purity)
		if err != nil {
			return nil, shared.NewValidationError("line %d: %s", i+1, err.Error())
		}
		if !in.GrossWeight.IsPositive() || !in.NetWeight.IsPositive() || in.NetWeight.GreaterThan(in.GrossWeight) {
			return nil, shared.NewValidationError("line %d: net weight must be positive and not exceed gross weight", i+1)
		}
		if in.Rate.IsNegative() {
			return nil, shared.NewValidationError("line %d: rate cannot be negative", i+1)
		}
		amount := in.NetWeight.Mul(in.Rate).Round(2)
		ev.Lines = append(ev.Lines, MetalLine{
			ID:          uuid.New(),
			Key:         key,
			GrossWeight: in.GrossWeight,
			NetWeight:   in.NetWeight,
			Rate:        in.Rate,
			Amount:      amount,
		})
		ev.GrandTotal = ev.GrandTotal.Add(amount)
	}

	for i, in := range exchanges {
		key, err := metal.NewMetalKey(in.MetalID, in.MetalType, in.Purity)
		if err != nil {
			return nil, shared.NewValidationError("exchange %d: %s", i+1, err.Error())
		}
		if !in.Weight.IsPositive() || in.Value.IsNegative() {
			return nil, shared.NewValidationError("exchange %d: weight must be positive", i+1)
		}
		ev.Exchanges = append(ev.Exchanges, ExchangeSettlement{ID: uuid.New(), Key: key, Weight: in.Weight, Value: in.Value.Round(2)})
		ev.GrandTotal = ev.GrandTotal.Sub(in.Value.Round(2))
	}
	if ev.GrandTotal.IsNegative() {
		return nil, shared.NewValidationError("exchange value exceeds purchase value")
	}
	return ev, nil
}

// HasMetal reports whether any metal was purchased
func (e *PurchaseEvent) HasMetal() bool {
	return len(e.Lines) > 0
}

// GrossByKey sums purchased gross weight per canonical key
func (e *PurchaseEvent) GrossByKey() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(e.Lines))
	for _, l := range e.Lines {
		k := l.Key.String()
		out[k] = out[k].Add(l.GrossWeight)
	}
	return out
}

// Reference is the ledger reference for this purchase
func (e *PurchaseEvent) Reference() metal.Reference {
	return metal.Reference{Type: metal.RefPurchaseInvoice, ID: e.ID, Number: e.InvoiceNumber}
}

// MarkCancelled records the outcome of a cancellation attempt
func (e *PurchaseEvent) MarkCancelled(complete bool, at time.Time) {
	if complete {
		e.Status = StatusCancelled
		e.CancelledAt = &at
	} else {
		e.Status = StatusPartiallyCancelled
	}
	e.Touch()
	e.IncrementVersion()
}

// IsCancelled reports a fully cancelled purchase
func (e *PurchaseEvent) IsCancelled() bool {
	return e.Status == StatusCancelled
}

// MarkLineReversed flags a line whose acquisition was taken back out of stock
func (e *PurchaseEvent) MarkLineReversed(lineID uuid.UUID, at time.Time) error {
	for i := range e.Lines {
		if e.Lines[i].ID != lineID {
			continue
		}
		if e.Lines[i].ReversedAt != nil {
			return shared.NewDomainError(shared.CodeDuplicateProcessing, "purchase line "+lineID.String()+" is already reversed")
		}
		e.Lines[i].ReversedAt = &at
		e.Touch()
		return nil
	}
	return shared.NewDomainError(shared.CodeNotFound, "purchase line "+lineID.String()+" not found on "+e.InvoiceNumber)
}

// MarkExchangeRestored flags exchange metal returned to the exchange pool
func (e *PurchaseEvent) MarkExchangeRestored(exchangeID uuid.UUID, at time.Time) error {
	for i := range e.Exchanges {
		if e.Exchanges[i].ID != exchangeID {
			continue
		}
		if e.Exchanges[i].RestoredAt != nil {
			return shared.NewDomainError(shared.CodeDuplicateProcessing, "exchange "+exchangeID.String()+" is already restored")
		}
		e.Exchanges[i].RestoredAt = &at
		e.Touch()
		return nil
	}
	return shared.NewDomainError(shared.CodeNotFound, "exchange "+exchangeID.String()+" not found on "+e.InvoiceNumber)
}

// PendingLines returns lines still counted in stock
func (e *PurchaseEvent) PendingLines() []MetalLine {
	out := make([]MetalLine, 0, len(e.Lines))
	for _, l := range e.Lines {
		if l.ReversedAt == nil {
			out = append(out, l)
		}
	}
	return out
}

// PendingExchanges returns exchange metal not yet given back to the pool
func (e *PurchaseEvent) PendingExchanges() []ExchangeSettlement {
	out := make([]ExchangeSettlement, 0, len(e.Exchanges))
	for _, x := range e.Exchanges {
		if x.RestoredAt == nil {
			out = append(out, x)
		}
	}
	return out
}
