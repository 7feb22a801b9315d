package posting

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	financeapp "github.com/jewelryerp/backend/internal/application/finance"
	"github.com/jewelryerp/backend/internal/domain/finance"
	"github.com/jewelryerp/backend/internal/domain/purchase"
	"github.com/jewelryerp/backend/internal/domain/sales"
)

// InitialPayment is money exchanged at the counter when a document is posted.
// It settles that document only.
type InitialPayment struct {
	ReceiptNumber string          `json:"receipt_number,omitempty" binding:"max=50"`
	BankAccountID uuid.UUID       `json:"bank_account_id" binding:"required"`
	Mode          string          `json:"mode" binding:"required"`
	Reference     string          `json:"reference,omitempty" binding:"max=100"`
	Amount        decimal.Decimal `json:"amount"`
}

func (p InitialPayment) input(kind finance.ObligationKind, partyID uuid.UUID, partyName string) finance.ReceiptInput {
	return finance.ReceiptInput{
		ReceiptNumber:  p.ReceiptNumber,
		ObligationKind: kind,
		PartyID:        partyID,
		PartyName:      partyName,
		BankAccountID:  p.BankAccountID,
		Mode:           finance.PaymentMode(p.Mode),
		Reference:      p.Reference,
		Amount:         p.Amount,
	}
}

// PurchaseLineRequest is a metal lot on a supplier invoice
type PurchaseLineRequest struct {
	MetalID     *uuid.UUID      `json:"metal_id,omitempty"`
	MetalType   string          `json:"metal_type,omitempty"`
	Purity      string          `json:"purity,omitempty"`
	GrossWeight decimal.Decimal `json:"gross_weight"`
	NetWeight   decimal.Decimal `json:"net_weight"`
	Rate        decimal.Decimal `json:"rate"`
}

// SupplierExchangeRequest is exchange metal handed to the supplier
type SupplierExchangeRequest struct {
	MetalID   *uuid.UUID      `json:"metal_id,omitempty"`
	MetalType string          `json:"metal_type,omitempty"`
	Purity    string          `json:"purity,omitempty"`
	Weight    decimal.Decimal `json:"weight"`
	Value     decimal.Decimal `json:"value"`
}

// PostPurchaseRequest posts a supplier purchase invoice
type PostPurchaseRequest struct {
	InvoiceNumber string                    `json:"invoice_number" binding:"required,max=50"`
	SupplierID    uuid.UUID                 `json:"supplier_id" binding:"required"`
	SupplierName  string                    `json:"supplier_name,omitempty" binding:"max=200"`
	InvoiceDate   time.Time                 `json:"invoice_date"`
	Lines         []PurchaseLineRequest     `json:"lines" binding:"dive"`
	Exchanges     []SupplierExchangeRequest `json:"exchanges,omitempty" binding:"dive"`
	Payment       *InitialPayment           `json:"payment,omitempty"`
}

func (r PostPurchaseRequest) lines() []purchase.LineInput {
	out := make([]purchase.LineInput, len(r.Lines))
	for i, l := range r.Lines {
		out[i] = purchase.LineInput{
			MetalID:     l.MetalID,
			MetalType:   l.MetalType,
			Purity:      l.Purity,
			GrossWeight: l.GrossWeight,
			NetWeight:   l.NetWeight,
			Rate:        l.Rate,
		}
	}
	return out
}

func (r PostPurchaseRequest) exchanges() []purchase.ExchangeInput {
	out := make([]purchase.ExchangeInput, len(r.Exchanges))
	for i, x := range r.Exchanges {
		out[i] = purchase.ExchangeInput{MetalID: x.MetalID, MetalType: x.MetalType, Purity: x.Purity, Weight: x.Weight, Value: x.Value}
	}
	return out
}

// SaleItemRequest is a catalog piece sold
type SaleItemRequest struct {
	CatalogItemID uuid.UUID       `json:"catalog_item_id" binding:"required"`
	Name          string          `json:"name,omitempty" binding:"max=200"`
	Quantity      decimal.Decimal `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
}

// CustomerExchangeRequest is old metal the customer hands in
type CustomerExchangeRequest struct {
	MetalID     *uuid.UUID      `json:"metal_id,omitempty"`
	MetalType   string          `json:"metal_type,omitempty"`
	Purity      string          `json:"purity,omitempty"`
	GrossWeight decimal.Decimal `json:"gross_weight"`
	NetWeight   decimal.Decimal `json:"net_weight"`
	Value       decimal.Decimal `json:"value"`
}

// PostSaleRequest posts a customer sale bill
type PostSaleRequest struct {
	BillNumber   string                    `json:"bill_number" binding:"required,max=50"`
	CustomerID   uuid.UUID                 `json:"customer_id" binding:"required"`
	CustomerName string                    `json:"customer_name,omitempty" binding:"max=200"`
	BillDate     time.Time                 `json:"bill_date"`
	Items        []SaleItemRequest         `json:"items" binding:"required,min=1,dive"`
	Exchanges    []CustomerExchangeRequest `json:"exchanges,omitempty" binding:"dive"`
	Payment      *InitialPayment           `json:"payment,omitempty"`
}

func (r PostSaleRequest) items() []sales.ItemInput {
	out := make([]sales.ItemInput, len(r.Items))
	for i, it := range r.Items {
		out[i] = sales.ItemInput{CatalogItemID: it.CatalogItemID, Name: it.Name, Quantity: it.Quantity, UnitPrice: it.UnitPrice}
	}
	return out
}

func (r PostSaleRequest) exchanges() []sales.ExchangeInput {
	out := make([]sales.ExchangeInput, len(r.Exchanges))
	for i, x := range r.Exchanges {
		out[i] = sales.ExchangeInput{
			MetalID:     x.MetalID,
			MetalType:   x.MetalType,
			Purity:      x.Purity,
			GrossWeight: x.GrossWeight,
			NetWeight:   x.NetWeight,
			Value:       x.Value,
		}
	}
	return out
}

// PurchaseLineResponse is a posted metal lot
type PurchaseLineResponse struct {
	ID          uuid.UUID       `json:"id"`
	MetalKey    string          `json:"metal_key"`
	GrossWeight decimal.Decimal `json:"gross_weight"`
	NetWeight   decimal.Decimal `json:"net_weight"`
	Rate        decimal.Decimal `json:"rate"`
	Amount      decimal.Decimal `json:"amount"`
	ReversedAt  *time.Time      `json:"reversed_at,omitempty"`
}

// ExchangeResponse is exchange metal on a posted document
type ExchangeResponse struct {
	ID          uuid.UUID       `json:"id"`
	MetalKey    string          `json:"metal_key"`
	GrossWeight decimal.Decimal `json:"gross_weight"`
	NetWeight   decimal.Decimal `json:"net_weight"`
	Value       decimal.Decimal `json:"value"`
	ReversedAt  *time.Time      `json:"reversed_at,omitempty"`
}

// PurchaseResponse is a posted purchase invoice
type PurchaseResponse struct {
	ID            uuid.UUID                   `json:"id"`
	InvoiceNumber string                      `json:"invoice_number"`
	SupplierID    uuid.UUID                   `json:"supplier_id"`
	SupplierName  string                      `json:"supplier_name,omitempty"`
	InvoiceDate   time.Time                   `json:"invoice_date"`
	Lines         []PurchaseLineResponse      `json:"lines"`
	Exchanges     []ExchangeResponse          `json:"exchanges"`
	GrandTotal    decimal.Decimal             `json:"grand_total"`
	Status        string                      `json:"status"`
	CancelledAt   *time.Time                  `json:"cancelled_at,omitempty"`
	ObligationID  *uuid.UUID                  `json:"obligation_id,omitempty"`
	Receipt       *financeapp.ReceiptResponse `json:"receipt,omitempty"`
}

// SaleItemResponse is a sold catalog piece
type SaleItemResponse struct {
	ID            uuid.UUID       `json:"id"`
	CatalogItemID uuid.UUID       `json:"catalog_item_id"`
	Name          string          `json:"name,omitempty"`
	Quantity      decimal.Decimal `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Amount        decimal.Decimal `json:"amount"`
}

// SaleResponse is a posted sale bill
type SaleResponse struct {
	ID            uuid.UUID                   `json:"id"`
	BillNumber    string                      `json:"bill_number"`
	CustomerID    uuid.UUID                   `json:"customer_id"`
	CustomerName  string                      `json:"customer_name,omitempty"`
	BillDate      time.Time                   `json:"bill_date"`
	Items         []SaleItemResponse          `json:"items"`
	Exchanges     []ExchangeResponse          `json:"exchanges"`
	ItemsTotal    decimal.Decimal             `json:"items_total"`
	ExchangeTotal decimal.Decimal             `json:"exchange_total"`
	GrandTotal    decimal.Decimal             `json:"grand_total"`
	Status        string                      `json:"status"`
	CancelledAt   *time.Time                  `json:"cancelled_at,omitempty"`
	ObligationID  *uuid.UUID                  `json:"obligation_id,omitempty"`
	Receipt       *financeapp.ReceiptResponse `json:"receipt,omitempty"`
}

// LineFailureResponse is a line whose metal could not be moved back
type LineFailureResponse struct {
	LineID  string `json:"line_id"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// CancelResult reports a best-effort cancellation of a posted document
type CancelResult struct {
	DocumentID uuid.UUID             `json:"document_id"`
	Outcome    string                `json:"outcome"`
	Status     string                `json:"status"`
	Reversed   []uuid.UUID           `json:"reversed"`
	Failures   []LineFailureResponse `json:"failures,omitempty"`
}

// ToPurchaseResponse converts a domain purchase event
func ToPurchaseResponse(ev *purchase.PurchaseEvent) PurchaseResponse {
	lines := make([]PurchaseLineResponse, len(ev.Lines))
	for i, l := range ev.Lines {
		lines[i] = PurchaseLineResponse{
			ID:          l.ID,
			MetalKey:    l.Key.String(),
			GrossWeight: l.GrossWeight,
			NetWeight:   l.NetWeight,
			Rate:        l.Rate,
			Amount:      l.Amount,
			ReversedAt:  l.ReversedAt,
		}
	}
	exchanges := make([]ExchangeResponse, len(ev.Exchanges))
	for i, x := range ev.Exchanges {
		exchanges[i] = ExchangeResponse{
			ID:          x.ID,
			MetalKey:    x.Key.String(),
			GrossWeight: x.Weight,
			NetWeight:   x.Weight,
			Value:       x.Value,
			ReversedAt:  x.RestoredAt,
		}
	}
	return PurchaseResponse{
		ID:            ev.ID,
		InvoiceNumber: ev.InvoiceNumber,
		SupplierID:    ev.SupplierID,
		SupplierName:  ev.SupplierName,
		InvoiceDate:   ev.EventDate,
		Lines:         lines,
		Exchanges:     exchanges,
		GrandTotal:    ev.GrandTotal,
		Status:        string(ev.Status),
		CancelledAt:   ev.CancelledAt,
	}
}

// ToSaleResponse converts a domain sale bill
func ToSaleResponse(b *sales.SaleBill) SaleResponse {
	items := make([]SaleItemResponse, len(b.Items))
	for i, it := range b.Items {
		items[i] = SaleItemResponse{
			ID:            it.ID,
			CatalogItemID: it.CatalogItemID,
			Name:          it.Name,
			Quantity:      it.Quantity,
			UnitPrice:     it.UnitPrice,
			Amount:        it.Amount,
		}
	}
	exchanges := make([]ExchangeResponse, len(b.Exchanges))
	for i, x := range b.Exchanges {
		exchanges[i] = ExchangeResponse{
			ID:          x.ID,
			MetalKey:    x.Key.String(),
			GrossWeight: x.GrossWeight,
			NetWeight:   x.NetWeight,
			Value:       x.Value,
			ReversedAt:  x.ReversedAt,
		}
	}
	return SaleResponse{
		ID:            b.ID,
		BillNumber:    b.BillNumber,
		CustomerID:    b.CustomerID,
		CustomerName:  b.CustomerName,
		BillDate:      b.BillDate,
		Items:         items,
		Exchanges:     exchanges,
		ItemsTotal:    b.ItemsTotal,
		ExchangeTotal: b.ExchangeTotal,
		GrandTotal:    b.GrandTotal,
		Status:        string(b.Status),
		CancelledAt:   b.CancelledAt,
	}
}
