package event

import (
	"github.com/jewelryerp/backend/internal/domain/bank"
	"github.com/jewelryerp/backend/internal/domain/finance"
	"github.com/jewelryerp/backend/internal/domain/metal"
	"github.com/jewelryerp/backend/internal/domain/sales"
)

// RegisterAllEvents binds every event the ledgers raise to its payload type
func RegisterAllEvents(serializer *EventSerializer) {
	// both metal pools share one payload
	Bind[metal.MetalMovedEvent](serializer,
		metal.EventTypeMetalAcquired,
		metal.EventTypeMetalConsumed,
		metal.EventTypeMetalRestored,
		metal.EventTypeMetalReconciled,
		metal.EventTypeAcquisitionReversed,
	)

	Bind[bank.BankEntryRecordedEvent](serializer, bank.EventTypeBankEntryRecorded)

	Bind[finance.ObligationSettledEvent](serializer, finance.EventTypeObligationSettled)
	Bind[finance.PaymentAppliedEvent](serializer, finance.EventTypePaymentApplied)
	Bind[finance.PaymentVoidedEvent](serializer, finance.EventTypePaymentVoided)

	Bind[sales.CatalogStockChangeEvent](serializer,
		sales.EventTypeCatalogStockReductionRequested,
		sales.EventTypeCatalogStockRestoreRequested,
	)
}

// NewLedgerEventSerializer returns a serializer with every ledger event bound
func NewLedgerEventSerializer() *EventSerializer {
	s := NewEventSerializer()
	RegisterAllEvents(s)
	return s
}
