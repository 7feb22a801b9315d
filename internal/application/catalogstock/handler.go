package catalogstock

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jewelryerp/backend/internal/domain/sales"
	"github.com/jewelryerp/backend/internal/domain/shared"
)

// StockChangeHandler applies CatalogStockReductionRequested and
// CatalogStockRestoreRequested events delivered by the outbox. It is not
// idempotent on its own; wrap it with event.NewIdempotentHandler.
type StockChangeHandler struct {
	service *Service
	logger  *zap.Logger
}

// NewStockChangeHandler creates a new handler for sale stock events
func NewStockChangeHandler(service *Service, logger *zap.Logger) *StockChangeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StockChangeHandler{service: service, logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (h *StockChangeHandler) EventTypes() []string {
	return []string{
		sales.EventTypeCatalogStockReductionRequested,
		sales.EventTypeCatalogStockRestoreRequested,
	}
}

// Handle reduces or restores the catalog stock of every line on the bill
func (h *StockChangeHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	change, ok := event.(*sales.CatalogStockChangeEvent)
	if !ok {
		h.logger.Error("unexpected event type",
			zap.String("expected", "CatalogStockChangeEvent"),
			zap.String("actual", event.EventType()),
		)
		return fmt.Errorf("unexpected event type: %s", event.EventType())
	}

	reduce := change.EventType() == sales.EventTypeCatalogStockReductionRequested
	if err := h.service.apply(ctx, change.TenantID(), change.Lines, reduce); err != nil {
		h.logger.Error("failed to apply catalog stock change",
			zap.String("bill_id", change.BillID.String()),
			zap.String("bill_number", change.BillNumber),
			zap.String("event_type", change.EventType()),
			zap.Error(err),
		)
		return err
	}

	h.logger.Info("catalog stock updated",
		zap.String("bill_number", change.BillNumber),
		zap.String("event_type", change.EventType()),
		zap.Int("lines", len(change.Lines)),
	)
	return nil
}

var _ shared.EventHandler = (*StockChangeHandler)(nil)
