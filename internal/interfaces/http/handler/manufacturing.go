package handler

import (
	"github.com/gin-gonic/gin"

	manufacturingapp "github.com/jewelryerp/backend/internal/application/manufacturing"
)

// ManufacturingHandler handles manufacturing records
type ManufacturingHandler struct {
	BaseHandler
	coordinator *manufacturingapp.Coordinator
}

// NewManufacturingHandler creates a new manufacturing handler
func NewManufacturingHandler(coordinator *manufacturingapp.Coordinator) *ManufacturingHandler {
	return &ManufacturingHandler{coordinator: coordinator}
}

// Remaining godoc
// @ID           getPurchaseRemainingMetal
// @Summary      Metal of a purchase not yet turned into finished pieces
// @Tags         manufacturing
// @Produce      json
// @Param        id path string true "Purchase event ID" format(uuid)
// @Success      200 {object} APIResponse[manufacturingapp.RemainingResponse]
// @Failure      404 {object} ErrorResponse
// @Router       /manufacturing/purchases/{id}/remaining [get]
func (h *ManufacturingHandler) Remaining(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	remaining, err := h.coordinator.RemainingForPurchase(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, remaining)
}

// SaveRecord godoc
// @ID           saveManufacturingRecord
// @Summary      Turn purchased metal into finished pieces
// @Description  Consumes the net weight of every item from stock; nothing is consumed if any item is short
// @Tags         manufacturing
// @Accept       json
// @Produce      json
// @Param        request body manufacturingapp.SaveRecordRequest true "Record"
// @Success      201 {object} APIResponse[manufacturingapp.RecordResponse]
// @Failure      422 {object} ErrorResponse
// @Router       /manufacturing/records [post]
func (h *ManufacturingHandler) SaveRecord(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	var req manufacturingapp.SaveRecordRequest
	if !h.bindJSON(c, &req) {
		return
	}
	record, err := h.coordinator.SaveManufacturingRecord(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, record)
}

// CancelRecord godoc
// @ID           cancelManufacturingRecord
// @Summary      Cancel a record and put its metal back
// @Description  Items are restored one by one. When some fail the response is 207 and the call can be repeated.
// @Tags         manufacturing
// @Produce      json
// @Param        id path string true "Record ID" format(uuid)
// @Success      200 {object} APIResponse[manufacturingapp.CancelResult]
// @Success      207 {object} APIResponse[manufacturingapp.CancelResult]
// @Router       /manufacturing/records/{id}/cancel [post]
func (h *ManufacturingHandler) CancelRecord(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	result, err := h.coordinator.CancelManufacturingRecord(c.Request.Context(), tenantID, id)
	handleReversal(&h.BaseHandler, c, result, err)
}

// GetRecord godoc
// @ID           getManufacturingRecord
// @Summary      Get a manufacturing record
// @Tags         manufacturing
// @Produce      json
// @Param        id path string true "Record ID" format(uuid)
// @Success      200 {object} APIResponse[manufacturingapp.RecordResponse]
// @Failure      404 {object} ErrorResponse
// @Router       /manufacturing/records/{id} [get]
func (h *ManufacturingHandler) GetRecord(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	record, err := h.coordinator.GetRecord(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, record)
}

// ListRecords godoc
// @ID           listManufacturingRecords
// @Summary      List manufacturing records
// @Tags         manufacturing
// @Produce      json
// @Param        purchase_event_id query string false "Purchase event ID" format(uuid)
// @Success      200 {object} APIResponse[[]manufacturingapp.RecordResponse]
// @Router       /manufacturing/records [get]
func (h *ManufacturingHandler) ListRecords(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	eventID, ok := h.queryUUID(c, "purchase_event_id")
	if !ok {
		return
	}
	p := page(c)
	records, total, err := h.coordinator.ListRecords(c.Request.Context(), tenantID, eventID, p)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, records, total, p)
}
