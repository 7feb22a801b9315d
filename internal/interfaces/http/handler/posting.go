package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/jewelryerp/backend/internal/application/posting"
)

// PostingHandler posts and cancels purchase invoices and sale bills
type PostingHandler struct {
	BaseHandler
	posting *posting.Service
}

// NewPostingHandler creates a new posting handler
func NewPostingHandler(svc *posting.Service) *PostingHandler {
	return &PostingHandler{posting: svc}
}

// PostPurchase godoc
// @ID           postPurchaseInvoice
// @Summary      Post a supplier purchase invoice
// @Description  Adds the metal lines to stock, raises the bill and records an optional counter payment in one transaction
// @Tags         purchases
// @Accept       json
// @Produce      json
// @Param        request body posting.PostPurchaseRequest true "Invoice"
// @Success      201 {object} APIResponse[posting.PurchaseResponse]
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /purchases [post]
func (h *PostingHandler) PostPurchase(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	var req posting.PostPurchaseRequest
	if !h.bindJSON(c, &req) {
		return
	}
	resp, err := h.posting.PostPurchaseInvoice(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// CancelPurchase godoc
// @ID           cancelPurchaseInvoice
// @Summary      Cancel an unpaid purchase invoice
// @Tags         purchases
// @Produce      json
// @Param        id path string true "Purchase event ID" format(uuid)
// @Success      200 {object} APIResponse[posting.CancelResult]
// @Success      207 {object} APIResponse[posting.CancelResult]
// @Failure      422 {object} ErrorResponse
// @Router       /purchases/{id}/cancel [post]
func (h *PostingHandler) CancelPurchase(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	result, err := h.posting.CancelPurchaseInvoice(c.Request.Context(), tenantID, id)
	handleReversal(&h.BaseHandler, c, result, err)
}

// PostSale godoc
// @ID           postSaleBill
// @Summary      Post a customer sale bill
// @Description  Takes customer exchange metal into the exchange pool, raises the invoice and queues the catalog stock reduction
// @Tags         sales
// @Accept       json
// @Produce      json
// @Param        request body posting.PostSaleRequest true "Bill"
// @Success      201 {object} APIResponse[posting.SaleResponse]
// @Failure      409 {object} ErrorResponse
// @Router       /sales [post]
func (h *PostingHandler) PostSale(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	var req posting.PostSaleRequest
	if !h.bindJSON(c, &req) {
		return
	}
	resp, err := h.posting.PostSaleBill(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// CancelSale godoc
// @ID           cancelSaleBill
// @Summary      Cancel an unpaid sale bill
// @Tags         sales
// @Produce      json
// @Param        id path string true "Bill ID" format(uuid)
// @Success      200 {object} APIResponse[posting.CancelResult]
// @Success      207 {object} APIResponse[posting.CancelResult]
// @Router       /sales/{id}/cancel [post]
func (h *PostingHandler) CancelSale(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	result, err := h.posting.CancelSaleBill(c.Request.Context(), tenantID, id)
	handleReversal(&h.BaseHandler, c, result, err)
}
