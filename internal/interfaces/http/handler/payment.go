package handler

import (
	"github.com/gin-gonic/gin"

	financeapp "github.com/jewelryerp/backend/internal/application/finance"
)

// PaymentHandler handles payment receipts and the obligations they settle
type PaymentHandler struct {
	BaseHandler
	payments *financeapp.PaymentService
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(payments *financeapp.PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// Apply godoc
// @ID           applyPayment
// @Summary      Record a payment and allocate it to the oldest open obligations
// @Description  Allocation is oldest first. An amount beyond everything pending is not allocated anywhere; it is reported as unallocated_amount on the receipt and is not kept as credit.
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        request body financeapp.ApplyPaymentRequest true "Payment"
// @Success      201 {object} APIResponse[financeapp.ReceiptResponse]
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /payments [post]
func (h *PaymentHandler) Apply(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	var req financeapp.ApplyPaymentRequest
	if !h.bindJSON(c, &req) {
		return
	}
	receipt, err := h.payments.Apply(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, receipt)
}

// ListReceipts godoc
// @ID           listPayments
// @Summary      List the receipts of a party, newest first
// @Tags         payments
// @Produce      json
// @Param        party_id query string true "Party ID" format(uuid)
// @Success      200 {object} APIResponse[[]financeapp.ReceiptResponse]
// @Router       /payments [get]
func (h *PaymentHandler) ListReceipts(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	partyID, ok := h.queryUUID(c, "party_id")
	if !ok {
		return
	}
	if partyID == nil {
		h.BadRequest(c, "party_id is required")
		return
	}
	p := page(c)
	receipts, total, err := h.payments.ListReceipts(c.Request.Context(), tenantID, *partyID, p)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, receipts, total, p)
}

// GetReceipt godoc
// @ID           getPayment
// @Summary      Get a receipt with its allocations
// @Tags         payments
// @Produce      json
// @Param        id path string true "Receipt ID" format(uuid)
// @Success      200 {object} APIResponse[financeapp.ReceiptResponse]
// @Failure      404 {object} ErrorResponse
// @Router       /payments/{id} [get]
func (h *PaymentHandler) GetReceipt(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	receipt, err := h.payments.GetReceipt(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, receipt)
}

// Delete godoc
// @ID           deletePayment
// @Summary      Void a receipt
// @Description  Unwinds the allocations newest first and reverses the bank entry
// @Tags         payments
// @Produce      json
// @Param        id path string true "Receipt ID" format(uuid)
// @Param        reason query string false "Reason"
// @Success      200 {object} APIResponse[financeapp.DeletePaymentResult]
// @Failure      404 {object} ErrorResponse
// @Router       /payments/{id} [delete]
func (h *PaymentHandler) Delete(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	req := financeapp.DeletePaymentRequest{Reason: c.Query("reason")}
	if c.Request.ContentLength > 0 && !h.bindJSON(c, &req) {
		return
	}
	result, err := h.payments.Delete(c.Request.Context(), tenantID, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// RegisterObligation godoc
// @ID           registerObligation
// @Summary      Record an invoice or bill raised outside posting
// @Tags         obligations
// @Accept       json
// @Produce      json
// @Param        request body financeapp.RegisterObligationRequest true "Obligation"
// @Success      201 {object} APIResponse[financeapp.ObligationResponse]
// @Failure      409 {object} ErrorResponse
// @Router       /obligations [post]
func (h *PaymentHandler) RegisterObligation(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	var req financeapp.RegisterObligationRequest
	if !h.bindJSON(c, &req) {
		return
	}
	o, err := h.payments.RegisterObligation(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, o)
}

// ListObligations godoc
// @ID           listObligations
// @Summary      List invoices and bills
// @Tags         obligations
// @Produce      json
// @Param        kind query string false "INVOICE or BILL"
// @Param        party_id query string false "Party ID" format(uuid)
// @Param        status query string false "Comma separated statuses"
// @Param        order_by query string false "obligation_date, number, grand_total or pending_amount"
// @Param        order_dir query string false "asc or desc"
// @Success      200 {object} APIResponse[[]financeapp.ObligationResponse]
// @Router       /obligations [get]
func (h *PaymentHandler) ListObligations(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	partyID, ok := h.queryUUID(c, "party_id")
	if !ok {
		return
	}
	filter := financeapp.ObligationListFilter{
		Kind:     c.Query("kind"),
		PartyID:  partyID,
		Status:   c.Query("status"),
		OrderBy:  c.Query("order_by"),
		OrderDir: c.Query("order_dir"),
	}
	p := page(c)
	list, total, err := h.payments.ListObligations(c.Request.Context(), tenantID, filter, p)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, list, total, p)
}

// GetObligation godoc
// @ID           getObligation
// @Summary      Get an invoice or bill
// @Tags         obligations
// @Produce      json
// @Param        id path string true "Obligation ID" format(uuid)
// @Success      200 {object} APIResponse[financeapp.ObligationResponse]
// @Failure      404 {object} ErrorResponse
// @Router       /obligations/{id} [get]
func (h *PaymentHandler) GetObligation(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	o, err := h.payments.GetObligation(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, o)
}

// PendingTotal godoc
// @ID           getObligationPendingTotal
// @Summary      What a party still owes (INVOICE) or is owed (BILL)
// @Tags         obligations
// @Produce      json
// @Param        kind query string true "INVOICE or BILL"
// @Param        party_id query string true "Party ID" format(uuid)
// @Success      200 {object} APIResponse[AmountData]
// @Router       /obligations/pending [get]
func (h *PaymentHandler) PendingTotal(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	partyID, ok := h.queryUUID(c, "party_id")
	if !ok {
		return
	}
	if partyID == nil {
		h.BadRequest(c, "party_id is required")
		return
	}
	total, err := h.payments.PendingTotal(c.Request.Context(), tenantID, c.Query("kind"), *partyID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, AmountData{Amount: total})
}
