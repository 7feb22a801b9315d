package handler

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	metalledger "github.com/jewelryerp/backend/internal/application/metal"
	"github.com/jewelryerp/backend/internal/domain/metal"
)

// MetalHandler exposes the STOCK and EXCHANGE metal ledgers under
// /metal/:pool. The pool segment is case-insensitive.
type MetalHandler struct {
	BaseHandler
	ledgers map[metal.Pool]*metalledger.Ledger
}

// NewMetalHandler creates a handler over the given pool ledgers
func NewMetalHandler(ledgers ...*metalledger.Ledger) *MetalHandler {
	h := &MetalHandler{ledgers: make(map[metal.Pool]*metalledger.Ledger, len(ledgers))}
	for _, l := range ledgers {
		h.ledgers[l.Pool()] = l
	}
	return h
}

// AvailableQuery selects a metal key from the query string
type AvailableQuery struct {
	MetalID   string `form:"metal_id" binding:"omitempty,uuid"`
	MetalType string `form:"metal_type"`
	Purity    string `form:"purity"`
}

func (h *MetalHandler) ledger(c *gin.Context) (*metalledger.Ledger, bool) {
	l, ok := h.ledgers[metal.Pool(strings.ToUpper(c.Param("pool")))]
	if !ok {
		h.BadRequest(c, "Unknown metal pool")
	}
	return l, ok
}

// Acquire godoc
// @ID           acquireMetal
// @Summary      Add metal to a pool
// @Tags         metal
// @Accept       json
// @Produce      json
// @Param        pool path string true "stock or exchange"
// @Param        request body metalledger.AcquireRequest true "Acquisition"
// @Success      200 {object} APIResponse[metalledger.AccountResponse]
// @Failure      400 {object} ErrorResponse
// @Router       /metal/{pool}/acquire [post]
func (h *MetalHandler) Acquire(c *gin.Context) {
	l, ok := h.ledger(c)
	if !ok {
		return
	}
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	var req metalledger.AcquireRequest
	if !h.bindJSON(c, &req) {
		return
	}
	account, err := l.Acquire(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, account)
}

// Consume godoc
// @ID           consumeMetal
// @Summary      Take metal out of a pool
// @Description  Refused with ERR_INSUFFICIENT_STOCK when the pool holds less than requested
// @Tags         metal
// @Accept       json
// @Produce      json
// @Param        pool path string true "stock or exchange"
// @Param        request body metalledger.WeightRequest true "Consumption"
// @Success      200 {object} APIResponse[metalledger.AccountResponse]
// @Failure      422 {object} ErrorResponse
// @Router       /metal/{pool}/consume [post]
func (h *MetalHandler) Consume(c *gin.Context) {
	h.weight(c, (*metalledger.Ledger).Consume)
}

// Restore godoc
// @ID           restoreMetal
// @Summary      Put previously consumed metal back
// @Tags         metal
// @Accept       json
// @Produce      json
// @Param        pool path string true "stock or exchange"
// @Param        request body metalledger.WeightRequest true "Restoration"
// @Success      200 {object} APIResponse[metalledger.AccountResponse]
// @Router       /metal/{pool}/restore [post]
func (h *MetalHandler) Restore(c *gin.Context) {
	h.weight(c, (*metalledger.Ledger).Restore)
}

// ReverseAcquisition godoc
// @ID           reverseMetalAcquisition
// @Summary      Undo an acquisition
// @Tags         metal
// @Accept       json
// @Produce      json
// @Param        pool path string true "stock or exchange"
// @Param        request body metalledger.WeightRequest true "Reversal"
// @Success      200 {object} APIResponse[metalledger.AccountResponse]
// @Failure      422 {object} ErrorResponse
// @Router       /metal/{pool}/reverse [post]
func (h *MetalHandler) ReverseAcquisition(c *gin.Context) {
	h.weight(c, (*metalledger.Ledger).ReverseAcquisition)
}

type weightOp func(*metalledger.Ledger, context.Context, uuid.UUID, metalledger.WeightRequest) (*metalledger.AccountResponse, error)

func (h *MetalHandler) weight(c *gin.Context, op weightOp) {
	l, ok := h.ledger(c)
	if !ok {
		return
	}
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	var req metalledger.WeightRequest
	if !h.bindJSON(c, &req) {
		return
	}
	account, err := op(l, c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, account)
}

// Reconcile godoc
// @ID           reconcileMetal
// @Summary      Reset an account to a physically counted weight
// @Tags         metal
// @Accept       json
// @Produce      json
// @Param        pool path string true "stock or exchange"
// @Param        request body metalledger.ReconcileRequest true "Count"
// @Success      200 {object} APIResponse[metalledger.AccountResponse]
// @Router       /metal/{pool}/reconcile [post]
func (h *MetalHandler) Reconcile(c *gin.Context) {
	l, ok := h.ledger(c)
	if !ok {
		return
	}
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	var req metalledger.ReconcileRequest
	if !h.bindJSON(c, &req) {
		return
	}
	account, err := l.Reconcile(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, account)
}

// ListAccounts godoc
// @ID           listMetalAccounts
// @Summary      List the accounts of a pool
// @Tags         metal
// @Produce      json
// @Param        pool path string true "stock or exchange"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Items per page" default(20)
// @Success      200 {object} APIResponse[[]metalledger.AccountResponse]
// @Router       /metal/{pool}/accounts [get]
func (h *MetalHandler) ListAccounts(c *gin.Context) {
	l, ok := h.ledger(c)
	if !ok {
		return
	}
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	p := page(c)
	accounts, total, err := l.ListAccounts(c.Request.Context(), tenantID, p)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, accounts, total, p)
}

// GetAccount godoc
// @ID           getMetalAccount
// @Summary      Get a metal account
// @Tags         metal
// @Produce      json
// @Param        pool path string true "stock or exchange"
// @Param        id path string true "Account ID" format(uuid)
// @Success      200 {object} APIResponse[metalledger.AccountResponse]
// @Failure      404 {object} ErrorResponse
// @Router       /metal/{pool}/accounts/{id} [get]
func (h *MetalHandler) GetAccount(c *gin.Context) {
	l, ok := h.ledger(c)
	if !ok {
		return
	}
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	account, err := l.GetAccount(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, account)
}

// ListEntries godoc
// @ID           listMetalEntries
// @Summary      List the ledger entries of a metal account, newest first
// @Tags         metal
// @Produce      json
// @Param        pool path string true "stock or exchange"
// @Param        id path string true "Account ID" format(uuid)
// @Success      200 {object} APIResponse[[]metalledger.EntryResponse]
// @Router       /metal/{pool}/accounts/{id}/entries [get]
func (h *MetalHandler) ListEntries(c *gin.Context) {
	l, ok := h.ledger(c)
	if !ok {
		return
	}
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	p := page(c)
	entries, total, err := l.ListEntries(c.Request.Context(), tenantID, id, p)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, entries, total, p)
}

// Available godoc
// @ID           getMetalAvailable
// @Summary      Available weight of a metal key
// @Description  Unknown keys report zero
// @Tags         metal
// @Produce      json
// @Param        pool path string true "stock or exchange"
// @Param        metal_id query string false "Metal ID" format(uuid)
// @Param        metal_type query string false "Metal type"
// @Param        purity query string false "Purity"
// @Success      200 {object} APIResponse[WeightData]
// @Router       /metal/{pool}/available [get]
func (h *MetalHandler) Available(c *gin.Context) {
	l, ok := h.ledger(c)
	if !ok {
		return
	}
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	var q AvailableQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BadRequest(c, "Invalid query parameters")
		return
	}
	in := metalledger.KeyInput{MetalType: q.MetalType, Purity: q.Purity}
	if q.MetalID != "" {
		id := uuid.MustParse(q.MetalID)
		in.MetalID = &id
	}
	key, err := in.Key()
	if err != nil {
		h.HandleError(c, err)
		return
	}
	weight, err := l.Available(c.Request.Context(), tenantID, in)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, WeightData{MetalKey: key.String(), Available: weight})
}
