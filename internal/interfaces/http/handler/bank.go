package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	bankledger "github.com/jewelryerp/backend/internal/application/bank"
)

// BankHandler handles bank and cash account requests
type BankHandler struct {
	BaseHandler
	ledger *bankledger.AccountLedger
	now    func() time.Time
}

// NewBankHandler creates a new bank handler
func NewBankHandler(ledger *bankledger.AccountLedger) *BankHandler {
	return &BankHandler{ledger: ledger, now: time.Now}
}

// OpenAccount godoc
// @ID           openBankAccount
// @Summary      Open a bank or cash account
// @Tags         bank
// @Accept       json
// @Produce      json
// @Param        request body bankledger.OpenAccountRequest true "Account"
// @Success      201 {object} APIResponse[bankledger.AccountResponse]
// @Failure      400 {object} ErrorResponse
// @Router       /bank/accounts [post]
func (h *BankHandler) OpenAccount(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	var req bankledger.OpenAccountRequest
	if !h.bindJSON(c, &req) {
		return
	}
	account, err := h.ledger.OpenAccount(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, account)
}

// ListAccounts godoc
// @ID           listBankAccounts
// @Summary      List bank and cash accounts
// @Tags         bank
// @Produce      json
// @Success      200 {object} APIResponse[[]bankledger.AccountResponse]
// @Router       /bank/accounts [get]
func (h *BankHandler) ListAccounts(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	accounts, err := h.ledger.ListAccounts(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, accounts)
}

// GetAccount godoc
// @ID           getBankAccount
// @Summary      Get a bank account
// @Tags         bank
// @Produce      json
// @Param        id path string true "Account ID" format(uuid)
// @Success      200 {object} APIResponse[bankledger.AccountResponse]
// @Failure      404 {object} ErrorResponse
// @Router       /bank/accounts/{id} [get]
func (h *BankHandler) GetAccount(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	account, err := h.ledger.GetAccount(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, account)
}

// ListEntries godoc
// @ID           listBankEntries
// @Summary      List the entries of an account
// @Tags         bank
// @Produce      json
// @Param        id path string true "Account ID" format(uuid)
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Items per page" default(20)
// @Success      200 {object} APIResponse[[]bankledger.EntryResponse]
// @Router       /bank/accounts/{id}/entries [get]
func (h *BankHandler) ListEntries(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	p := page(c)
	entries, total, err := h.ledger.ListEntries(c.Request.Context(), tenantID, id, p)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, entries, total, p)
}

// Balance godoc
// @ID           getBankBalanceAtDate
// @Summary      Balance of an account at a point in time
// @Description  at accepts RFC 3339 or YYYY-MM-DD (end of that day, UTC); defaults to now
// @Tags         bank
// @Produce      json
// @Param        id path string true "Account ID" format(uuid)
// @Param        at query string false "Point in time"
// @Success      200 {object} APIResponse[BalanceData]
// @Router       /bank/accounts/{id}/balance [get]
func (h *BankHandler) Balance(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	at, err := parseAt(c.Query("at"), h.now)
	if err != nil {
		h.BadRequest(c, "Invalid at, expected RFC 3339 or YYYY-MM-DD")
		return
	}
	balance, err := h.ledger.BalanceAtDate(c.Request.Context(), tenantID, id, at)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, BalanceData{AccountID: id.String(), At: at.Format(time.RFC3339), Balance: balance})
}

func parseAt(raw string, now func() time.Time) (time.Time, error) {
	if raw == "" {
		return now(), nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	day, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, err
	}
	return day.Add(24*time.Hour - time.Nanosecond), nil
}

// Verify godoc
// @ID           verifyBankAccount
// @Summary      Recompute an account from its entries
// @Tags         bank
// @Produce      json
// @Param        id path string true "Account ID" format(uuid)
// @Success      200 {object} APIResponse[bankledger.VerificationResult]
// @Router       /bank/accounts/{id}/verify [get]
func (h *BankHandler) Verify(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	result, err := h.ledger.Verify(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// RecordCredit godoc
// @ID           recordBankCredit
// @Summary      Record money into an account
// @Tags         bank
// @Accept       json
// @Produce      json
// @Param        request body bankledger.PostingRequest true "Credit"
// @Success      201 {object} APIResponse[bankledger.EntryResponse]
// @Router       /bank/credits [post]
func (h *BankHandler) RecordCredit(c *gin.Context) {
	h.post(c, (*bankledger.AccountLedger).RecordCredit)
}

// RecordDebit godoc
// @ID           recordBankDebit
// @Summary      Record money out of an account
// @Description  Debits may overdraw the account; the entry keeps the resulting balance
// @Tags         bank
// @Accept       json
// @Produce      json
// @Param        request body bankledger.PostingRequest true "Debit"
// @Success      201 {object} APIResponse[bankledger.EntryResponse]
// @Router       /bank/debits [post]
func (h *BankHandler) RecordDebit(c *gin.Context) {
	h.post(c, (*bankledger.AccountLedger).RecordDebit)
}

func (h *BankHandler) post(c *gin.Context, op func(*bankledger.AccountLedger, context.Context, uuid.UUID, bankledger.PostingRequest) (*bankledger.EntryResponse, error)) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	var req bankledger.PostingRequest
	if !h.bindJSON(c, &req) {
		return
	}
	entry, err := op(h.ledger, c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, entry)
}

// ReconcileEntry godoc
// @ID           reconcileBankEntry
// @Summary      Mark an entry as matched with the bank statement
// @Tags         bank
// @Accept       json
// @Produce      json
// @Param        id path string true "Entry ID" format(uuid)
// @Param        request body bankledger.ReconcileEntryRequest true "Reconciliation"
// @Success      200 {object} APIResponse[bankledger.EntryResponse]
// @Failure      422 {object} ErrorResponse
// @Router       /bank/entries/{id}/reconcile [post]
func (h *BankHandler) ReconcileEntry(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req bankledger.ReconcileEntryRequest
	if !h.bindJSON(c, &req) {
		return
	}
	entry, err := h.ledger.Reconcile(c.Request.Context(), tenantID, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entry)
}
