package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jewelryerp/backend/internal/application/audit"
)

// AuditRecorder receives the number of findings of each audit run
type AuditRecorder interface {
	RecordAudit(ctx context.Context, tenantID uuid.UUID, findings int)
}

// AuditHandler runs the ledger consistency audit for the calling tenant
type AuditHandler struct {
	BaseHandler
	auditor  *audit.Auditor
	recorder AuditRecorder
}

// NewAuditHandler creates a new audit handler; recorder may be nil
func NewAuditHandler(auditor *audit.Auditor, recorder AuditRecorder) *AuditHandler {
	return &AuditHandler{auditor: auditor, recorder: recorder}
}

// Run godoc
// @ID           runLedgerAudit
// @Summary      Recompute cached balances and report disagreements
// @Description  Findings are reported in the body; the call itself succeeds either way
// @Tags         audit
// @Produce      json
// @Success      200 {object} APIResponse[audit.Report]
// @Router       /audit [post]
func (h *AuditHandler) Run(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	report, err := h.auditor.Run(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if h.recorder != nil {
		h.recorder.RecordAudit(c.Request.Context(), tenantID, report.Findings())
	}
	h.Success(c, report)
}
