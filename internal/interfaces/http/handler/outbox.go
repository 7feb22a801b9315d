package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jewelryerp/backend/internal/application/outbox"
)

// OutboxHandler handles outbox management HTTP requests
type OutboxHandler struct {
	BaseHandler
	admin *outbox.Admin
	now   func() time.Time
}

// NewOutboxHandler creates a new outbox handler
func NewOutboxHandler(admin *outbox.Admin) *OutboxHandler {
	return &OutboxHandler{admin: admin, now: time.Now}
}

// GetDeadLetterEntries godoc
// @ID           getOutboxDeadLetterEntries
// @Summary      List dead letter entries
// @Description  Get a paginated list of dead letter queue entries
// @Tags         outbox
// @Produce      json
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Items per page" default(20)
// @Success      200 {object} APIResponse[[]outbox.EntryResponse]
// @Failure      500 {object} ErrorResponse
// @Router       /system/outbox/dead [get]
func (h *OutboxHandler) GetDeadLetterEntries(c *gin.Context) {
	p := page(c)
	result, err := h.admin.ListDead(c.Request.Context(), p)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, result.Items, result.Total, p)
}

// GetEntry godoc
// @ID           getOutboxEntry
// @Summary      Get an outbox entry by ID
// @Tags         outbox
// @Produce      json
// @Param        id path string true "Outbox Entry ID" format(uuid)
// @Success      200 {object} APIResponse[outbox.EntryResponse]
// @Failure      404 {object} ErrorResponse
// @Router       /system/outbox/{id} [get]
func (h *OutboxHandler) GetEntry(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	entry, err := h.admin.GetEntry(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entry)
}

// RetryDeadEntry godoc
// @ID           retryOutboxDeadEntry
// @Summary      Requeue a dead letter entry
// @Tags         outbox
// @Produce      json
// @Param        id path string true "Outbox Entry ID" format(uuid)
// @Success      200 {object} APIResponse[outbox.EntryResponse]
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /system/outbox/{id}/retry [post]
func (h *OutboxHandler) RetryDeadEntry(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	entry, err := h.admin.RetryDead(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entry)
}

// RetryAllDeadEntries godoc
// @ID           retryAllOutboxDeadEntries
// @Summary      Requeue every dead letter entry
// @Tags         outbox
// @Produce      json
// @Success      200 {object} APIResponse[CountData]
// @Router       /system/outbox/dead/retry-all [post]
func (h *OutboxHandler) RetryAllDeadEntries(c *gin.Context) {
	n, err := h.admin.RetryAllDead(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, CountData{Count: n})
}

// GetStats godoc
// @ID           getOutboxStats
// @Summary      Count outbox entries per status
// @Tags         outbox
// @Produce      json
// @Success      200 {object} APIResponse[outbox.StatsResponse]
// @Router       /system/outbox/stats [get]
func (h *OutboxHandler) GetStats(c *gin.Context) {
	stats, err := h.admin.Stats(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stats)
}

// PurgeSent godoc
// @ID           purgeOutboxSent
// @Summary      Delete delivered entries older than a cutoff
// @Tags         outbox
// @Produce      json
// @Param        older_than query string false "Go duration, default 168h"
// @Success      200 {object} APIResponse[CountData]
// @Failure      400 {object} ErrorResponse
// @Router       /system/outbox/sent [delete]
func (h *OutboxHandler) PurgeSent(c *gin.Context) {
	olderThan := 7 * 24 * time.Hour
	if raw := c.Query("older_than"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			h.BadRequest(c, "Invalid older_than")
			return
		}
		olderThan = d
	}
	n, err := h.admin.PurgeSent(c.Request.Context(), h.now().Add(-olderThan))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, CountData{Count: n})
}
