package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/jewelryerp/backend/internal/application/catalogstock"
)

// CatalogStockHandler reads and sets finished-piece stock levels
type CatalogStockHandler struct {
	BaseHandler
	stock *catalogstock.Service
}

// NewCatalogStockHandler creates a new catalog stock handler
func NewCatalogStockHandler(stock *catalogstock.Service) *CatalogStockHandler {
	return &CatalogStockHandler{stock: stock}
}

// SetLevel godoc
// @ID           setCatalogStockLevel
// @Summary      Record the counted quantity of a catalog item
// @Tags         catalog-stock
// @Accept       json
// @Produce      json
// @Param        request body catalogstock.SetLevelRequest true "Level"
// @Success      200 {object} APIResponse[catalogstock.LevelResponse]
// @Router       /catalog-stock [put]
func (h *CatalogStockHandler) SetLevel(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	var req catalogstock.SetLevelRequest
	if !h.bindJSON(c, &req) {
		return
	}
	level, err := h.stock.SetLevel(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, level)
}

// GetLevel godoc
// @ID           getCatalogStockLevel
// @Summary      Stock of one catalog item
// @Tags         catalog-stock
// @Produce      json
// @Param        id path string true "Catalog item ID" format(uuid)
// @Success      200 {object} APIResponse[catalogstock.LevelResponse]
// @Failure      404 {object} ErrorResponse
// @Router       /catalog-stock/{id} [get]
func (h *CatalogStockHandler) GetLevel(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	level, err := h.stock.GetLevel(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, level)
}

// ListLevels godoc
// @ID           listCatalogStockLevels
// @Summary      Stock of every catalog item
// @Tags         catalog-stock
// @Produce      json
// @Success      200 {object} APIResponse[[]catalogstock.LevelResponse]
// @Router       /catalog-stock [get]
func (h *CatalogStockHandler) ListLevels(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	levels, err := h.stock.ListLevels(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, levels)
}
