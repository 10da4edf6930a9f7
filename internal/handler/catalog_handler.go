package handler

import (
	"net/http"
	"strings"

	"github.com/cloud-wave-best-zizon/inventory-service/internal/domain"
	"github.com/cloud-wave-best-zizon/inventory-service/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type CatalogHandler struct {
	catalogService *service.CatalogService
	logger         *zap.Logger
}

func NewCatalogHandler(catalogService *service.CatalogService, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalogService: catalogService,
		logger:         logger,
	}
}

// AddItem handles the new-item form.
func (h *CatalogHandler) AddItem(c *gin.Context) {
	var req domain.AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, h.logger, err)
		return
	}

	item, err := h.catalogService.AddItem(c.Request.Context(), req)
	if err != nil {
		writeError(c, h.logger, err, nil)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *CatalogHandler) ListItems(c *gin.Context) {
	items, err := h.catalogService.ListItems(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *CatalogHandler) GetItem(c *gin.Context) {
	item, err := h.catalogService.GetItem(c.Request.Context(), c.Param("name"))
	if err != nil {
		writeError(c, h.logger, err, nil)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *CatalogHandler) GetStock(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))
	qty, err := h.catalogService.GetStockQuantity(c.Request.Context(), name)
	if err != nil {
		writeError(c, h.logger, err, nil)
		return
	}
	c.JSON(http.StatusOK, domain.StockLevel{ItemName: name, StockQuantity: qty})
}
