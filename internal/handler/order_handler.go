package handler

import (
	"net/http"

	"github.com/cloud-wave-best-zizon/inventory-service/internal/domain"
	"github.com/cloud-wave-best-zizon/inventory-service/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type OrderHandler struct {
	orderService *service.OrderService
	logger       *zap.Logger
}

func NewOrderHandler(orderService *service.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		logger:       logger,
	}
}

// NewBuild starts a fresh order.
func (h *OrderHandler) NewBuild(c *gin.Context) {
	build := h.orderService.NewOrder()
	c.JSON(http.StatusCreated, domain.AddLineResponse{Build: build, RunningTotal: build.Total()})
}

// AddLine handles "add to order". On rejection the unchanged build is
// echoed back so the client can keep it.
func (h *OrderHandler) AddLine(c *gin.Context) {
	var req domain.AddLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, h.logger, err)
		return
	}

	build, total, err := h.orderService.AddLine(c.Request.Context(), req.Build, req.ItemName, req.Quantity)
	if err != nil {
		writeError(c, h.logger, err, gin.H{"build": build, "running_total": total})
		return
	}

	c.JSON(http.StatusOK, domain.AddLineResponse{Build: build, RunningTotal: total})
}

// Summary reports the total and any lines that current stock can no longer
// cover, without submitting.
func (h *OrderHandler) Summary(c *gin.Context) {
	var req domain.OrderSummaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, h.logger, err)
		return
	}

	total, warnings, err := h.orderService.Summary(c.Request.Context(), req.Build)
	if err != nil {
		writeError(c, h.logger, err, nil)
		return
	}

	c.JSON(http.StatusOK, domain.OrderSummaryResponse{
		Build:       req.Build,
		TotalAmount: total,
		Warnings:    warnings,
	})
}

func (h *OrderHandler) Submit(c *gin.Context) {
	var req domain.SubmitOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, h.logger, err)
		return
	}

	requestID := c.GetString("request_id")

	build, orderID, err := h.orderService.Submit(c.Request.Context(), req.Build)
	if err != nil {
		h.logger.Info("Order submission rejected",
			zap.String("request_id", requestID),
			zap.Error(err))
		writeError(c, h.logger, err, gin.H{"build": build})
		return
	}

	c.JSON(http.StatusCreated, domain.SubmitOrderResponse{
		OrderID:     orderID,
		Build:       build,
		TotalAmount: build.Total(),
		Message:     "Order submitted successfully",
	})
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	order, err := h.orderService.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err, nil)
		return
	}
	c.JSON(http.StatusOK, order)
}
