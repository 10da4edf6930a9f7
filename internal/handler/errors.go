package handler

import (
	"errors"
	"net/http"

	"github.com/cloud-wave-best-zizon/inventory-service/internal/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// writeError maps domain errors onto HTTP responses. extra is merged into
// the body.
func writeError(c *gin.Context, logger *zap.Logger, err error, extra gin.H) {
	requestID := c.GetString("request_id")
	body := gin.H{
		"error":      err.Error(),
		"request_id": requestID,
	}

	var status int
	var stockErr *domain.InsufficientStockError
	switch {
	case errors.As(err, &stockErr):
		status = http.StatusConflict
		body["code"] = "insufficient_stock"
		body["shortages"] = stockErr.Shortages
	case errors.Is(err, domain.ErrValidation):
		status = http.StatusBadRequest
		body["code"] = "validation_error"
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrOrderNotFound):
		status = http.StatusNotFound
		body["code"] = "not_found"
	case errors.Is(err, domain.ErrStorage):
		status = http.StatusServiceUnavailable
		body["code"] = "storage_error"
		body["error"] = "storage temporarily unavailable"
		body["retryable"] = true
	default:
		status = http.StatusInternalServerError
		body["code"] = "internal_error"
		body["error"] = "internal error"
	}

	if status >= http.StatusInternalServerError {
		logger.Error("Request failed",
			zap.String("request_id", requestID),
			zap.Error(err))
	}

	for k, v := range extra {
		body[k] = v
	}
	c.JSON(status, body)
}

func bindError(c *gin.Context, logger *zap.Logger, err error) {
	logger.Warn("Invalid request",
		zap.String("request_id", c.GetString("request_id")),
		zap.Error(err))
	c.JSON(http.StatusBadRequest, gin.H{
		"error":      "Invalid request format",
		"code":       "validation_error",
		"details":    err.Error(),
		"request_id": c.GetString("request_id"),
	})
}
