package handler

import (
	"net/http"

	"github.com/cloud-wave-best-zizon/inventory-service/pkg/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter wires the presentation routes.
func NewRouter(catalog *CatalogHandler, orders *OrderHandler, storeDriver string, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/items", catalog.ListItems)
		v1.POST("/items", catalog.AddItem)
		v1.GET("/items/:name", catalog.GetItem)
		v1.GET("/items/:name/stock", catalog.GetStock)

		v1.POST("/orders/builds", orders.NewBuild)
		v1.POST("/orders/builds/lines", orders.AddLine)
		v1.POST("/orders/builds/summary", orders.Summary)
		v1.POST("/orders", orders.Submit)
		v1.GET("/orders/:id", orders.GetOrder)

		v1.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status":  "healthy",
				"service": "inventory-service",
				"store":   storeDriver,
			})
		})
	}
	return router
}
