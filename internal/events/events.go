package events

import (
	"time"

	"github.com/cloud-wave-best-zizon/inventory-service/internal/domain"
	"github.com/shopspring/decimal"
)

type OrderSubmittedEvent struct {
	EventID     string              `json:"event_id"`
	OrderID     string              `json:"order_id"`
	Lines       []domain.OrderLine  `json:"lines"`
	TotalAmount decimal.Decimal     `json:"total_amount"`
	StockLevels []domain.StockLevel `json:"stock_levels"`
	LowStock    []string            `json:"low_stock,omitempty"`
	Timestamp   time.Time           `json:"timestamp"`
}
