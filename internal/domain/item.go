package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Item is a catalog entry. Only StockQuantity changes after creation.
type Item struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity"`
	CreatedAt     time.Time       `json:"created_at"`
}

type AddItemRequest struct {
	Name          string          `json:"name" binding:"required"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity"`
}

// Validate checks the constraints every store enforces on insert.
func (i Item) Validate() error {
	if strings.TrimSpace(i.Name) == "" {
		return NewValidationError("name", "must not be empty")
	}
	if !i.Price.IsPositive() {
		return NewValidationError("price", "must be greater than zero")
	}
	if i.StockQuantity < 0 {
		return NewValidationError("stock_quantity", "must not be negative")
	}
	return nil
}

// StockLevel is the stock of one item after a commit.
type StockLevel struct {
	ItemName      string `json:"item_name"`
	StockQuantity int    `json:"stock_quantity"`
}
