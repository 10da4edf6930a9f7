package repository

import (
	"context"
	"fmt"

	"github.com/cloud-wave-best-zizon/inventory-service/internal/domain"
)

// CatalogStore persists items.
type CatalogStore interface {
	AddItem(ctx context.Context, item domain.Item) (domain.Item, error)
	ListItems(ctx context.Context) ([]domain.Item, error)
	GetItem(ctx context.Context, name string) (domain.Item, error)
	GetStockQuantity(ctx context.Context, name string) (int, error)
	DecrementStock(ctx context.Context, name string, quantity int) error
}

// OrderLedger persists submitted order lines.
type OrderLedger interface {
	RecordOrder(ctx context.Context, orderID string, lines []domain.OrderLine) error
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
}

// Store is a catalog and ledger sharing one backend, so an order can be
// committed atomically.
type Store interface {
	CatalogStore
	OrderLedger

	// CommitOrder records lines under orderID and decrements each item in
	// quantities, all in one transaction. It returns the post-commit stock of
	// every decremented item. On any error nothing is applied.
	CommitOrder(ctx context.Context, orderID string, lines []domain.OrderLine, quantities map[string]int) ([]domain.StockLevel, error)

	Driver() string
	Close() error
}

func validateDecrement(name string, quantity int) error {
	if name == "" {
		return domain.NewValidationError("item_name", "must not be empty")
	}
	if quantity <= 0 {
		return domain.NewValidationError("quantity", "must be positive")
	}
	return nil
}

func validateLines(orderID string, lines []domain.OrderLine) error {
	if orderID == "" {
		return domain.NewValidationError("order_id", "must not be empty")
	}
	if len(lines) == 0 {
		return domain.NewValidationError("lines", "order has no lines")
	}
	for _, l := range lines {
		if err := validateDecrement(l.ItemName, l.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func itemNotFound(name string) error {
	return fmt.Errorf("%w: %q", domain.ErrNotFound, name)
}
