package repository

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/cloud-wave-best-zizon/inventory-service/internal/domain"
)

// MemoryStore keeps the catalog and ledger in process. A single mutex guards
// both, which makes CommitOrder atomic.
type MemoryStore struct {
	mu      sync.Mutex
	nextID  int64
	items   []*domain.Item
	byName  map[string]*domain.Item
	orders  map[string]*domain.Order
	nowFunc func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byName:  make(map[string]*domain.Item),
		orders:  make(map[string]*domain.Order),
		nowFunc: time.Now,
	}
}

func (s *MemoryStore) Driver() string { return "memory" }

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) AddItem(ctx context.Context, item domain.Item) (domain.Item, error) {
	if err := item.Validate(); err != nil {
		return domain.Item{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byName[item.Name]; ok {
		return domain.Item{}, domain.NewValidationError("name", "item "+strconv.Quote(item.Name)+" already exists")
	}

	s.nextID++
	item.ID = strconv.FormatInt(s.nextID, 10)
	item.CreatedAt = s.nowFunc().UTC()

	stored := item
	s.items = append(s.items, &stored)
	s.byName[item.Name] = &stored
	return item, nil
}

func (s *MemoryStore) ListItems(ctx context.Context) ([]domain.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]domain.Item, 0, len(s.items))
	for _, it := range s.items {
		items = append(items, *it)
	}
	return items, nil
}

func (s *MemoryStore) GetItem(ctx context.Context, name string) (domain.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.byName[name]
	if !ok {
		return domain.Item{}, itemNotFound(name)
	}
	return *it, nil
}

func (s *MemoryStore) GetStockQuantity(ctx context.Context, name string) (int, error) {
	it, err := s.GetItem(ctx, name)
	if err != nil {
		return 0, err
	}
	return it.StockQuantity, nil
}

func (s *MemoryStore) DecrementStock(ctx context.Context, name string, quantity int) error {
	if err := validateDecrement(name, quantity); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkStockLocked(map[string]int{name: quantity}); err != nil {
		return err
	}
	s.byName[name].StockQuantity -= quantity
	return nil
}

func (s *MemoryStore) RecordOrder(ctx context.Context, orderID string, lines []domain.OrderLine) error {
	if err := validateLines(orderID, lines); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[orderID]; ok {
		return nil
	}
	s.recordLocked(orderID, lines)
	return nil
}

func (s *MemoryStore) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrOrderNotFound, orderID)
	}
	out := *o
	out.Lines = append([]domain.OrderLine(nil), o.Lines...)
	return &out, nil
}

func (s *MemoryStore) CommitOrder(ctx context.Context, orderID string, lines []domain.OrderLine, quantities map[string]int) ([]domain.StockLevel, error) {
	if err := validateLines(orderID, lines); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[orderID]; ok {
		return nil, domain.ErrOrderExists
	}
	if err := s.checkStockLocked(quantities); err != nil {
		return nil, err
	}

	s.recordLocked(orderID, lines)

	levels := make([]domain.StockLevel, 0, len(quantities))
	for _, name := range domain.SortedNames(quantities) {
		it := s.byName[name]
		it.StockQuantity -= quantities[name]
		levels = append(levels, domain.StockLevel{ItemName: name, StockQuantity: it.StockQuantity})
	}
	return levels, nil
}

func (s *MemoryStore) checkStockLocked(quantities map[string]int) error {
	var shortages []domain.Shortage
	for _, name := range domain.SortedNames(quantities) {
		it, ok := s.byName[name]
		if !ok {
			return itemNotFound(name)
		}
		if it.StockQuantity < quantities[name] {
			shortages = append(shortages, domain.Shortage{
				ItemName:  name,
				Requested: quantities[name],
				Available: it.StockQuantity,
			})
		}
	}
	if len(shortages) > 0 {
		return &domain.InsufficientStockError{Shortages: shortages}
	}
	return nil
}

func (s *MemoryStore) recordLocked(orderID string, lines []domain.OrderLine) {
	s.orders[orderID] = &domain.Order{
		OrderID:     orderID,
		Lines:       append([]domain.OrderLine(nil), lines...),
		TotalAmount: domain.TotalOf(lines),
		CreatedAt:   s.nowFunc().UTC(),
	}
}
