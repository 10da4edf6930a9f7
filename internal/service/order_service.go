package service

import (
	"context"
	"strings"
	"time"

	"github.com/cloud-wave-best-zizon/inventory-service/internal/domain"
	"github.com/cloud-wave-best-zizon/inventory-service/internal/events"
	"github.com/cloud-wave-best-zizon/inventory-service/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OrderService runs the order workflow. It holds no per-order state: every
// operation takes the caller's OrderBuild and returns the next one.
type OrderService struct {
	store     repository.Store
	alerts    *AlertDispatcher
	producer  events.Publisher
	ids       *OrderIDGenerator
	signer    *BuildSigner
	threshold int
	logger    *zap.Logger
}

func NewOrderService(store repository.Store, alerts *AlertDispatcher, producer events.Publisher, signer *BuildSigner, threshold int, logger *zap.Logger) *OrderService {
	if producer == nil {
		producer = events.NopPublisher{}
	}
	return &OrderService{
		store:     store,
		alerts:    alerts,
		producer:  producer,
		ids:       NewOrderIDGenerator(),
		signer:    signer,
		threshold: threshold,
		logger:    logger,
	}
}

// NewOrder starts an empty build.
func (s *OrderService) NewOrder() domain.OrderBuild {
	return domain.NewOrderBuild()
}

// AddLine appends itemName x quantity at the item's current price and
// returns the new, signed build with its running total. On any error the
// input build is returned unchanged.
func (s *OrderService) AddLine(ctx context.Context, build domain.OrderBuild, itemName string, quantity int) (domain.OrderBuild, decimal.Decimal, error) {
	build = normalize(build)
	if err := s.signer.Verify(build); err != nil {
		s.logger.Warn("Rejected tampered order build", zap.Error(err))
		return build, build.Total(), err
	}
	if build.State != domain.BuildStateBuilding {
		return build, build.Total(), domain.NewValidationError("state", "order already submitted, start a new order")
	}
	if quantity <= 0 {
		return build, build.Total(), domain.NewValidationError("quantity", "must be positive")
	}

	name := strings.TrimSpace(itemName)
	item, err := s.store.GetItem(ctx, name)
	if err != nil {
		return build, build.Total(), err
	}

	if quantity > item.StockQuantity {
		s.logger.Info("Order line exceeds available stock",
			zap.String("item_name", name),
			zap.Int("requested", quantity),
			zap.Int("available", item.StockQuantity))
		return build, build.Total(), &domain.InsufficientStockError{Shortages: []domain.Shortage{{
			ItemName:  name,
			Requested: quantity,
			Available: item.StockQuantity,
		}}}
	}

	next := s.signer.Sign(build.WithLine(domain.OrderLine{
		ItemName: item.Name,
		Quantity: quantity,
		Price:    item.Price,
	}))
	return next, next.Total(), nil
}

// Submit validates build against current stock and commits it atomically.
// It returns the completed build and the new order id. Low-stock alerts and
// the order event are best-effort and never fail the submission.
func (s *OrderService) Submit(ctx context.Context, build domain.OrderBuild) (domain.OrderBuild, string, error) {
	build = normalize(build)
	if build.State == domain.BuildStateCompleted {
		return build, "", domain.NewValidationError("state", "order already submitted, start a new order")
	}
	if len(build.Lines) == 0 {
		return build, "", domain.NewValidationError("lines", "order has no lines")
	}
	if err := s.signer.Verify(build); err != nil {
		s.logger.Warn("Rejected tampered order build", zap.Error(err))
		return build, "", err
	}
	for _, line := range build.Lines {
		if line.Quantity <= 0 {
			return build, "", domain.NewValidationError("quantity", "must be positive")
		}
		if !line.Price.IsPositive() {
			return build, "", domain.NewValidationError("price", "must be greater than zero")
		}
	}

	quantities := build.Quantities()

	s.logger.Debug("Validating order", zap.Int("lines", len(build.Lines)), zap.String("state", string(domain.BuildStateValidating)))
	if err := s.checkStock(ctx, quantities); err != nil {
		return build, "", err
	}

	orderID := s.ids.Next()
	s.logger.Debug("Committing order", zap.String("order_id", orderID), zap.String("state", string(domain.BuildStateCommitting)))

	levels, err := s.store.CommitOrder(ctx, orderID, build.Lines, quantities)
	if err != nil {
		s.logger.Error("Failed to commit order",
			zap.String("order_id", orderID),
			zap.Error(err))
		return build, "", err
	}

	lowStock := s.lowStock(levels)
	if s.alerts != nil {
		s.alerts.Dispatch(orderID, lowStock)
	}

	total := build.Total()
	event := events.OrderSubmittedEvent{
		EventID:     uuid.New().String(),
		OrderID:     orderID,
		Lines:       build.Lines,
		TotalAmount: total,
		StockLevels: levels,
		LowStock:    lowStock,
		Timestamp:   time.Now().UTC(),
	}
	if err := s.producer.PublishOrderSubmitted(ctx, event); err != nil {
		// Stock and ledger are already committed.
		s.logger.Error("Failed to publish event",
			zap.String("order_id", orderID),
			zap.Error(err))
	}

	s.logger.Info("Order submitted successfully",
		zap.String("order_id", orderID),
		zap.Int("lines", len(build.Lines)),
		zap.String("total_amount", total.String()),
		zap.Strings("low_stock", lowStock))

	completed := s.signer.Sign(domain.OrderBuild{
		State:   domain.BuildStateCompleted,
		Lines:   append([]domain.OrderLine(nil), build.Lines...),
		OrderID: orderID,
	})
	return completed, orderID, nil
}

// Summary returns the build's total and every line whose quantity exceeds
// the item's current stock. Nothing is committed.
func (s *OrderService) Summary(ctx context.Context, build domain.OrderBuild) (decimal.Decimal, []domain.Shortage, error) {
	build = normalize(build)
	if err := s.signer.Verify(build); err != nil {
		return decimal.Zero, nil, err
	}

	warnings := []domain.Shortage{}
	for _, line := range build.Lines {
		available, err := s.store.GetStockQuantity(ctx, line.ItemName)
		if err != nil {
			return decimal.Zero, nil, err
		}
		if line.Quantity > available {
			warnings = append(warnings, domain.Shortage{
				ItemName:  line.ItemName,
				Requested: line.Quantity,
				Available: available,
			})
		}
	}
	return build.Total(), warnings, nil
}

func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.store.GetOrder(ctx, orderID)
}

// Close waits for in-flight alerts.
func (s *OrderService) Close() {
	if s.alerts != nil {
		s.alerts.Wait()
	}
}

// checkStock re-reads current stock for every item and reports all
// shortages at once.
func (s *OrderService) checkStock(ctx context.Context, quantities map[string]int) error {
	var shortages []domain.Shortage
	for _, name := range domain.SortedNames(quantities) {
		available, err := s.store.GetStockQuantity(ctx, name)
		if err != nil {
			return err
		}
		if available < quantities[name] {
			shortages = append(shortages, domain.Shortage{
				ItemName:  name,
				Requested: quantities[name],
				Available: available,
			})
		}
	}
	if len(shortages) > 0 {
		err := &domain.InsufficientStockError{Shortages: shortages}
		s.logger.Info("Order rejected", zap.Strings("items", err.ItemNames()))
		return err
	}
	return nil
}

func (s *OrderService) lowStock(levels []domain.StockLevel) []string {
	var names []string
	for _, l := range levels {
		if l.StockQuantity < s.threshold {
			names = append(names, l.ItemName)
		}
	}
	return names
}

// normalize treats a zero-value build, as decoded from an empty request,
// as a fresh one.
func normalize(build domain.OrderBuild) domain.OrderBuild {
	if build.State == "" {
		build.State = domain.BuildStateBuilding
	}
	if build.Lines == nil {
		build.Lines = []domain.OrderLine{}
	}
	return build
}
