package service

import (
	"context"
	"strings"

	"github.com/cloud-wave-best-zizon/inventory-service/internal/domain"
	"github.com/cloud-wave-best-zizon/inventory-service/internal/repository"
	"go.uber.org/zap"
)

type CatalogService struct {
	catalog repository.CatalogStore
	logger  *zap.Logger
}

func NewCatalogService(catalog repository.CatalogStore, logger *zap.Logger) *CatalogService {
	return &CatalogService{
		catalog: catalog,
		logger:  logger,
	}
}

func (s *CatalogService) AddItem(ctx context.Context, req domain.AddItemRequest) (domain.Item, error) {
	item, err := s.catalog.AddItem(ctx, domain.Item{
		Name:          strings.TrimSpace(req.Name),
		Price:         req.Price,
		StockQuantity: req.StockQuantity,
	})
	if err != nil {
		s.logger.Warn("Failed to add item",
			zap.String("name", req.Name),
			zap.Error(err))
		return domain.Item{}, err
	}

	s.logger.Info("Item added",
		zap.String("item_id", item.ID),
		zap.String("name", item.Name),
		zap.String("price", item.Price.String()),
		zap.Int("stock_quantity", item.StockQuantity))
	return item, nil
}

func (s *CatalogService) ListItems(ctx context.Context) ([]domain.Item, error) {
	return s.catalog.ListItems(ctx)
}

func (s *CatalogService) GetItem(ctx context.Context, name string) (domain.Item, error) {
	return s.catalog.GetItem(ctx, strings.TrimSpace(name))
}

func (s *CatalogService) GetStockQuantity(ctx context.Context, name string) (int, error) {
	return s.catalog.GetStockQuantity(ctx, strings.TrimSpace(name))
}
