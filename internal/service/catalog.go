package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/linemk/gomarket/internal/domain/models"
	"github.com/linemk/gomarket/internal/storage"
)

const (
	productCacheTTL     = time.Hour
	productCachePattern = "products:*"
)

// CatalogService определяет операции над каталогом товаров.
// Чтения идут через read-through кэш, любая запись сбрасывает его целиком.
type CatalogService interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	ListProducts(ctx context.Context, filter models.ProductFilter) ([]*models.Product, error)
	CreateProduct(ctx context.Context, p *models.Product) (*models.Product, error)
	UpdateProduct(ctx context.Context, p *models.Product) (*models.Product, error)
	AdjustStock(ctx context.Context, actor Actor, id uuid.UUID, delta int) (*models.Product, error)
	DeactivateProduct(ctx context.Context, id uuid.UUID) error
}

type catalogService struct {
	log         *slog.Logger
	productRepo storage.ProductStorage
	cache       Cache
	notifier    Notifier
}

func NewCatalogService(log *slog.Logger, productRepo storage.ProductStorage, cache Cache, notifier Notifier) CatalogService {
	return &catalogService{
		log:         log,
		productRepo: productRepo,
		cache:       cache,
		notifier:    notifier,
	}
}

// GetProduct возвращает активный товар; мягко удалённые неотличимы от несуществующих
func (s *catalogService) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	const op = "service.CatalogService.GetProduct"

	cacheKey := "products:" + id.String()
	cached := &models.Product{}
	if s.cache.Get(ctx, cacheKey, cached) {
		return cached, nil
	}

	product, err := s.productRepo.GetProductByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrProductNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		s.log.Error("failed to get product", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !product.IsActive {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	s.cache.Set(ctx, cacheKey, product, productCacheTTL)
	return product, nil
}

func (s *catalogService) ListProducts(ctx context.Context, filter models.ProductFilter) ([]*models.Product, error) {
	const op = "service.CatalogService.ListProducts"

	category := ""
	if filter.CategoryID != nil {
		category = filter.CategoryID.String()
	}
	cacheKey := fmt.Sprintf("products:list:%s:%s:%d:%d", category, filter.Search, filter.Page, filter.Limit)
	var cached []*models.Product
	if s.cache.Get(ctx, cacheKey, &cached) {
		return cached, nil
	}

	products, err := s.productRepo.ListProducts(ctx, filter)
	if err != nil {
		s.log.Error("failed to list products", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.cache.Set(ctx, cacheKey, products, productCacheTTL)
	return products, nil
}

func (s *catalogService) CreateProduct(ctx context.Context, p *models.Product) (*models.Product, error) {
	const op = "service.CatalogService.CreateProduct"

	product, err := s.productRepo.CreateProduct(ctx, p)
	if err != nil {
		s.log.Error("failed to create product", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.cache.DeletePattern(ctx, productCachePattern)
	return product, nil
}

func (s *catalogService) UpdateProduct(ctx context.Context, p *models.Product) (*models.Product, error) {
	const op = "service.CatalogService.UpdateProduct"

	if err := s.productRepo.UpdateProduct(ctx, p); err != nil {
		if errors.Is(err, storage.ErrProductNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		s.log.Error("failed to update product", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.cache.DeletePattern(ctx, productCachePattern)

	product, err := s.productRepo.GetProductByID(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return product, nil
}

// AdjustStock меняет остаток на delta через условный апдейт и рассылает
// событие администраторам. Отрицательная delta, уводящая остаток ниже
// нуля, отклоняется хранилищем.
func (s *catalogService) AdjustStock(ctx context.Context, actor Actor, id uuid.UUID, delta int) (*models.Product, error) {
	const op = "service.CatalogService.AdjustStock"
	logger := s.log.With(slog.String("op", op), slog.String("productID", id.String()), slog.Int("delta", delta))

	product, err := s.productRepo.AdjustStock(ctx, id, delta)
	if err != nil {
		if errors.Is(err, storage.ErrProductNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		if errors.Is(err, storage.ErrInsufficientStock) {
			// для сообщения об ошибке достаём актуальный остаток
			available := 0
			if current, getErr := s.productRepo.GetProductByID(ctx, id); getErr == nil {
				available = current.StockQuantity
				return nil, &InsufficientStockError{ProductID: id, ProductName: current.Name, Available: available}
			}
			return nil, &InsufficientStockError{ProductID: id, Available: available}
		}
		logger.Error("failed to adjust stock", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.cache.DeletePattern(ctx, productCachePattern)
	s.notifier.InventoryAdjusted(product, actor)
	logger.Info("stock adjusted", slog.Int("newStock", product.StockQuantity))
	return product, nil
}

func (s *catalogService) DeactivateProduct(ctx context.Context, id uuid.UUID) error {
	const op = "service.CatalogService.DeactivateProduct"

	if err := s.productRepo.DeactivateProduct(ctx, id); err != nil {
		if errors.Is(err, storage.ErrProductNotFound) {
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		s.log.Error("failed to deactivate product", slog.String("op", op), slog.Any("error", err))
		return fmt.Errorf("%s: %w", op, err)
	}

	s.cache.DeletePattern(ctx, productCachePattern)
	return nil
}
