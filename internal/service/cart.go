package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/linemk/gomarket/internal/domain/models"
	"github.com/linemk/gomarket/internal/storage"
	"github.com/shopspring/decimal"
)

// CartService определяет операции над корзиной пользователя.
// Проверки остатка здесь рекомендательные: остаток резервируется
// только условным списанием при оформлении заказа.
type CartService interface {
	List(ctx context.Context, userID uuid.UUID) ([]*models.CartLine, *models.CartSummary, error)
	AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*models.CartItem, error)
	UpdateItem(ctx context.Context, userID, itemID uuid.UUID, quantity int) error
	RemoveItem(ctx context.Context, userID, itemID uuid.UUID) error
	Clear(ctx context.Context, userID uuid.UUID) error
	Count(ctx context.Context, userID uuid.UUID) (int, error)
}

type cartService struct {
	log         *slog.Logger
	cartRepo    storage.CartStorage
	productRepo storage.ProductStorage
	notifier    Notifier
}

func NewCartService(log *slog.Logger, cartRepo storage.CartStorage, productRepo storage.ProductStorage, notifier Notifier) CartService {
	return &cartService{
		log:         log,
		cartRepo:    cartRepo,
		productRepo: productRepo,
		notifier:    notifier,
	}
}

func (s *cartService) List(ctx context.Context, userID uuid.UUID) ([]*models.CartLine, *models.CartSummary, error) {
	const op = "service.CartService.List"

	lines, err := s.cartRepo.ListLines(ctx, userID)
	if err != nil {
		s.log.Error("failed to list cart", slog.String("op", op), slog.Any("error", err))
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	summary := &models.CartSummary{Subtotal: decimal.Zero, Currency: "USD"}
	// мягко удалённые товары в выдачу и итоги не попадают
	active := lines[:0]
	for _, line := range lines {
		if !line.ActiveFlag {
			continue
		}
		active = append(active, line)
		summary.TotalItems += line.Quantity
		summary.Subtotal = summary.Subtotal.Add(line.LineSubtotal)
	}
	return active, summary, nil
}

// AddItem добавляет товар в корзину. Если позиция уже есть, количество
// складывается, а проверка остатка выполняется против суммарного количества,
// чтобы добавление не перезаписало уже лежащее в корзине.
func (s *cartService) AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*models.CartItem, error) {
	const op = "service.CartService.AddItem"
	logger := s.log.With(slog.String("op", op), slog.String("userID", userID.String()), slog.String("productID", productID.String()))

	product, err := s.productRepo.GetProductByID(ctx, productID)
	if err != nil {
		if errors.Is(err, storage.ErrProductNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		logger.Error("failed to get product", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get product: %w", op, err)
	}
	if !product.IsActive {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	requestedTotal := quantity
	existing, err := s.cartRepo.GetItemByUserAndProduct(ctx, userID, productID)
	if err != nil && !errors.Is(err, storage.ErrCartItemNotFound) {
		logger.Error("failed to get cart item", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get cart item: %w", op, err)
	}
	if existing != nil {
		requestedTotal += existing.Quantity
	}

	if product.StockQuantity < requestedTotal {
		logger.Warn("insufficient stock", slog.Int("available", product.StockQuantity), slog.Int("requested", requestedTotal))
		return nil, &InsufficientStockError{ProductID: product.ID, ProductName: product.Name, Available: product.StockQuantity}
	}

	var item *models.CartItem
	if existing != nil {
		if err := s.cartRepo.UpdateItemQuantity(ctx, userID, existing.ID, requestedTotal); err != nil {
			logger.Error("failed to update cart item", slog.Any("error", err))
			return nil, fmt.Errorf("%s: failed to update cart item: %w", op, err)
		}
		existing.Quantity = requestedTotal
		item = existing
	} else {
		item, err = s.cartRepo.InsertItem(ctx, &models.CartItem{
			UserID:    userID,
			ProductID: productID,
			Quantity:  quantity,
		})
		if err != nil {
			logger.Error("failed to insert cart item", slog.Any("error", err))
			return nil, fmt.Errorf("%s: failed to insert cart item: %w", op, err)
		}
	}

	s.publishCartChanged(ctx, userID)
	return item, nil
}

func (s *cartService) UpdateItem(ctx context.Context, userID, itemID uuid.UUID, quantity int) error {
	const op = "service.CartService.UpdateItem"
	logger := s.log.With(slog.String("op", op), slog.String("userID", userID.String()), slog.String("itemID", itemID.String()))

	line, err := s.cartRepo.GetLineByID(ctx, userID, itemID)
	if err != nil {
		if errors.Is(err, storage.ErrCartItemNotFound) {
			// чужая или несуществующая позиция — единый ответ, чтобы не раскрывать существование
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		logger.Error("failed to get cart line", slog.Any("error", err))
		return fmt.Errorf("%s: failed to get cart line: %w", op, err)
	}

	if line.Stock < quantity {
		logger.Warn("insufficient stock", slog.Int("available", line.Stock), slog.Int("requested", quantity))
		return &InsufficientStockError{ProductID: line.ProductID, ProductName: line.ProductName, Available: line.Stock}
	}

	if err := s.cartRepo.UpdateItemQuantity(ctx, userID, itemID, quantity); err != nil {
		if errors.Is(err, storage.ErrCartItemNotFound) {
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		logger.Error("failed to update cart item", slog.Any("error", err))
		return fmt.Errorf("%s: failed to update cart item: %w", op, err)
	}

	s.publishCartChanged(ctx, userID)
	return nil
}

func (s *cartService) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) error {
	const op = "service.CartService.RemoveItem"

	if err := s.cartRepo.DeleteItem(ctx, userID, itemID); err != nil {
		if errors.Is(err, storage.ErrCartItemNotFound) {
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		s.log.Error("failed to delete cart item", slog.String("op", op), slog.Any("error", err))
		return fmt.Errorf("%s: failed to delete cart item: %w", op, err)
	}

	s.publishCartChanged(ctx, userID)
	return nil
}

func (s *cartService) Clear(ctx context.Context, userID uuid.UUID) error {
	const op = "service.CartService.Clear"

	if err := s.cartRepo.Clear(ctx, userID); err != nil {
		s.log.Error("failed to clear cart", slog.String("op", op), slog.Any("error", err))
		return fmt.Errorf("%s: failed to clear cart: %w", op, err)
	}

	s.publishCartChanged(ctx, userID)
	return nil
}

func (s *cartService) Count(ctx context.Context, userID uuid.UUID) (int, error) {
	const op = "service.CartService.Count"

	count, err := s.cartRepo.CountItems(ctx, userID)
	if err != nil {
		s.log.Error("failed to count cart items", slog.String("op", op), slog.Any("error", err))
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return count, nil
}

// publishCartChanged рассылает событие синхронизации корзины на другие
// подключения того же пользователя; ошибка подсчёта только логируется
func (s *cartService) publishCartChanged(ctx context.Context, userID uuid.UUID) {
	count, err := s.cartRepo.CountItems(ctx, userID)
	if err != nil {
		s.log.Warn("failed to count cart items for notification", slog.Any("error", err))
		return
	}
	s.notifier.CartChanged(userID, count)
}
