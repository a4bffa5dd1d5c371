package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/linemk/gomarket/internal/domain/models"
	"github.com/linemk/gomarket/internal/storage"
	"github.com/shopspring/decimal"
)

// CheckoutInput — параметры оформления заказа
type CheckoutInput struct {
	ShippingAddress models.ShippingAddress
	PaymentMethod   string
	Notes           string
}

// OrderService — движок заказов: конвертация корзины в заказ
// и машина статусов поверх неё.
type OrderService interface {
	Checkout(ctx context.Context, actor Actor, input CheckoutInput) (*models.Order, error)
	GetOrder(ctx context.Context, actor Actor, id uuid.UUID) (*models.Order, error)
	ListOrders(ctx context.Context, actor Actor) ([]*models.Order, error)
	UpdateStatus(ctx context.Context, actor Actor, orderID uuid.UUID, status models.OrderStatus, notes string) (*models.Order, error)
	Cancel(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error)
	GetStatusHistory(ctx context.Context, actor Actor, orderID uuid.UUID) ([]*models.OrderStatusHistory, error)
}

type orderService struct {
	log         *slog.Logger
	db          *sql.DB
	cartRepo    storage.CartStorage
	productRepo storage.ProductStorage
	orderRepo   storage.OrderStorage
	userRepo    storage.UserStorage
	notifier    Notifier
	mailer      Mailer
	cache       Cache
}

func NewOrderService(log *slog.Logger, db *sql.DB, cartRepo storage.CartStorage, productRepo storage.ProductStorage,
	orderRepo storage.OrderStorage, userRepo storage.UserStorage, notifier Notifier, mailer Mailer, cache Cache) OrderService {
	return &orderService{
		log:         log,
		db:          db,
		cartRepo:    cartRepo,
		productRepo: productRepo,
		orderRepo:   orderRepo,
		userRepo:    userRepo,
		notifier:    notifier,
		mailer:      mailer,
		cache:       cache,
	}
}

// Checkout атомарно превращает корзину в заказ: снимок цен, условное
// списание остатков, позиции заказа, запись истории и очистка корзины
// коммитятся вместе или не коммитятся вовсе. Конкурирующее оформление
// того же товара проигрывает на условном списании и откатывается целиком.
func (s *orderService) Checkout(ctx context.Context, actor Actor, input CheckoutInput) (*models.Order, error) {
	const op = "service.OrderService.Checkout"
	logger := s.log.With(slog.String("op", op), slog.String("userID", actor.ID.String()))
	logger.Info("starting checkout transaction")

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	lines, err := s.cartRepo.ListLinesTx(ctx, tx, actor.ID)
	if err != nil {
		s.rollback(tx, logger)
		logger.Error("failed to read cart", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to read cart: %w", op, err)
	}
	if len(lines) == 0 {
		s.rollback(tx, logger)
		return nil, fmt.Errorf("%s: %w", op, ErrEmptyCart)
	}

	// валидация по снимку из шага чтения; решающая проверка — условное списание ниже
	total := decimal.Zero
	for _, line := range lines {
		if !line.ActiveFlag {
			s.rollback(tx, logger)
			logger.Warn("product no longer available", slog.String("productID", line.ProductID.String()))
			return nil, fmt.Errorf("%s: product %q is no longer available: %w", op, line.ProductName, ErrNotFound)
		}
		if line.Stock < line.Quantity {
			s.rollback(tx, logger)
			logger.Warn("insufficient stock", slog.String("product", line.ProductName), slog.Int("available", line.Stock))
			return nil, &InsufficientStockError{ProductID: line.ProductID, ProductName: line.ProductName, Available: line.Stock}
		}
		total = total.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}

	paymentMethod := input.PaymentMethod
	if paymentMethod == "" {
		paymentMethod = models.PaymentCashOnDelivery
	}

	order := &models.Order{
		UserID:          actor.ID,
		TotalAmount:     total,
		Status:          models.StatusPending,
		ShippingAddress: input.ShippingAddress,
		PaymentMethod:   paymentMethod,
		PaymentStatus:   models.PaymentStatusPending,
		Notes:           input.Notes,
	}
	order, err = s.orderRepo.CreateOrderTx(ctx, tx, order)
	if err != nil {
		s.rollback(tx, logger)
		logger.Error("failed to create order", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to create order: %w", op, err)
	}

	for _, line := range lines {
		item := &models.OrderItem{
			OrderID:     order.ID,
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			TotalPrice:  line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))),
		}
		if err := s.orderRepo.CreateOrderItemTx(ctx, tx, item); err != nil {
			s.rollback(tx, logger)
			logger.Error("failed to create order item", slog.Any("error", err))
			return nil, fmt.Errorf("%s: failed to create order item: %w", op, err)
		}
		order.Items = append(order.Items, item)

		// условное списание — единственная защита от перепродажи;
		// промах означает, что параллельное оформление забрало остаток
		if err := s.productRepo.DecrementStockTx(ctx, tx, line.ProductID, line.Quantity); err != nil {
			if errors.Is(err, storage.ErrInsufficientStock) {
				available, stockErr := s.productRepo.GetStockTx(ctx, tx, line.ProductID)
				if stockErr != nil {
					available = 0
				}
				s.rollback(tx, logger)
				logger.Warn("lost stock race", slog.String("product", line.ProductName), slog.Int("available", available))
				return nil, &InsufficientStockError{ProductID: line.ProductID, ProductName: line.ProductName, Available: available}
			}
			s.rollback(tx, logger)
			logger.Error("failed to decrement stock", slog.Any("error", err))
			return nil, fmt.Errorf("%s: failed to decrement stock: %w", op, err)
		}
	}

	history := &models.OrderStatusHistory{
		OrderID:   order.ID,
		Status:    models.StatusPending,
		CreatedBy: actor.ID,
	}
	if err := s.orderRepo.AppendStatusHistoryTx(ctx, tx, history); err != nil {
		s.rollback(tx, logger)
		logger.Error("failed to append status history", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to append status history: %w", op, err)
	}

	if err := s.cartRepo.ClearTx(ctx, tx, actor.ID); err != nil {
		s.rollback(tx, logger)
		logger.Error("failed to clear cart", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to clear cart: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	// побочные эффекты после коммита: best-effort, заказ они уже не откатят
	s.cache.DeletePattern(ctx, productCachePattern)
	s.notifier.OrderPlaced(order, actor.Email)
	s.notifier.CartChanged(actor.ID, 0)
	s.mailer.SendOrderConfirmation(actor.Email, order)

	logger.Info("checkout completed", slog.String("orderID", order.ID.String()), slog.String("total", total.StringFixed(2)))
	return order, nil
}

// GetOrder возвращает заказ с позициями; не-администратор видит только свои
func (s *orderService) GetOrder(ctx context.Context, actor Actor, id uuid.UUID) (*models.Order, error) {
	const op = "service.OrderService.GetOrder"

	order, err := s.orderRepo.GetOrderByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrOrderNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		s.log.Error("failed to get order", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	// чужой заказ неотличим от несуществующего
	if order.UserID != actor.ID && !actor.IsAdmin() {
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	items, err := s.orderRepo.GetOrderItems(ctx, id)
	if err != nil {
		s.log.Error("failed to get order items", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	order.Items = items
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, actor Actor) ([]*models.Order, error) {
	const op = "service.OrderService.ListOrders"

	var orders []*models.Order
	var err error
	if actor.IsAdmin() {
		orders, err = s.orderRepo.ListAllOrders(ctx)
	} else {
		orders, err = s.orderRepo.ListOrdersByUserID(ctx, actor.ID)
	}
	if err != nil {
		s.log.Error("failed to list orders", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return orders, nil
}

// UpdateStatus выполняет переход по машине статусов (только администратор).
// Переход и запись истории коммитятся одной транзакцией; недопустимый
// переход, включая переход в тот же статус, отклоняется без записи истории.
func (s *orderService) UpdateStatus(ctx context.Context, actor Actor, orderID uuid.UUID, status models.OrderStatus, notes string) (*models.Order, error) {
	const op = "service.OrderService.UpdateStatus"
	logger := s.log.With(slog.String("op", op), slog.String("orderID", orderID.String()), slog.String("status", string(status)))

	if !actor.IsAdmin() {
		return nil, fmt.Errorf("%s: %w", op, ErrForbidden)
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%s: unknown status %q: %w", op, status, ErrInvalidTransition)
	}

	order, err := s.transition(ctx, logger, op, orderID, actor, status, notes, nil)
	if err != nil {
		return nil, err
	}

	s.notifyStatusChange(ctx, order, actor, notes)
	return order, nil
}

// Cancel — самоотмена заказа владельцем, разрешена только из pending
func (s *orderService) Cancel(ctx context.Context, actor Actor, orderID uuid.UUID) (*models.Order, error) {
	const op = "service.OrderService.Cancel"
	logger := s.log.With(slog.String("op", op), slog.String("orderID", orderID.String()))

	guard := func(order *models.Order) error {
		if order.UserID != actor.ID {
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		if order.Status != models.StatusPending {
			return fmt.Errorf("%s: only pending orders can be cancelled: %w", op, ErrInvalidTransition)
		}
		return nil
	}

	order, err := s.transition(ctx, logger, op, orderID, actor, models.StatusCancelled, "", guard)
	if err != nil {
		return nil, err
	}

	s.notifyStatusChange(ctx, order, actor, "")
	return order, nil
}

func (s *orderService) GetStatusHistory(ctx context.Context, actor Actor, orderID uuid.UUID) ([]*models.OrderStatusHistory, error) {
	const op = "service.OrderService.GetStatusHistory"

	// проверка видимости заказа тем же правилом, что и GetOrder
	if _, err := s.GetOrder(ctx, actor, orderID); err != nil {
		return nil, err
	}
	history, err := s.orderRepo.GetStatusHistory(ctx, orderID)
	if err != nil {
		s.log.Error("failed to get status history", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return history, nil
}

// transition — общая транзакционная хореография смены статуса:
// блокировка строки заказа, проверка графа, апдейт и история одним коммитом.
// Отмена заказа остаток не возвращает.
func (s *orderService) transition(ctx context.Context, logger *slog.Logger, op string, orderID uuid.UUID,
	actor Actor, status models.OrderStatus, notes string, guard func(*models.Order) error) (*models.Order, error) {

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	order, err := s.orderRepo.LockOrderByIDTx(ctx, tx, orderID)
	if err != nil {
		s.rollback(tx, logger)
		if errors.Is(err, storage.ErrOrderNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		logger.Error("failed to lock order", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to lock order: %w", op, err)
	}

	if guard != nil {
		if err := guard(order); err != nil {
			s.rollback(tx, logger)
			return nil, err
		}
	}

	if !order.Status.CanTransitionTo(status) {
		s.rollback(tx, logger)
		logger.Warn("invalid transition", slog.String("from", string(order.Status)))
		return nil, fmt.Errorf("%s: cannot transition from %s to %s: %w", op, order.Status, status, ErrInvalidTransition)
	}

	if err := s.orderRepo.UpdateOrderStatusTx(ctx, tx, orderID, status); err != nil {
		s.rollback(tx, logger)
		logger.Error("failed to update order status", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to update order status: %w", op, err)
	}

	history := &models.OrderStatusHistory{
		OrderID:   orderID,
		Status:    status,
		Notes:     notes,
		CreatedBy: actor.ID,
	}
	if err := s.orderRepo.AppendStatusHistoryTx(ctx, tx, history); err != nil {
		s.rollback(tx, logger)
		logger.Error("failed to append status history", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to append status history: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	order.Status = status
	logger.Info("order status updated")
	return order, nil
}

// notifyStatusChange рассылает событие владельцу и администраторам
// и ставит письмо в очередь; всё после уже состоявшегося коммита
func (s *orderService) notifyStatusChange(ctx context.Context, order *models.Order, actor Actor, notes string) {
	s.notifier.OrderStatusChanged(order, actor, notes)

	owner, err := s.userRepo.GetUserByID(ctx, order.UserID)
	if err != nil {
		s.log.Warn("failed to resolve order owner for email", slog.Any("error", err))
		return
	}
	s.mailer.SendStatusUpdate(owner.Email, order)
}

func (s *orderService) rollback(tx *sql.Tx, logger *slog.Logger) {
	if rbErr := tx.Rollback(); rbErr != nil {
		logger.Error("transaction rollback failed", slog.Any("error", rbErr))
	}
}
