package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/linemk/gomarket/internal/domain/models"
)

var ErrOrderNotFound = errors.New("order not found")

// OrderStorage описывает методы для работы с заказами, их позициями
// и историей статусов. Все мутации выполняются в рамках переданной транзакции.
type OrderStorage interface {
	CreateOrderTx(ctx context.Context, tx *sql.Tx, order *models.Order) (*models.Order, error)
	CreateOrderItemTx(ctx context.Context, tx *sql.Tx, item *models.OrderItem) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetOrderItems(ctx context.Context, orderID uuid.UUID) ([]*models.OrderItem, error)
	ListOrdersByUserID(ctx context.Context, userID uuid.UUID) ([]*models.Order, error)
	ListAllOrders(ctx context.Context) ([]*models.Order, error)
	// LockOrderByIDTx читает заказ под блокировкой строки, чтобы конкурентные
	// смены статуса выстраивались друг за другом
	LockOrderByIDTx(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*models.Order, error)
	UpdateOrderStatusTx(ctx context.Context, tx *sql.Tx, id uuid.UUID, status models.OrderStatus) error
	AppendStatusHistoryTx(ctx context.Context, tx *sql.Tx, h *models.OrderStatusHistory) error
	GetStatusHistory(ctx context.Context, orderID uuid.UUID) ([]*models.OrderStatusHistory, error)
}

type orderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) OrderStorage {
	return &orderRepository{db: db}
}

const orderColumns = `id, user_id, total_amount, status, shipping_address, payment_method, payment_status, COALESCE(notes, ''), created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (*models.Order, error) {
	o := &models.Order{}
	var addr []byte
	if err := row.Scan(&o.ID, &o.UserID, &o.TotalAmount, &o.Status, &addr, &o.PaymentMethod, &o.PaymentStatus, &o.Notes, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	if len(addr) > 0 {
		if err := json.Unmarshal(addr, &o.ShippingAddress); err != nil {
			return nil, fmt.Errorf("failed to unmarshal shipping address: %w", err)
		}
	}
	return o, nil
}

func (r *orderRepository) CreateOrderTx(ctx context.Context, tx *sql.Tx, order *models.Order) (*models.Order, error) {
	addr, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal shipping address: %w", err)
	}
	query := `INSERT INTO orders (user_id, total_amount, status, shipping_address, payment_method, payment_status, notes)
	          VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''))
	          RETURNING id, created_at, updated_at`
	err = tx.QueryRowContext(ctx, query,
		order.UserID, order.TotalAmount, order.Status, addr, order.PaymentMethod, order.PaymentStatus, order.Notes,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	return order, nil
}

func (r *orderRepository) CreateOrderItemTx(ctx context.Context, tx *sql.Tx, item *models.OrderItem) error {
	query := `INSERT INTO order_items (order_id, product_id, quantity, unit_price, total_price)
	          VALUES ($1, $2, $3, $4, $5) RETURNING id`
	err := tx.QueryRowContext(ctx, query,
		item.OrderID, item.ProductID, item.Quantity, item.UnitPrice, item.TotalPrice,
	).Scan(&item.ID)
	if err != nil {
		return fmt.Errorf("failed to create order item: %w", err)
	}
	return nil
}

func (r *orderRepository) GetOrderByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	query := fmt.Sprintf("SELECT %s FROM orders WHERE id = $1", orderColumns)
	o, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return o, nil
}

// GetOrderItems возвращает позиции заказа с именем товара через JOIN;
// цена берётся из снимка в позиции, не из каталога
func (r *orderRepository) GetOrderItems(ctx context.Context, orderID uuid.UUID) ([]*models.OrderItem, error) {
	query := `
		SELECT oi.id, oi.order_id, oi.product_id, p.name, oi.quantity, oi.unit_price, oi.total_price
		FROM order_items oi
		JOIN products p ON oi.product_id = p.id
		WHERE oi.order_id = $1
		ORDER BY p.name`
	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	var items []*models.OrderItem
	for rows.Next() {
		item := &models.OrderItem{}
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductName, &item.Quantity, &item.UnitPrice, &item.TotalPrice); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *orderRepository) listOrders(ctx context.Context, query string, args ...any) ([]*models.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *orderRepository) ListOrdersByUserID(ctx context.Context, userID uuid.UUID) ([]*models.Order, error) {
	query := fmt.Sprintf("SELECT %s FROM orders WHERE user_id = $1 ORDER BY created_at DESC", orderColumns)
	return r.listOrders(ctx, query, userID)
}

func (r *orderRepository) ListAllOrders(ctx context.Context) ([]*models.Order, error) {
	query := fmt.Sprintf("SELECT %s FROM orders ORDER BY created_at DESC", orderColumns)
	return r.listOrders(ctx, query)
}

func (r *orderRepository) LockOrderByIDTx(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*models.Order, error) {
	query := fmt.Sprintf("SELECT %s FROM orders WHERE id = $1 FOR UPDATE NOWAIT", orderColumns)
	o, err := scanOrder(tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "55P03" { // lock
				return nil, fmt.Errorf("order is locked, please try again: %w", err)
			}
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return o, nil
}

func (r *orderRepository) UpdateOrderStatusTx(ctx context.Context, tx *sql.Tx, id uuid.UUID, status models.OrderStatus) error {
	res, err := tx.ExecContext(ctx, "UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2", status, id)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *orderRepository) AppendStatusHistoryTx(ctx context.Context, tx *sql.Tx, h *models.OrderStatusHistory) error {
	query := `INSERT INTO order_status_history (order_id, status, notes, created_by)
	          VALUES ($1, $2, NULLIF($3, ''), $4) RETURNING id, created_at`
	err := tx.QueryRowContext(ctx, query, h.OrderID, h.Status, h.Notes, h.CreatedBy).Scan(&h.ID, &h.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append status history: %w", err)
	}
	return nil
}

func (r *orderRepository) GetStatusHistory(ctx context.Context, orderID uuid.UUID) ([]*models.OrderStatusHistory, error) {
	query := `
		SELECT id, order_id, status, COALESCE(notes, ''), created_by, created_at
		FROM order_status_history
		WHERE order_id = $1
		ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query status history: %w", err)
	}
	defer rows.Close()

	var history []*models.OrderStatusHistory
	for rows.Next() {
		h := &models.OrderStatusHistory{}
		if err := rows.Scan(&h.ID, &h.OrderID, &h.Status, &h.Notes, &h.CreatedBy, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan status history: %w", err)
		}
		history = append(history, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return history, nil
}
