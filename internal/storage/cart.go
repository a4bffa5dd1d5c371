package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/linemk/gomarket/internal/domain/models"
	"github.com/shopspring/decimal"
)

var ErrCartItemNotFound = errors.New("cart item not found")

func decimalFromInt(n int) decimal.Decimal {
	return decimal.NewFromInt(int64(n))
}

// CartStorage описывает методы для работы с корзиной.
// Все операции ограничены владельцем: чужая позиция неотличима от несуществующей.
type CartStorage interface {
	// ListLines возвращает позиции корзины со снимком товара (цена, остаток, активность)
	ListLines(ctx context.Context, userID uuid.UUID) ([]*models.CartLine, error)
	// ListLinesTx — то же самое, но внутри транзакции оформления заказа
	ListLinesTx(ctx context.Context, tx *sql.Tx, userID uuid.UUID) ([]*models.CartLine, error)
	GetItemByUserAndProduct(ctx context.Context, userID, productID uuid.UUID) (*models.CartItem, error)
	// GetLineByID возвращает позицию владельца со снимком товара
	GetLineByID(ctx context.Context, userID, itemID uuid.UUID) (*models.CartLine, error)
	InsertItem(ctx context.Context, item *models.CartItem) (*models.CartItem, error)
	UpdateItemQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) error
	DeleteItem(ctx context.Context, userID, itemID uuid.UUID) error
	Clear(ctx context.Context, userID uuid.UUID) error
	// ClearTx очищает корзину в рамках транзакции оформления заказа
	ClearTx(ctx context.Context, tx *sql.Tx, userID uuid.UUID) error
	CountItems(ctx context.Context, userID uuid.UUID) (int, error)
}

type cartRepository struct {
	db *sql.DB
}

func NewCartRepository(db *sql.DB) CartStorage {
	return &cartRepository{db: db}
}

const cartLineQuery = `
	SELECT ci.id, ci.user_id, ci.product_id, ci.quantity, ci.created_at, ci.updated_at,
	       p.name, p.price, p.stock_quantity, p.is_active
	FROM cart_items ci
	JOIN products p ON ci.product_id = p.id
	WHERE ci.user_id = $1
	ORDER BY ci.created_at DESC`

func scanCartLines(rows *sql.Rows) ([]*models.CartLine, error) {
	var lines []*models.CartLine
	for rows.Next() {
		line := &models.CartLine{}
		if err := rows.Scan(&line.ID, &line.UserID, &line.ProductID, &line.Quantity, &line.CreatedAt, &line.UpdatedAt,
			&line.ProductName, &line.UnitPrice, &line.Stock, &line.ActiveFlag); err != nil {
			return nil, fmt.Errorf("failed to scan cart line: %w", err)
		}
		line.LineSubtotal = line.UnitPrice.Mul(decimalFromInt(line.Quantity))
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

func (r *cartRepository) ListLines(ctx context.Context, userID uuid.UUID) ([]*models.CartLine, error) {
	rows, err := r.db.QueryContext(ctx, cartLineQuery, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cart lines: %w", err)
	}
	defer rows.Close()
	return scanCartLines(rows)
}

func (r *cartRepository) ListLinesTx(ctx context.Context, tx *sql.Tx, userID uuid.UUID) ([]*models.CartLine, error) {
	rows, err := tx.QueryContext(ctx, cartLineQuery, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cart lines: %w", err)
	}
	defer rows.Close()
	return scanCartLines(rows)
}

func (r *cartRepository) GetItemByUserAndProduct(ctx context.Context, userID, productID uuid.UUID) (*models.CartItem, error) {
	item := &models.CartItem{}
	row := r.db.QueryRowContext(ctx,
		"SELECT id, user_id, product_id, quantity, created_at, updated_at FROM cart_items WHERE user_id = $1 AND product_id = $2",
		userID, productID)
	if err := row.Scan(&item.ID, &item.UserID, &item.ProductID, &item.Quantity, &item.CreatedAt, &item.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCartItemNotFound
		}
		return nil, err
	}
	return item, nil
}

func (r *cartRepository) GetLineByID(ctx context.Context, userID, itemID uuid.UUID) (*models.CartLine, error) {
	query := `
	SELECT ci.id, ci.user_id, ci.product_id, ci.quantity, ci.created_at, ci.updated_at,
	       p.name, p.price, p.stock_quantity, p.is_active
	FROM cart_items ci
	JOIN products p ON ci.product_id = p.id
	WHERE ci.id = $1 AND ci.user_id = $2`
	line := &models.CartLine{}
	row := r.db.QueryRowContext(ctx, query, itemID, userID)
	if err := row.Scan(&line.ID, &line.UserID, &line.ProductID, &line.Quantity, &line.CreatedAt, &line.UpdatedAt,
		&line.ProductName, &line.UnitPrice, &line.Stock, &line.ActiveFlag); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCartItemNotFound
		}
		return nil, err
	}
	line.LineSubtotal = line.UnitPrice.Mul(decimalFromInt(line.Quantity))
	return line, nil
}

func (r *cartRepository) InsertItem(ctx context.Context, item *models.CartItem) (*models.CartItem, error) {
	err := r.db.QueryRowContext(ctx,
		"INSERT INTO cart_items (user_id, product_id, quantity) VALUES ($1, $2, $3) RETURNING id, created_at, updated_at",
		item.UserID, item.ProductID, item.Quantity,
	).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert cart item: %w", err)
	}
	return item, nil
}

// UpdateItemQuantity меняет количество только у позиции владельца
func (r *cartRepository) UpdateItemQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE cart_items SET quantity = $1, updated_at = NOW() WHERE id = $2 AND user_id = $3",
		quantity, itemID, userID)
	if err != nil {
		return fmt.Errorf("failed to update cart item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrCartItemNotFound
	}
	return nil
}

func (r *cartRepository) DeleteItem(ctx context.Context, userID, itemID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM cart_items WHERE id = $1 AND user_id = $2", itemID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete cart item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrCartItemNotFound
	}
	return nil
}

func (r *cartRepository) Clear(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM cart_items WHERE user_id = $1", userID)
	if err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

func (r *cartRepository) ClearTx(ctx context.Context, tx *sql.Tx, userID uuid.UUID) error {
	_, err := tx.ExecContext(ctx, "DELETE FROM cart_items WHERE user_id = $1", userID)
	if err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

func (r *cartRepository) CountItems(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	row := r.db.QueryRowContext(ctx, "SELECT COALESCE(SUM(quantity), 0) FROM cart_items WHERE user_id = $1", userID)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count cart items: %w", err)
	}
	return count, nil
}
