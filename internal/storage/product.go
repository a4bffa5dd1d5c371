package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/linemk/gomarket/internal/domain/models"
)

var (
	ErrProductNotFound = errors.New("product not found")
	// ErrInsufficientStock возвращается условным апдейтом остатка,
	// когда списание увело бы количество ниже нуля
	ErrInsufficientStock = errors.New("insufficient stock")
)

// ProductStorage описывает методы для работы с таблицей товаров.
// Остаток товара меняется только через DecrementStockTx и AdjustStock —
// оба выполняют условный апдейт, read-modify-write на уровне приложения запрещён.
type ProductStorage interface {
	GetProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	ListProducts(ctx context.Context, filter models.ProductFilter) ([]*models.Product, error)
	CreateProduct(ctx context.Context, p *models.Product) (*models.Product, error)
	UpdateProduct(ctx context.Context, p *models.Product) error
	// DecrementStockTx выполняет условное списание в рамках транзакции оформления заказа
	DecrementStockTx(ctx context.Context, tx *sql.Tx, id uuid.UUID, qty int) error
	// GetStockTx читает текущий остаток внутри транзакции (для сообщения об ошибке)
	GetStockTx(ctx context.Context, tx *sql.Tx, id uuid.UUID) (int, error)
	AdjustStock(ctx context.Context, id uuid.UUID, delta int) (*models.Product, error)
	DeactivateProduct(ctx context.Context, id uuid.UUID) error
}

type productRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) ProductStorage {
	return &productRepository{db: db}
}

const productColumns = `p.id, p.name, p.description, p.price, p.stock_quantity, p.category_id, COALESCE(c.name, ''), p.sku, p.image_url, p.is_active, p.created_at, p.updated_at`

func scanProduct(row interface{ Scan(...any) error }) (*models.Product, error) {
	p := &models.Product{}
	var description, sku, imageURL sql.NullString
	if err := row.Scan(&p.ID, &p.Name, &description, &p.Price, &p.StockQuantity, &p.CategoryID, &p.CategoryName, &sku, &imageURL, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Description = description.String
	p.SKU = sku.String
	p.ImageURL = imageURL.String
	return p, nil
}

func (r *productRepository) GetProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products p LEFT JOIN categories c ON p.category_id = c.id WHERE p.id = $1`, productColumns)
	p, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return p, nil
}

// ListProducts возвращает только активные товары: мягко удалённые
// исключаются на каждом пути чтения каталога
func (r *productRepository) ListProducts(ctx context.Context, filter models.ProductFilter) ([]*models.Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products p LEFT JOIN categories c ON p.category_id = c.id WHERE p.is_active = true`, productColumns)
	args := []any{}
	argn := 1
	if filter.CategoryID != nil {
		query += fmt.Sprintf(" AND p.category_id = $%d", argn)
		args = append(args, *filter.CategoryID)
		argn++
	}
	if filter.Search != "" {
		query += fmt.Sprintf(" AND p.name ILIKE $%d", argn)
		args = append(args, "%"+filter.Search+"%")
		argn++
	}
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	query += fmt.Sprintf(" ORDER BY p.created_at DESC LIMIT $%d OFFSET $%d", argn, argn+1)
	args = append(args, limit, (page-1)*limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []*models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (r *productRepository) CreateProduct(ctx context.Context, p *models.Product) (*models.Product, error) {
	query := `INSERT INTO products (name, description, price, stock_quantity, category_id, sku, image_url)
	          VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, is_active, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		p.Name, p.Description, p.Price, p.StockQuantity, p.CategoryID, p.SKU, p.ImageURL,
	).Scan(&p.ID, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	return p, nil
}

// UpdateProduct обновляет описательные поля товара; остаток не трогает
func (r *productRepository) UpdateProduct(ctx context.Context, p *models.Product) error {
	query := `UPDATE products SET name = $1, description = $2, price = $3, category_id = $4, sku = $5, image_url = $6, updated_at = NOW()
	          WHERE id = $7 AND is_active = true`
	res, err := r.db.ExecContext(ctx, query, p.Name, p.Description, p.Price, p.CategoryID, p.SKU, p.ImageURL, p.ID)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrProductNotFound
	}
	return nil
}

// DecrementStockTx — условное списание остатка. Апдейт применяется
// только если остатка хватает; если ни одна строка не затронута,
// возвращается ErrInsufficientStock и вся транзакция оформления
// должна быть откатана.
func (r *productRepository) DecrementStockTx(ctx context.Context, tx *sql.Tx, id uuid.UUID, qty int) error {
	query := `UPDATE products SET stock_quantity = stock_quantity - $1, updated_at = NOW()
	          WHERE id = $2 AND stock_quantity >= $1`
	res, err := tx.ExecContext(ctx, query, qty, id)
	if err != nil {
		return fmt.Errorf("failed to decrement stock: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrInsufficientStock
	}
	return nil
}

func (r *productRepository) GetStockTx(ctx context.Context, tx *sql.Tx, id uuid.UUID) (int, error) {
	var stock int
	row := tx.QueryRowContext(ctx, "SELECT stock_quantity FROM products WHERE id = $1", id)
	if err := row.Scan(&stock); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrProductNotFound
		}
		return 0, err
	}
	return stock, nil
}

// AdjustStock меняет остаток на delta (может быть отрицательной).
// Условие stock_quantity + delta >= 0 гарантирует, что остаток
// не уйдёт в минус даже при конкурентных корректировках.
func (r *productRepository) AdjustStock(ctx context.Context, id uuid.UUID, delta int) (*models.Product, error) {
	query := `UPDATE products SET stock_quantity = stock_quantity + $1, updated_at = NOW()
	          WHERE id = $2 AND stock_quantity + $1 >= 0
	          RETURNING id, name, stock_quantity`
	p := &models.Product{}
	err := r.db.QueryRowContext(ctx, query, delta, id).Scan(&p.ID, &p.Name, &p.StockQuantity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// либо товара нет, либо не хватило остатка — различаем отдельным чтением
			var exists bool
			if chkErr := r.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM products WHERE id = $1)", id).Scan(&exists); chkErr == nil && !exists {
				return nil, ErrProductNotFound
			}
			return nil, ErrInsufficientStock
		}
		return nil, fmt.Errorf("failed to adjust stock: %w", err)
	}
	return p, nil
}

// DeactivateProduct — мягкое удаление: строка остаётся для исторических
// позиций заказов, товар исключается из каталога и корзин
func (r *productRepository) DeactivateProduct(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, "UPDATE products SET is_active = false, updated_at = NOW() WHERE id = $1 AND is_active = true", id)
	if err != nil {
		return fmt.Errorf("failed to deactivate product: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrProductNotFound
	}
	return nil
}
