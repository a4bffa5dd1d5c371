package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartItem представляет позицию корзины.
// Пара (UserID, ProductID) уникальна, позиция принадлежит только своему пользователю.
type CartItem struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CartLine — позиция корзины вместе с актуальным снимком товара,
// получается через JOIN с таблицей products
type CartLine struct {
	CartItem
	ProductName  string          `json:"product_name"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Stock        int             `json:"stock_quantity"`
	ActiveFlag   bool            `json:"-"`
	LineSubtotal decimal.Decimal `json:"subtotal"` // UnitPrice * Quantity
}

// CartSummary — итоги по корзине для ответа GET /api/cart
type CartSummary struct {
	TotalItems int             `json:"total_items"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	Currency   string          `json:"currency"`
}
