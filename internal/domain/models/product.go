package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product представляет товар каталога.
// StockQuantity никогда не опускается ниже нуля: единственный способ
// изменить остаток — условный апдейт в хранилище.
type Product struct {
	ID            uuid.UUID       `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity"`
	CategoryID    *uuid.UUID      `json:"category_id,omitempty"`
	CategoryName  string          `json:"category_name,omitempty"` // заполняется через JOIN с таблицей categories
	SKU           string          `json:"sku,omitempty"`
	ImageURL      string          `json:"image_url,omitempty"`
	IsActive      bool            `json:"is_active"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Category представляет категорию товаров
type Category struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// ProductFilter — параметры выборки списка товаров
type ProductFilter struct {
	CategoryID *uuid.UUID
	Search     string // поиск по подстроке в названии
	Page       int
	Limit      int
}
