package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus — статус заказа
type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusConfirmed  OrderStatus = "confirmed"
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

// допустимые переходы статусов; delivered и cancelled — терминальные
var statusGraph = map[OrderStatus][]OrderStatus{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered, StatusCancelled},
	StatusDelivered:  {},
	StatusCancelled:  {},
}

// Valid проверяет, что строка является известным статусом
func (s OrderStatus) Valid() bool {
	_, ok := statusGraph[s]
	return ok
}

// Terminal сообщает, является ли статус терминальным
func (s OrderStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// CanTransitionTo проверяет допустимость перехода по графу статусов.
// Переход в тот же статус не допускается.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range statusGraph[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// способы оплаты
const (
	PaymentCashOnDelivery = "cash_on_delivery"
	PaymentCreditCard     = "credit_card"
	PaymentPaypal         = "paypal"
	PaymentBankTransfer   = "bank_transfer"
)

// статусы оплаты
const (
	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusRefunded = "refunded"
)

// ShippingAddress — адрес доставки, хранится в заказе как JSONB
type ShippingAddress struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// Order представляет заказ. После создания изменяемы только
// Status, PaymentStatus и Notes, всё остальное — снимок на момент оформления.
type Order struct {
	ID              uuid.UUID       `json:"id"`
	UserID          uuid.UUID       `json:"user_id"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Status          OrderStatus     `json:"status"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
	PaymentMethod   string          `json:"payment_method"`
	PaymentStatus   string          `json:"payment_status"`
	Notes           string          `json:"notes,omitempty"`
	Items           []*OrderItem    `json:"items,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// OrderItem — позиция заказа с зафиксированной ценой.
// UnitPrice — снимок цены товара на момент оформления, последующие
// изменения каталога на исторические заказы не влияют.
type OrderItem struct {
	ID          uuid.UUID       `json:"id"`
	OrderID     uuid.UUID       `json:"order_id"`
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name,omitempty"` // заполняется через JOIN с таблицей products
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalPrice  decimal.Decimal `json:"total_price"` // Quantity * UnitPrice
}

// OrderStatusHistory — запись аудита смены статуса, только добавляется
type OrderStatusHistory struct {
	ID        uuid.UUID   `json:"id"`
	OrderID   uuid.UUID   `json:"order_id"`
	Status    OrderStatus `json:"status"`
	Notes     string      `json:"notes,omitempty"`
	CreatedBy uuid.UUID   `json:"created_by"`
	CreatedAt time.Time   `json:"created_at"`
}
