package service

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ошибки бизнес-логики; транспортный слой отображает их в HTTP-статусы.
// ErrNotFound используется и для чужих ресурсов, чтобы не раскрывать их существование.
var (
	ErrNotFound           = errors.New("not found")
	ErrEmptyCart          = errors.New("cart is empty")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// InsufficientStockError сообщает, какого товара не хватило и сколько доступно
type InsufficientStockError struct {
	ProductID   uuid.UUID
	ProductName string
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: only %d items available", e.ProductName, e.Available)
}
