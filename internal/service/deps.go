package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/linemk/gomarket/internal/domain/models"
)

// Actor — аутентифицированный инициатор операции, восстанавливается из JWT-клеймов
type Actor struct {
	ID    uuid.UUID
	Email string
	Role  string
}

// IsAdmin сообщает, есть ли у инициатора административные права
func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

// Notifier доставляет события live-подключениям. Реализация не должна
// блокировать вызывающего: доставка best-effort, at-most-once.
type Notifier interface {
	OrderPlaced(order *models.Order, customerEmail string)
	OrderStatusChanged(order *models.Order, actor Actor, notes string)
	InventoryAdjusted(product *models.Product, actor Actor)
	CartChanged(userID uuid.UUID, totalItems int)
}

// Mailer ставит письмо в очередь фоновой отправки; ошибки отправки
// логируются и никогда не влияют на исходный запрос
type Mailer interface {
	SendOrderConfirmation(email string, order *models.Order)
	SendStatusUpdate(email string, order *models.Order)
}

// Cache — read-through кэш каталога; при недоступности Redis
// реализация молча превращается в no-op
type Cache interface {
	Get(ctx context.Context, key string, dest any) bool
	Set(ctx context.Context, key string, value any, ttl time.Duration)
	Delete(ctx context.Context, keys ...string)
	DeletePattern(ctx context.Context, pattern string)
}
