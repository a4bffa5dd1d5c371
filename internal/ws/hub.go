package ws

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/linemk/gomarket/internal/domain/models"
	"github.com/linemk/gomarket/internal/service"
)

// Hub — реестр live-подключений, сгруппированных по именам групп.
// Объект принадлежит серверному процессу и внедряется в сервисы через
// интерфейс service.Notifier. Доставка at-most-once: отключившийся
// клиент просто пропускает события до переподключения.
type Hub struct {
	log    *slog.Logger
	mu     sync.RWMutex
	groups map[string]map[*Client]struct{}
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		log:    log,
		groups: make(map[string]map[*Client]struct{}),
	}
}

// интерфейсная проверка: хаб — это Notifier для сервисов
var _ service.Notifier = (*Hub)(nil)

// Register добавляет подключение: оно всегда попадает в свою приватную
// группу, административные подключения дополнительно — в общую привилегированную.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.joinLocked(c, UserGroup(c.identity.UserID))
	if c.identity.IsAdmin() {
		h.joinLocked(c, AdminGroup)
	}
	h.log.Info("ws client connected",
		slog.String("userID", c.identity.UserID.String()),
		slog.String("role", c.identity.Role),
	)
}

// Unregister убирает подключение из всех групп и закрывает его
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	for group, members := range h.groups {
		if _, ok := members[c]; ok {
			delete(members, c)
			if len(members) == 0 {
				delete(h.groups, group)
			}
		}
	}
	h.mu.Unlock()

	c.close()
	h.log.Info("ws client disconnected", slog.String("userID", c.identity.UserID.String()))
}

// Join подписывает подключение на группу. Разрешено администраторам
// и владельцу его собственной приватной группы; остальным возвращается
// ошибка авторизации, которую вызывающий доставляет тем же подключением.
func (h *Hub) Join(c *Client, group string) error {
	if !c.identity.IsAdmin() && group != UserGroup(c.identity.UserID) {
		return service.ErrForbidden
	}
	h.mu.Lock()
	h.joinLocked(c, group)
	h.mu.Unlock()
	return nil
}

func (h *Hub) Leave(c *Client, group string) {
	h.mu.Lock()
	if members, ok := h.groups[group]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.groups, group)
		}
	}
	h.mu.Unlock()
}

func (h *Hub) joinLocked(c *Client, group string) {
	members, ok := h.groups[group]
	if !ok {
		members = make(map[*Client]struct{})
		h.groups[group] = members
	}
	members[c] = struct{}{}
}

// Publish рассылает событие всем участникам группы, не блокируясь:
// переполненный буфер клиента означает потерю события у этого клиента
func (h *Hub) Publish(group string, event Event) {
	h.publish(group, nil, event)
}

// PublishExcept — то же самое, но пропуская одно подключение (отправителя)
func (h *Hub) PublishExcept(group string, except *Client, event Event) {
	h.publish(group, except, event)
}

func (h *Hub) publish(group string, except *Client, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.log.Error("failed to marshal event", slog.String("event", event.Event), slog.Any("error", err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.groups[group] {
		if c == except {
			continue
		}
		select {
		case c.send <- payload:
		default:
			// медленный клиент — событие у него теряется, остальных не задерживаем
			h.log.Warn("ws client send buffer full, dropping event",
				slog.String("userID", c.identity.UserID.String()),
				slog.String("event", event.Event),
			)
		}
	}
}

// GroupSize возвращает число подключений в группе
func (h *Hub) GroupSize(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}

// --- реализация service.Notifier ---

// OrderPlaced уведомляет администраторов о новом заказе
func (h *Hub) OrderPlaced(order *models.Order, customerEmail string) {
	h.Publish(AdminGroup, NewEvent(EventNewOrder, map[string]any{
		"order_id":       order.ID,
		"customer_email": customerEmail,
		"total_amount":   order.TotalAmount,
		"created_at":     order.CreatedAt,
	}))
}

// OrderStatusChanged уведомляет владельца заказа и администраторов
func (h *Hub) OrderStatusChanged(order *models.Order, actor service.Actor, notes string) {
	h.Publish(UserGroup(order.UserID), NewEvent(EventOrderStatusUpdated, map[string]any{
		"order_id": order.ID,
		"status":   order.Status,
		"notes":    notes,
	}))
	h.Publish(AdminGroup, NewEvent(EventOrderStatusChanged, map[string]any{
		"order_id":   order.ID,
		"status":     order.Status,
		"notes":      notes,
		"updated_by": actor.Email,
	}))
}

// InventoryAdjusted уведомляет администраторов об изменении остатка
func (h *Hub) InventoryAdjusted(product *models.Product, actor service.Actor) {
	h.Publish(AdminGroup, NewEvent(EventInventoryUpdated, map[string]any{
		"product_id":   product.ID,
		"product_name": product.Name,
		"new_stock":    product.StockQuantity,
		"updated_by":   actor.Email,
	}))
}

// CartChanged синхронизирует корзину между подключениями одного пользователя
func (h *Hub) CartChanged(userID uuid.UUID, totalItems int) {
	h.Publish(UserGroup(userID), NewEvent(EventCartSync, map[string]any{
		"total_items": totalItems,
	}))
}
