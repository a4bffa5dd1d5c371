package ws

import (
	"time"

	"github.com/google/uuid"
)

// имена событий, уходящих клиентам
const (
	EventNewOrder           = "new_order"
	EventOrderStatusUpdated = "order_status_updated" // приватная группа владельца
	EventOrderStatusChanged = "order_status_changed" // административная группа, с указанием кто поменял
	EventInventoryUpdated   = "inventory_updated"
	EventCartSync           = "cart_sync"
	EventJoinedRoom         = "joined_room"
	EventLeftRoom           = "left_room"
	EventError              = "error"
)

// AdminGroup — общая группа привилегированных подключений
const AdminGroup = "admin_room"

// UserGroup возвращает имя приватной группы пользователя
func UserGroup(userID uuid.UUID) string {
	return "user_" + userID.String()
}

// Event — единица доставки: имя события, полезная нагрузка и отметка времени
type Event struct {
	Event     string    `json:"event"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent создаёт событие с текущей отметкой времени
func NewEvent(name string, data any) Event {
	return Event{Event: name, Data: data, Timestamp: time.Now().UTC()}
}

// ClientMessage — входящее сообщение от клиента
type ClientMessage struct {
	Action     string `json:"action"`
	Room       string `json:"room,omitempty"`
	TotalItems int    `json:"total_items,omitempty"`
}

// действия, принимаемые от клиента
const (
	ActionJoinRoom    = "join_room"
	ActionLeaveRoom   = "leave_room"
	ActionCartUpdated = "cart_updated"
)
