package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/linemk/gomarket/internal/jwt-new/jwtmiddleware"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
	sendBufferSize = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client — одно live-подключение одной аутентифицированной личности
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	identity jwtmiddleware.Identity
	send     chan []byte
	closeMu  sync.Mutex
	closed   bool
}

func (c *Client) close() {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
		c.conn.Close()
	}
}

// sendEvent доставляет событие только этому подключению (ошибки авторизации и подтверждения)
func (c *Client) sendEvent(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}

// readPump читает команды клиента: подписки на группы и синхронизацию корзины.
// Ошибка авторизации подписки доставляется событием error по тому же
// подключению, сам сокет не разрывается.
func (c *Client) readPump() {
	defer c.hub.Unregister(c)

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.sendEvent(NewEvent(EventError, map[string]any{"message": "malformed message"}))
			continue
		}

		switch msg.Action {
		case ActionJoinRoom:
			if err := c.hub.Join(c, msg.Room); err != nil {
				c.sendEvent(NewEvent(EventError, map[string]any{"message": "unauthorized to join this room"}))
				continue
			}
			c.sendEvent(NewEvent(EventJoinedRoom, map[string]any{"room": msg.Room}))
		case ActionLeaveRoom:
			c.hub.Leave(c, msg.Room)
			c.sendEvent(NewEvent(EventLeftRoom, map[string]any{"room": msg.Room}))
		case ActionCartUpdated:
			// синхронизация на другие вкладки того же пользователя, без эха отправителю
			c.hub.PublishExcept(UserGroup(c.identity.UserID), c, NewEvent(EventCartSync, map[string]any{
				"total_items": msg.TotalItems,
			}))
		default:
			c.sendEvent(NewEvent(EventError, map[string]any{"message": "unknown action"}))
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWS — HTTP-обработчик рукопожатия: проверяет токен, апгрейдит
// соединение и регистрирует клиента в хабе
func ServeWS(log *slog.Logger, hub *Hub) http.HandlerFunc {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		panic("JWT_SECRET is not set")
	}
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "ws.ServeWS"
		logger := log.With(slog.String("op", op))

		tokenStr := r.URL.Query().Get("token")
		if tokenStr == "" {
			// запасной вариант — обычный заголовок Authorization
			if parts := strings.Split(r.Header.Get("Authorization"), " "); len(parts) == 2 && parts[0] == "Bearer" {
				tokenStr = parts[1]
			}
		}
		if tokenStr == "" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}

		identity, err := jwtmiddleware.ParseToken(tokenStr, secret)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("websocket upgrade failed", slog.Any("error", err))
			return
		}

		client := &Client{
			hub:      hub,
			conn:     conn,
			identity: identity,
			send:     make(chan []byte, sendBufferSize),
		}
		hub.Register(client)

		go client.writePump()
		go client.readPump()
	}
}
