package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/linemk/gomarket/internal/domain/models"
	"github.com/linemk/gomarket/internal/service"
)

// ShippingAddressRequest — адрес доставки, все пять полей обязательны
type ShippingAddressRequest struct {
	Street     string `json:"street" validate:"required"`
	City       string `json:"city" validate:"required"`
	State      string `json:"state" validate:"required"`
	PostalCode string `json:"postal_code" validate:"required"`
	Country    string `json:"country" validate:"required"`
}

// CreateOrderRequest — входной JSON оформления заказа
type CreateOrderRequest struct {
	ShippingAddress ShippingAddressRequest `json:"shipping_address" validate:"required"`
	PaymentMethod   string                 `json:"payment_method" validate:"omitempty,oneof=cash_on_delivery credit_card paypal bank_transfer"`
	Notes           string                 `json:"notes" validate:"max=500"`
}

// UpdateOrderStatusRequest — входной JSON смены статуса заказа
type UpdateOrderStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending confirmed processing shipped delivered cancelled"`
	Notes  string `json:"notes" validate:"max=500"`
}

// CreateOrderHandler обрабатывает запрос POST /api/orders:
// оформление заказа из текущей корзины пользователя
func CreateOrderHandler(log *slog.Logger, orders service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CreateOrderHandler"
		logger := log.With(slog.String("op", op))

		actor, ok := actorFromContext(r)
		if !ok {
			respondMessage(logger, w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var req CreateOrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("invalid request: decoding error", slog.Any("error", err))
			respondMessage(logger, w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if err := validate.Struct(req); err != nil {
			logger.Error("invalid request: validation error", slog.Any("error", err))
			respondMessage(logger, w, http.StatusBadRequest, "Validation failed: "+err.Error())
			return
		}

		order, err := orders.Checkout(r.Context(), actor, service.CheckoutInput{
			ShippingAddress: models.ShippingAddress{
				Street:     req.ShippingAddress.Street,
				City:       req.ShippingAddress.City,
				State:      req.ShippingAddress.State,
				PostalCode: req.ShippingAddress.PostalCode,
				Country:    req.ShippingAddress.Country,
			},
			PaymentMethod: req.PaymentMethod,
			Notes:         req.Notes,
		})
		if err != nil {
			logger.Error("checkout failed", slog.Any("error", err))
			respondServiceError(logger, w, err)
			return
		}

		respondData(logger, w, http.StatusCreated, "Order placed successfully", map[string]any{"order": order})
	}
}

// ListOrdersHandler обрабатывает запрос GET /api/orders:
// обычный пользователь видит свои заказы, администратор — все
func ListOrdersHandler(log *slog.Logger, orders service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ListOrdersHandler"
		logger := log.With(slog.String("op", op))

		actor, ok := actorFromContext(r)
		if !ok {
			respondMessage(logger, w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		list, err := orders.ListOrders(r.Context(), actor)
		if err != nil {
			respondServiceError(logger, w, err)
			return
		}

		respondData(logger, w, http.StatusOK, "", map[string]any{"orders": list})
	}
}

// GetOrderHandler обрабатывает запрос GET /api/orders/{id}
func GetOrderHandler(log *slog.Logger, orders service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.GetOrderHandler"
		logger := log.With(slog.String("op", op))

		actor, ok := actorFromContext(r)
		if !ok {
			respondMessage(logger, w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		id, ok := parseIDParam(r, "id")
		if !ok {
			respondMessage(logger, w, http.StatusBadRequest, "Invalid order id")
			return
		}

		order, err := orders.GetOrder(r.Context(), actor, id)
		if err != nil {
			respondServiceError(logger, w, err)
			return
		}

		respondData(logger, w, http.StatusOK, "", map[string]any{"order": order})
	}
}

// UpdateOrderStatusHandler обрабатывает запрос PUT /api/orders/{id}/status (только администратор)
func UpdateOrderStatusHandler(log *slog.Logger, orders service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.UpdateOrderStatusHandler"
		logger := log.With(slog.String("op", op))

		actor, ok := actorFromContext(r)
		if !ok {
			respondMessage(logger, w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		id, ok := parseIDParam(r, "id")
		if !ok {
			respondMessage(logger, w, http.StatusBadRequest, "Invalid order id")
			return
		}

		var req UpdateOrderStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondMessage(logger, w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if err := validate.Struct(req); err != nil {
			respondMessage(logger, w, http.StatusBadRequest, "Validation failed: "+err.Error())
			return
		}

		order, err := orders.UpdateStatus(r.Context(), actor, id, models.OrderStatus(req.Status), req.Notes)
		if err != nil {
			logger.Error("status update failed", slog.Any("error", err))
			respondServiceError(logger, w, err)
			return
		}

		respondData(logger, w, http.StatusOK, "Order status updated successfully", map[string]any{"order": order})
	}
}

// CancelOrderHandler обрабатывает запрос PUT /api/orders/{id}/cancel:
// владелец может отменить только заказ в статусе pending
func CancelOrderHandler(log *slog.Logger, orders service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CancelOrderHandler"
		logger := log.With(slog.String("op", op))

		actor, ok := actorFromContext(r)
		if !ok {
			respondMessage(logger, w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		id, ok := parseIDParam(r, "id")
		if !ok {
			respondMessage(logger, w, http.StatusBadRequest, "Invalid order id")
			return
		}

		order, err := orders.Cancel(r.Context(), actor, id)
		if err != nil {
			logger.Error("cancel failed", slog.Any("error", err))
			respondServiceError(logger, w, err)
			return
		}

		respondData(logger, w, http.StatusOK, "Order cancelled successfully", map[string]any{"order": order})
	}
}

// OrderHistoryHandler обрабатывает запрос GET /api/orders/{id}/history
func OrderHistoryHandler(log *slog.Logger, orders service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.OrderHistoryHandler"
		logger := log.With(slog.String("op", op))

		actor, ok := actorFromContext(r)
		if !ok {
			respondMessage(logger, w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		id, ok := parseIDParam(r, "id")
		if !ok {
			respondMessage(logger, w, http.StatusBadRequest, "Invalid order id")
			return
		}

		history, err := orders.GetStatusHistory(r.Context(), actor, id)
		if err != nil {
			respondServiceError(logger, w, err)
			return
		}

		respondData(logger, w, http.StatusOK, "", map[string]any{"history": history})
	}
}
