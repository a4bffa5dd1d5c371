package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/linemk/gomarket/internal/service"
)

// AddCartItemRequest — входной JSON добавления товара в корзину
type AddCartItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,gt=0"`
}

// UpdateCartItemRequest — входной JSON изменения количества
type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" validate:"required,gt=0"`
}

// GetCartHandler обрабатывает запрос GET /api/cart
func GetCartHandler(log *slog.Logger, cart service.CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.GetCartHandler"
		logger := log.With(slog.String("op", op))

		actor, ok := actorFromContext(r)
		if !ok {
			respondMessage(logger, w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		lines, summary, err := cart.List(r.Context(), actor.ID)
		if err != nil {
			respondServiceError(logger, w, err)
			return
		}

		respondData(logger, w, http.StatusOK, "", map[string]any{
			"cart_items": lines,
			"summary":    summary,
		})
	}
}

// AddCartItemHandler обрабатывает запрос POST /api/cart/items
func AddCartItemHandler(log *slog.Logger, cart service.CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.AddCartItemHandler"
		logger := log.With(slog.String("op", op))

		actor, ok := actorFromContext(r)
		if !ok {
			respondMessage(logger, w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var req AddCartItemRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("invalid request: decoding error", slog.Any("error", err))
			respondMessage(logger, w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if err := validate.Struct(req); err != nil {
			respondMessage(logger, w, http.StatusBadRequest, "Validation failed: "+err.Error())
			return
		}

		item, err := cart.AddItem(r.Context(), actor.ID, req.ProductID, req.Quantity)
		if err != nil {
			respondServiceError(logger, w, err)
			return
		}

		respondData(logger, w, http.StatusCreated, "Item added to cart successfully", map[string]any{"cart_item": item})
	}
}

// UpdateCartItemHandler обрабатывает запрос PUT /api/cart/items/{id}
func UpdateCartItemHandler(log *slog.Logger, cart service.CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.UpdateCartItemHandler"
		logger := log.With(slog.String("op", op))

		actor, ok := actorFromContext(r)
		if !ok {
			respondMessage(logger, w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		itemID, ok := parseIDParam(r, "id")
		if !ok {
			respondMessage(logger, w, http.StatusBadRequest, "Invalid cart item id")
			return
		}

		var req UpdateCartItemRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondMessage(logger, w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if err := validate.Struct(req); err != nil {
			respondMessage(logger, w, http.StatusBadRequest, "Quantity must be a positive integer")
			return
		}

		if err := cart.UpdateItem(r.Context(), actor.ID, itemID, req.Quantity); err != nil {
			respondServiceError(logger, w, err)
			return
		}

		respondMessage(logger, w, http.StatusOK, "Cart item updated successfully")
	}
}

// RemoveCartItemHandler обрабатывает запрос DELETE /api/cart/items/{id}
func RemoveCartItemHandler(log *slog.Logger, cart service.CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.RemoveCartItemHandler"
		logger := log.With(slog.String("op", op))

		actor, ok := actorFromContext(r)
		if !ok {
			respondMessage(logger, w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		itemID, ok := parseIDParam(r, "id")
		if !ok {
			respondMessage(logger, w, http.StatusBadRequest, "Invalid cart item id")
			return
		}

		if err := cart.RemoveItem(r.Context(), actor.ID, itemID); err != nil {
			respondServiceError(logger, w, err)
			return
		}

		respondMessage(logger, w, http.StatusOK, "Item removed from cart successfully")
	}
}

// ClearCartHandler обрабатывает запрос DELETE /api/cart
func ClearCartHandler(log *slog.Logger, cart service.CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ClearCartHandler"
		logger := log.With(slog.String("op", op))

		actor, ok := actorFromContext(r)
		if !ok {
			respondMessage(logger, w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		if err := cart.Clear(r.Context(), actor.ID); err != nil {
			respondServiceError(logger, w, err)
			return
		}

		respondMessage(logger, w, http.StatusOK, "Cart cleared successfully")
	}
}

// CartCountHandler обрабатывает запрос GET /api/cart/count
func CartCountHandler(log *slog.Logger, cart service.CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CartCountHandler"
		logger := log.With(slog.String("op", op))

		actor, ok := actorFromContext(r)
		if !ok {
			respondMessage(logger, w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		count, err := cart.Count(r.Context(), actor.ID)
		if err != nil {
			respondServiceError(logger, w, err)
			return
		}

		respondData(logger, w, http.StatusOK, "", map[string]any{"count": count})
	}
}
