package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/linemk/gomarket/internal/domain/models"
	"github.com/linemk/gomarket/internal/service"
	"github.com/shopspring/decimal"
)

// ProductRequest — входной JSON создания/обновления товара
type ProductRequest struct {
	Name          string          `json:"name" validate:"required"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price" validate:"required"`
	StockQuantity int             `json:"stock_quantity" validate:"gte=0"`
	CategoryID    *uuid.UUID      `json:"category_id"`
	SKU           string          `json:"sku"`
	ImageURL      string          `json:"image_url"`
}

// AdjustStockRequest — входной JSON корректировки остатка
type AdjustStockRequest struct {
	Delta int `json:"delta" validate:"required"`
}

// parseIDParam достаёт и разбирает uuid-параметр пути
func parseIDParam(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	return id, err == nil
}

// ListProductsHandler обрабатывает запрос GET /api/products
func ListProductsHandler(log *slog.Logger, catalog service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ListProductsHandler"
		logger := log.With(slog.String("op", op))

		filter := models.ProductFilter{Search: r.URL.Query().Get("search")}
		if raw := r.URL.Query().Get("category_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				respondMessage(logger, w, http.StatusBadRequest, "Invalid category_id")
				return
			}
			filter.CategoryID = &id
		}
		filter.Page, _ = strconv.Atoi(r.URL.Query().Get("page"))
		filter.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))

		products, err := catalog.ListProducts(r.Context(), filter)
		if err != nil {
			logger.Error("failed to list products", slog.Any("error", err))
			respondServiceError(logger, w, err)
			return
		}

		respondData(logger, w, http.StatusOK, "", map[string]any{"products": products})
	}
}

// GetProductHandler обрабатывает запрос GET /api/products/{id}
func GetProductHandler(log *slog.Logger, catalog service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.GetProductHandler"
		logger := log.With(slog.String("op", op))

		id, ok := parseIDParam(r, "id")
		if !ok {
			respondMessage(logger, w, http.StatusBadRequest, "Invalid product id")
			return
		}

		product, err := catalog.GetProduct(r.Context(), id)
		if err != nil {
			respondServiceError(logger, w, err)
			return
		}

		respondData(logger, w, http.StatusOK, "", map[string]any{"product": product})
	}
}

// CreateProductHandler обрабатывает запрос POST /api/products (только администратор)
func CreateProductHandler(log *slog.Logger, catalog service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CreateProductHandler"
		logger := log.With(slog.String("op", op))

		var req ProductRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("invalid request: decoding error", slog.Any("error", err))
			respondMessage(logger, w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if err := validate.Struct(req); err != nil {
			respondMessage(logger, w, http.StatusBadRequest, "Validation failed: "+err.Error())
			return
		}
		if !req.Price.IsPositive() {
			respondMessage(logger, w, http.StatusBadRequest, "Price must be positive")
			return
		}

		product, err := catalog.CreateProduct(r.Context(), &models.Product{
			Name:          req.Name,
			Description:   req.Description,
			Price:         req.Price,
			StockQuantity: req.StockQuantity,
			CategoryID:    req.CategoryID,
			SKU:           req.SKU,
			ImageURL:      req.ImageURL,
		})
		if err != nil {
			respondServiceError(logger, w, err)
			return
		}

		respondData(logger, w, http.StatusCreated, "Product created successfully", map[string]any{"product": product})
	}
}

// UpdateProductHandler обрабатывает запрос PUT /api/products/{id} (только администратор)
func UpdateProductHandler(log *slog.Logger, catalog service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.UpdateProductHandler"
		logger := log.With(slog.String("op", op))

		id, ok := parseIDParam(r, "id")
		if !ok {
			respondMessage(logger, w, http.StatusBadRequest, "Invalid product id")
			return
		}

		var req ProductRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondMessage(logger, w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if err := validate.Struct(req); err != nil {
			respondMessage(logger, w, http.StatusBadRequest, "Validation failed: "+err.Error())
			return
		}
		if !req.Price.IsPositive() {
			respondMessage(logger, w, http.StatusBadRequest, "Price must be positive")
			return
		}

		product, err := catalog.UpdateProduct(r.Context(), &models.Product{
			ID:          id,
			Name:        req.Name,
			Description: req.Description,
			Price:       req.Price,
			CategoryID:  req.CategoryID,
			SKU:         req.SKU,
			ImageURL:    req.ImageURL,
		})
		if err != nil {
			respondServiceError(logger, w, err)
			return
		}

		respondData(logger, w, http.StatusOK, "Product updated successfully", map[string]any{"product": product})
	}
}

// AdjustStockHandler обрабатывает запрос PUT /api/products/{id}/stock (только администратор)
func AdjustStockHandler(log *slog.Logger, catalog service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.AdjustStockHandler"
		logger := log.With(slog.String("op", op))

		id, ok := parseIDParam(r, "id")
		if !ok {
			respondMessage(logger, w, http.StatusBadRequest, "Invalid product id")
			return
		}

		actor, ok := actorFromContext(r)
		if !ok {
			respondMessage(logger, w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		var req AdjustStockRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondMessage(logger, w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if err := validate.Struct(req); err != nil {
			respondMessage(logger, w, http.StatusBadRequest, "Validation failed: delta is required")
			return
		}

		product, err := catalog.AdjustStock(r.Context(), actor, id, req.Delta)
		if err != nil {
			respondServiceError(logger, w, err)
			return
		}

		respondData(logger, w, http.StatusOK, "Stock adjusted successfully", map[string]any{"product": product})
	}
}

// DeactivateProductHandler обрабатывает запрос DELETE /api/products/{id} (только администратор).
// Удаление мягкое: товар пропадает из каталога, но остаётся в исторических заказах.
func DeactivateProductHandler(log *slog.Logger, catalog service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.DeactivateProductHandler"
		logger := log.With(slog.String("op", op))

		id, ok := parseIDParam(r, "id")
		if !ok {
			respondMessage(logger, w, http.StatusBadRequest, "Invalid product id")
			return
		}

		if err := catalog.DeactivateProduct(r.Context(), id); err != nil {
			respondServiceError(logger, w, err)
			return
		}

		respondMessage(logger, w, http.StatusOK, "Product deactivated successfully")
	}
}
