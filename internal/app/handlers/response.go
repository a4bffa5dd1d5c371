package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/linemk/gomarket/internal/service"
)

// Debug включает подробности внутренних ошибок в ответах;
// выставляется в main для не-production окружений
var Debug bool

// Response — единый конверт ответа API
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func respondJSON(log *slog.Logger, w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error("failed to encode response", slog.Any("error", err))
	}
}

func respondData(log *slog.Logger, w http.ResponseWriter, status int, message string, data any) {
	respondJSON(log, w, status, Response{Success: true, Message: message, Data: data})
}

func respondMessage(log *slog.Logger, w http.ResponseWriter, status int, message string) {
	respondJSON(log, w, status, Response{Success: status < http.StatusBadRequest, Message: message})
}

// respondServiceError отображает ошибки бизнес-логики в HTTP-статусы.
// Внутренние подробности наружу не уходят, кроме режима Debug.
func respondServiceError(log *slog.Logger, w http.ResponseWriter, err error) {
	var stockErr *service.InsufficientStockError
	switch {
	case errors.As(err, &stockErr):
		respondMessage(log, w, http.StatusBadRequest, stockErr.Error())
	case errors.Is(err, service.ErrEmptyCart):
		respondMessage(log, w, http.StatusBadRequest, "Cart is empty")
	case errors.Is(err, service.ErrInvalidTransition):
		respondMessage(log, w, http.StatusBadRequest, "Invalid status transition")
	case errors.Is(err, service.ErrNotFound):
		respondMessage(log, w, http.StatusNotFound, "Not found")
	case errors.Is(err, service.ErrForbidden):
		respondMessage(log, w, http.StatusForbidden, "Forbidden")
	case errors.Is(err, service.ErrInvalidCredentials):
		respondMessage(log, w, http.StatusUnauthorized, "Invalid credentials")
	default:
		message := "Internal server error"
		if Debug {
			message = err.Error()
		}
		respondMessage(log, w, http.StatusInternalServerError, message)
	}
}
