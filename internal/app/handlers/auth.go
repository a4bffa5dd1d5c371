package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/linemk/gomarket/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/gomarket/internal/service"
)

// AuthRequest представляет структуру запроса для аутентификации с тегами валидации
type AuthRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// AuthResponse представляет структуру ответа с JWT-токеном
type AuthResponse struct {
	Token string `json:"token"`
}

var validate = validator.New()

// AuthHandler – HTTP-обработчик для аутентификации, принимает логгер и экземпляр AuthService
func AuthHandler(log *slog.Logger, authService service.AuthServiceInterface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.AuthHandler"
		logger := log.With(slog.String("op", op))

		var req AuthRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("invalid request: decoding error", slog.Any("error", err))
			respondMessage(logger, w, http.StatusBadRequest, "Invalid request body")
			return
		}

		// Валидация структуры запроса с использованием validator
		if err := validate.Struct(req); err != nil {
			logger.Error("invalid request: validation error", slog.Any("error", err))
			respondMessage(logger, w, http.StatusBadRequest, "Validation failed: "+err.Error())
			return
		}

		token, err := authService.Login(r.Context(), req.Email, req.Password)
		if err != nil {
			logger.Error("login failed", slog.Any("error", err))
			respondMessage(logger, w, http.StatusUnauthorized, "Invalid credentials")
			return
		}

		respondData(logger, w, http.StatusOK, "", AuthResponse{Token: token})
	}
}

// actorFromContext восстанавливает инициатора операции из JWT-контекста
func actorFromContext(r *http.Request) (service.Actor, bool) {
	identity, ok := jwtmiddleware.FromContext(r.Context())
	if !ok {
		return service.Actor{}, false
	}
	return service.Actor{ID: identity.UserID, Email: identity.Email, Role: identity.Role}, true
}
