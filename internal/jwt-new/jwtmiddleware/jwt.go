package jwtmiddleware

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/linemk/gomarket/internal/domain/models"
)

type contextKey string

const IdentityKey contextKey = "identity"

// Identity — аутентифицированная личность запроса, восстановленная из токена
type Identity struct {
	UserID uuid.UUID
	Email  string
	Role   string
}

// IsAdmin сообщает, есть ли у личности административные права
func (i Identity) IsAdmin() bool {
	return i.Role == models.RoleAdmin
}

// ParseToken проверяет подпись токена и возвращает личность.
// Используется и HTTP-middleware, и рукопожатием веб-сокета.
func ParseToken(tokenStr, secret string) (Identity, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return Identity{}, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return Identity{}, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, errors.New("invalid token claims")
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return Identity{}, errors.New("invalid token claims: sub not found")
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return Identity{}, errors.New("invalid token claims: invalid user id")
	}

	email, _ := claims["email"].(string)
	role, _ := claims["role"].(string)
	if role == "" {
		role = models.RoleCustomer
	}

	return Identity{UserID: userID, Email: email, Role: role}, nil
}

// NewJWTMiddleware создаёт middleware для проверки JWT, секрет берётся из переменной окружения.
func NewJWTMiddleware() func(http.Handler) http.Handler {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		panic("JWT_SECRET is not set")
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Извлекаем токен из заголовка Authorization (формат: "Bearer <token>")
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "missing token", http.StatusUnauthorized)
				return
			}
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, "invalid token format", http.StatusUnauthorized)
				return
			}

			identity, err := ParseToken(parts[1], secret)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), IdentityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin пропускает дальше только административные токены.
// Навешивается поверх NewJWTMiddleware.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := FromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if !identity.IsAdmin() {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// FromContext извлекает личность из контекста.
func FromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(IdentityKey).(Identity)
	return identity, ok
}
