package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/linemk/gomarket/internal/domain/models"
	security "github.com/linemk/gomarket/internal/jwt-new"
	"github.com/linemk/gomarket/internal/storage"
	"golang.org/x/crypto/bcrypt"
)

type AuthService struct {
	log      *slog.Logger
	userRepo storage.UserStorage
	tokenTTL time.Duration
}

func NewAuthService(log *slog.Logger, userRepo storage.UserStorage, tokenTTL time.Duration) *AuthService {
	return &AuthService{
		log:      log,
		userRepo: userRepo,
		tokenTTL: tokenTTL,
	}
}

type AuthServiceInterface interface {
	Login(ctx context.Context, email, password string) (string, error)
}

// Login осуществляет аутентификацию пользователя.
// Если пользователь не найден, он создаётся с ролью customer (пароль хэшируется через bcrypt).
// Администраторы заводятся вне приложения, через Login роль admin получить нельзя.
// После успешной проверки генерируется JWT-токен с клеймами sub, email и role.
func (a *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	const op = "auth.Login"
	logger := a.log.With(
		slog.String("op", op),
		slog.String("email", email),
	)
	logger.Info("checking user")

	user, err := a.userRepo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			logger.Info("user not found, creating new user")
			passHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
			if err != nil {
				logger.Error("failed to hash password", slog.Any("error", err))
				return "", fmt.Errorf("%s: failed to hash password: %w", op, err)
			}
			newUser := &models.User{
				Email:    email,
				PassHash: passHash,
				Role:     models.RoleCustomer,
				IsActive: true,
			}
			user, err = a.userRepo.CreateUser(ctx, newUser)
			if err != nil {
				logger.Error("failed to create user", slog.Any("error", err))
				return "", fmt.Errorf("%s: failed to create user: %w", op, err)
			}
		} else {
			logger.Error("failed to get user", slog.Any("error", err))
			return "", fmt.Errorf("%s: failed to get user: %w", op, err)
		}
	} else {
		// деактивированный аккаунт не пускаем
		if !user.IsActive {
			logger.Warn("account is deactivated")
			return "", fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}
		if err := bcrypt.CompareHashAndPassword(user.PassHash, []byte(password)); err != nil {
			logger.Warn("invalid password")
			return "", fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}
	}

	token, err := security.NewToken(ctx, user, a.tokenTTL)
	if err != nil {
		logger.Error("failed to generate token", slog.Any("error", err))
		return "", fmt.Errorf("%s: failed to generate token: %w", op, err)
	}

	logger.Info("user logged in successfully", slog.String("userID", user.ID.String()))
	return token, nil
}
