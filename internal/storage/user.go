package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/linemk/gomarket/internal/domain/models"
)

var ErrUserNotFound = errors.New("user not found")

type UserStorage interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type userRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) UserStorage {
	return &userRepository{db: db}
}

// получение уже существующего пользователя
func (r *userRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user := &models.User{}
	row := r.db.QueryRowContext(ctx,
		"SELECT id, email, pass_hash, first_name, last_name, role, is_active, created_at FROM users WHERE email = $1", email)
	if err := row.Scan(&user.ID, &user.Email, &user.PassHash, &user.FirstName, &user.LastName, &user.Role, &user.IsActive, &user.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (r *userRepository) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	var id uuid.UUID
	err := r.db.QueryRowContext(ctx,
		"INSERT INTO users (email, pass_hash, first_name, last_name, role) VALUES ($1, $2, $3, $4, $5) RETURNING id",
		user.Email, user.PassHash, user.FirstName, user.LastName, user.Role,
	).Scan(&id)
	if err != nil {
		return nil, err
	}
	user.ID = id
	return user, nil
}

func (r *userRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user := &models.User{}
	row := r.db.QueryRowContext(ctx,
		"SELECT id, email, pass_hash, first_name, last_name, role, is_active, created_at FROM users WHERE id = $1", id)
	if err := row.Scan(&user.ID, &user.Email, &user.PassHash, &user.FirstName, &user.LastName, &user.Role, &user.IsActive, &user.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}
