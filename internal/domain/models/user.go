package models

import (
	"time"

	"github.com/google/uuid"
)

// роли пользователей
const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// User представляет пользователя магазина
type User struct {
	ID        uuid.UUID
	Email     string
	PassHash  []byte
	FirstName string
	LastName  string
	Role      string // customer или admin
	IsActive  bool
	CreatedAt time.Time
}

// IsAdmin сообщает, есть ли у пользователя административные права
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
