package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleRetailer   Role = "retailer"
)

// Caller is the resolved identity of the current request. It is produced
// once by the auth middleware and passed explicitly into every service
// operation; services never read identity from ambient state.
type Caller struct {
	UserID uuid.UUID
	Role   Role
}

func (c Caller) IsAdmin() bool {
	return c.Role == RoleSuperAdmin
}

type User struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Username  string    `json:"username" db:"username"`
	Password  string    `json:"-" db:"password"`
	Role      Role      `json:"role" db:"role"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type SignInInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (in *SignInInput) Validate() error {
	if strings.TrimSpace(in.Username) == "" || in.Password == "" {
		return Validationf("username and password are required")
	}
	return nil
}
