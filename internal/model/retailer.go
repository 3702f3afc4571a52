package model

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var pinPattern = regexp.MustCompile(`^\d{4,6}$`)

type Retailer struct {
	ID         uuid.UUID `json:"id" db:"id"`
	AuthUserID uuid.UUID `json:"auth_user_id" db:"auth_user_id"`
	Name       string    `json:"name" db:"name"`
	Username   string    `json:"username" db:"username"`
	Email      string    `json:"email,omitempty" db:"email"`
	// RetailPIN is a short numeric second factor required on every payment
	// submission. It is deliberately independent of the login password so a
	// stolen session cannot submit payments without it.
	RetailPIN string    `json:"-" db:"retail_pin"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type CreateRetailerInput struct {
	Name      string `json:"name"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	RetailPIN string `json:"retail_pin"`
	Email     string `json:"email"`
}

func (in *CreateRetailerInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Username) == "" || in.Password == "" {
		return Validationf("name, username and password are required")
	}
	if len(in.Password) < 6 {
		return Validationf("password must be at least 6 characters")
	}
	if in.RetailPIN != "" && !pinPattern.MatchString(in.RetailPIN) {
		return Validationf("retail PIN must be 4-6 digits")
	}
	return nil
}

type UpdateRetailerInput struct {
	ID        uuid.UUID `json:"id"`
	Name      *string   `json:"name"`
	Password  *string   `json:"password"`
	RetailPIN *string   `json:"retail_pin"`
	Email     *string   `json:"email"`
	IsActive  *bool     `json:"is_active"`
}

func (in *UpdateRetailerInput) Validate() error {
	if in.ID == uuid.Nil {
		return Validationf("id is required")
	}
	if in.RetailPIN != nil && *in.RetailPIN != "" && !pinPattern.MatchString(*in.RetailPIN) {
		return Validationf("retail PIN must be 4-6 digits")
	}
	return nil
}
