package domain

import (
	"net/mail"
	"strings"
	"time"

	"github.com/zishan044/ecommerce-app/pkg/apperr"
)

const MinPasswordLength = 8

type User struct {
	ID           string
	FullName     string
	Email        string
	PasswordHash string
	Contact      string
	Address      string
	AvatarURL    string
	IsActive     bool
	Role         string
	CreatedAt    time.Time
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type Registration struct {
	FullName  string
	Email     string
	Password  string
	Contact   string
	Address   string
	AvatarURL string
}

func (r Registration) Validate() error {
	if strings.TrimSpace(r.FullName) == "" {
		return apperr.Validation("full_name is required")
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return apperr.Validation("email %q is not a valid address", r.Email)
	}
	if len(r.Password) < MinPasswordLength {
		return apperr.Validation("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}
