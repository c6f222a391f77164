package application

import (
	"context"
	"time"

	"github.com/zishan044/ecommerce-app/internal/auth"
	"github.com/zishan044/ecommerce-app/internal/user/domain"
)

type UserRepository interface {
	// Create returns apperr.ErrConflict when the email is taken.
	Create(ctx context.Context, u domain.User) error
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetByID(ctx context.Context, id string) (domain.User, error)
}

type TokenIssuer interface {
	Issue(id auth.Identity) (string, time.Time, error)
}
