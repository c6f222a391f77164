package application

import (
	"context"

	"github.com/zishan044/ecommerce-app/internal/cart/domain"
)

type CartStore interface {
	Get(ctx context.Context, userID string) (domain.Cart, error)
	Clear(ctx context.Context, userID string) error
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx CartTx) error) error
}

// CartTx is a unit of work over one user's cart lines. LockCart must run
// first so cart mutations and order creation for a user take locks in the
// same order.
type CartTx interface {
	// LockCart creates the user's cart if missing and holds its row lock.
	LockCart(ctx context.Context, userID string) error
	// ProductStock returns apperr.ErrNotFound for unknown products.
	ProductStock(ctx context.Context, productID string) (int, error)
	LineQuantity(ctx context.Context, userID, productID string) (qty int, ok bool, err error)
	UpsertLine(ctx context.Context, userID, productID string, qty int) error
	DeleteLine(ctx context.Context, userID, productID string) (bool, error)
}
