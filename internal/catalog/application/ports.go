package application

import (
	"context"
	"errors"

	"github.com/zishan044/ecommerce-app/internal/catalog/domain"
)

var ErrCacheMiss = errors.New("cache miss")

type ProductRepository interface {
	List(ctx context.Context, skip, limit int) ([]domain.Product, error)
	Get(ctx context.Context, id string) (domain.Product, error)
	Create(ctx context.Context, p domain.Product) error
	Update(ctx context.Context, id string, patch domain.Patch) (domain.Product, error)
	Delete(ctx context.Context, id string) error
}

type ProductCache interface {
	Get(ctx context.Context, id string) (domain.Product, error)
	Set(ctx context.Context, p domain.Product) error
	Delete(ctx context.Context, id string) error
}
