package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/zishan044/ecommerce-app/internal/cart/domain"
	"github.com/zishan044/ecommerce-app/pkg/apperr"
)

type Service struct {
	log   *slog.Logger
	store CartStore
}

func NewService(log *slog.Logger, store CartStore) *Service {
	return &Service{log: log, store: store}
}

func (s *Service) Get(ctx context.Context, userID string) (domain.Cart, error) {
	return s.store.Get(ctx, userID)
}

// AddItem adds quantity to the user's line for productID, creating it if needed.
func (s *Service) AddItem(ctx context.Context, userID, productID string, quantity int) error {
	if quantity <= 0 {
		return apperr.Validation("quantity must be positive, got %d", quantity)
	}
	if err := checkProductID(productID); err != nil {
		return err
	}
	return s.store.WithinTx(ctx, func(ctx context.Context, tx CartTx) error {
		if err := tx.LockCart(ctx, userID); err != nil {
			return err
		}
		stock, err := tx.ProductStock(ctx, productID)
		if err != nil {
			return err
		}
		existing, _, err := tx.LineQuantity(ctx, userID, productID)
		if err != nil {
			return err
		}
		want := existing + quantity
		if want > stock {
			return &apperr.InsufficientStockError{ProductID: productID, Requested: want, Available: stock}
		}
		return tx.UpsertLine(ctx, userID, productID, want)
	})
}

// UpdateQuantity sets the line quantity. Zero removes the line.
func (s *Service) UpdateQuantity(ctx context.Context, userID, productID string, quantity int) error {
	if quantity < 0 {
		return apperr.Validation("quantity must not be negative, got %d", quantity)
	}
	if err := checkProductID(productID); err != nil {
		return err
	}
	return s.store.WithinTx(ctx, func(ctx context.Context, tx CartTx) error {
		if err := tx.LockCart(ctx, userID); err != nil {
			return err
		}
		_, ok, err := tx.LineQuantity(ctx, userID, productID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("cart line %s: %w", productID, apperr.ErrNotFound)
		}
		if quantity == 0 {
			_, err := tx.DeleteLine(ctx, userID, productID)
			return err
		}
		stock, err := tx.ProductStock(ctx, productID)
		if err != nil {
			return err
		}
		if quantity > stock {
			return &apperr.InsufficientStockError{ProductID: productID, Requested: quantity, Available: stock}
		}
		return tx.UpsertLine(ctx, userID, productID, quantity)
	})
}

func (s *Service) RemoveItem(ctx context.Context, userID, productID string) error {
	if err := checkProductID(productID); err != nil {
		return err
	}
	return s.store.WithinTx(ctx, func(ctx context.Context, tx CartTx) error {
		if err := tx.LockCart(ctx, userID); err != nil {
			return err
		}
		ok, err := tx.DeleteLine(ctx, userID, productID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("cart line %s: %w", productID, apperr.ErrNotFound)
		}
		return nil
	})
}

func (s *Service) Clear(ctx context.Context, userID string) error {
	if err := s.store.Clear(ctx, userID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	s.log.Info("cart cleared", "user_id", userID)
	return nil
}

func checkProductID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("product %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}
