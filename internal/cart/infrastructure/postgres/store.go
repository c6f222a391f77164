package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/zishan044/ecommerce-app/internal/cart/application"
	"github.com/zishan044/ecommerce-app/internal/cart/domain"
	"github.com/zishan044/ecommerce-app/internal/platform/postgres"
	"github.com/zishan044/ecommerce-app/pkg/apperr"
)

type Store struct {
	log *slog.Logger
	db  postgres.DB
}

func NewStore(log *slog.Logger, db postgres.DB) *Store {
	return &Store{log: log, db: db}
}

func (s *Store) Get(ctx context.Context, userID string) (domain.Cart, error) {
	rows, err := s.db.Query(ctx, `
		SELECT ci.product_id::text, p.name, p.price_cents, p.stock, ci.quantity
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.user_id = $1
		ORDER BY ci.added_at, ci.product_id
	`, userID)
	if err != nil {
		return domain.Cart{}, err
	}
	defer rows.Close()

	c := domain.Cart{UserID: userID}
	for rows.Next() {
		var l domain.Line
		if err := rows.Scan(&l.ProductID, &l.Name, &l.UnitPriceCents, &l.Stock, &l.Quantity); err != nil {
			return domain.Cart{}, err
		}
		c.Lines = append(c.Lines, l)
	}
	return c, rows.Err()
}

func (s *Store) Clear(ctx context.Context, userID string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID)
	return err
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx application.CartTx) error) error {
	return postgres.InTx(ctx, s.db, func(tx pgx.Tx) error {
		return fn(ctx, cartTx{tx: tx})
	})
}

type cartTx struct {
	tx pgx.Tx
}

// LockCart upserts the carts row, which locks it until commit. Order
// creation locks the same row before touching products.
func (t cartTx) LockCart(ctx context.Context, userID string) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO carts (user_id) VALUES ($1)
		ON CONFLICT (user_id) DO UPDATE SET updated_at = now()`, userID)
	return err
}

func (t cartTx) ProductStock(ctx context.Context, productID string) (int, error) {
	var stock int
	err := t.tx.QueryRow(ctx, `SELECT stock FROM products WHERE id = $1 FOR SHARE`, productID).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("product %s: %w", productID, apperr.ErrNotFound)
	}
	return stock, err
}

func (t cartTx) LineQuantity(ctx context.Context, userID, productID string) (int, bool, error) {
	var qty int
	err := t.tx.QueryRow(ctx, `SELECT quantity FROM cart_items WHERE user_id = $1 AND product_id = $2 FOR UPDATE`,
		userID, productID).Scan(&qty)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return qty, true, nil
}

func (t cartTx) UpsertLine(ctx context.Context, userID, productID string, qty int) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO cart_items (user_id, product_id, quantity) VALUES ($1, $2, $3)
		ON CONFLICT (user_id, product_id) DO UPDATE SET quantity = EXCLUDED.quantity`, userID, productID, qty)
	return err
}

func (t cartTx) DeleteLine(ctx context.Context, userID, productID string) (bool, error) {
	ct, err := t.tx.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2`, userID, productID)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}
