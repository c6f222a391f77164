package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/zishan044/ecommerce-app/internal/order/application"
	"github.com/zishan044/ecommerce-app/internal/order/domain"
	"github.com/zishan044/ecommerce-app/internal/platform/postgres"
	"github.com/zishan044/ecommerce-app/pkg/apperr"
	"github.com/zishan044/ecommerce-app/pkg/outbox"
)

const orderColumns = `id::text, user_id::text, status, total_cents, currency,
	COALESCE(checkout_session_id, ''), COALESCE(payment_ref, ''), created_at, updated_at`

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type Repository struct {
	log *slog.Logger
	db  postgres.DB
}

func NewRepository(log *slog.Logger, db postgres.DB) *Repository {
	return &Repository{log: log, db: db}
}

func (r *Repository) WithinTx(ctx context.Context, fn func(ctx context.Context, tx application.Tx) error) error {
	return postgres.InTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &orderTx{tx: tx})
	})
}

func (r *Repository) Get(ctx context.Context, id string) (domain.Order, error) {
	o, err := scanOrder(r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, fmt.Errorf("order %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return domain.Order{}, err
	}
	if o.Items, err = loadItems(ctx, r.db, o.ID); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func (r *Repository) ListForUser(ctx context.Context, userID string, skip, limit int) ([]domain.Order, error) {
	rows, err := r.db.Query(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id = $1
		ORDER BY created_at DESC, id OFFSET $2 LIMIT $3`, userID, skip, limit)
	if err != nil {
		return nil, err
	}
	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		orders = append(orders, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range orders {
		if orders[i].Items, err = loadItems(ctx, r.db, orders[i].ID); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

type orderTx struct {
	tx pgx.Tx
}

// LockCart locks the carts row, then the cart lines in product order. Cart
// mutations take the carts row first too, so neither side can wait on the
// other while holding product locks.
func (t *orderTx) LockCart(ctx context.Context, userID string) ([]application.CartLine, error) {
	var locked string
	err := t.tx.QueryRow(ctx, `SELECT user_id::text FROM carts WHERE user_id = $1 FOR UPDATE`, userID).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := t.tx.Query(ctx, `
		SELECT ci.product_id::text, p.name, p.price_cents, ci.quantity
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.user_id = $1
		ORDER BY ci.product_id
		FOR UPDATE OF ci
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []application.CartLine
	for rows.Next() {
		var l application.CartLine
		if err := rows.Scan(&l.ProductID, &l.ProductName, &l.UnitPriceCents, &l.Quantity); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (t *orderTx) ClearCart(ctx context.Context, userID string) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID)
	return err
}

func (t *orderTx) DecrementStock(ctx context.Context, productID string, qty int) (bool, int, error) {
	var left int
	err := t.tx.QueryRow(ctx, `UPDATE products SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND stock >= $2 RETURNING stock`, productID, qty).Scan(&left)
	if err == nil {
		return true, left, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, 0, err
	}

	var available int
	err = t.tx.QueryRow(ctx, `SELECT stock FROM products WHERE id = $1`, productID).Scan(&available)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return false, 0, err
	}
	return false, available, nil
}

func (t *orderTx) RestoreStock(ctx context.Context, items []domain.Item) error {
	sorted := append([]domain.Item(nil), items...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ProductID < sorted[j].ProductID })
	for _, it := range sorted {
		if _, err := t.tx.Exec(ctx, `UPDATE products SET stock = stock + $2, updated_at = now() WHERE id = $1`,
			it.ProductID, it.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func (t *orderTx) InsertOrder(ctx context.Context, o domain.Order) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO orders (id, user_id, status, total_cents, currency, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		o.ID, o.UserID, string(o.Status), o.TotalCents, o.Currency, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return err
	}
	for _, it := range o.Items {
		_, err := t.tx.Exec(ctx, `INSERT INTO order_items (order_id, product_id, product_name, quantity, unit_price_cents)
			VALUES ($1, $2, $3, $4, $5)`, o.ID, it.ProductID, it.ProductName, it.Quantity, it.UnitPriceCents)
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *orderTx) LockOrder(ctx context.Context, id string) (domain.Order, error) {
	return t.lockOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
}

func (t *orderTx) LockOrderBySession(ctx context.Context, sessionID string) (domain.Order, error) {
	return t.lockOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE checkout_session_id = $1 FOR UPDATE`, sessionID)
}

func (t *orderTx) lockOne(ctx context.Context, query, arg string) (domain.Order, error) {
	o, err := scanOrder(t.tx.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, fmt.Errorf("order %s: %w", arg, apperr.ErrNotFound)
	}
	if err != nil {
		return domain.Order{}, err
	}
	if o.Items, err = loadItems(ctx, t.tx, o.ID); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func (t *orderTx) UpdateStatus(ctx context.Context, id string, from, to domain.Status) (bool, error) {
	ct, err := t.tx.Exec(ctx, `UPDATE orders SET status = $3, updated_at = now() WHERE id = $1 AND status = $2`,
		id, string(from), string(to))
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func (t *orderTx) SetCheckoutSession(ctx context.Context, id, sessionID string) error {
	_, err := t.tx.Exec(ctx, `UPDATE orders SET checkout_session_id = $2, updated_at = now() WHERE id = $1`, id, sessionID)
	return err
}

func (t *orderTx) SetPaymentRef(ctx context.Context, id, ref string) error {
	_, err := t.tx.Exec(ctx, `UPDATE orders SET payment_ref = $2, updated_at = now() WHERE id = $1`, id, ref)
	return err
}

func (t *orderTx) RecordPaymentEvent(ctx context.Context, eventID, orderID, kind string) (bool, error) {
	ct, err := t.tx.Exec(ctx, `INSERT INTO payment_events (event_id, order_id, kind) VALUES ($1, $2, $3)
		ON CONFLICT (event_id) DO NOTHING`, eventID, orderID, kind)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func (t *orderTx) Enqueue(ctx context.Context, msg outbox.Message) error {
	headers, err := json.Marshal(msg.Headers)
	if err != nil {
		return fmt.Errorf("marshal headers: %w", err)
	}
	_, err = t.tx.Exec(ctx, `INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, headers, traceparent, status)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending')`,
		msg.AggregateType, msg.AggregateID, msg.Type, msg.Payload, headers, msg.Traceparent)
	return err
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var (
		o      domain.Order
		status string
	)
	err := row.Scan(&o.ID, &o.UserID, &status, &o.TotalCents, &o.Currency,
		&o.CheckoutSessionID, &o.PaymentRef, &o.CreatedAt, &o.UpdatedAt)
	o.Status = domain.Status(status)
	return o, err
}

func loadItems(ctx context.Context, q querier, orderID string) ([]domain.Item, error) {
	rows, err := q.Query(ctx, `SELECT product_id::text, product_name, quantity, unit_price_cents
		FROM order_items WHERE order_id = $1 ORDER BY product_id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.Item
	for rows.Next() {
		var it domain.Item
		if err := rows.Scan(&it.ProductID, &it.ProductName, &it.Quantity, &it.UnitPriceCents); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
