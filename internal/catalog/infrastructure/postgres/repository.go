package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/zishan044/ecommerce-app/internal/catalog/domain"
	"github.com/zishan044/ecommerce-app/internal/platform/postgres"
	"github.com/zishan044/ecommerce-app/pkg/apperr"
)

const productColumns = `id::text, name, COALESCE(description, ''), price_cents, stock, COALESCE(category, ''),
	COALESCE(media_url, ''), COALESCE(rating, 0), COALESCE(num_reviews, 0), created_at, updated_at`

type Repository struct {
	log *slog.Logger
	db  postgres.DB
}

func NewRepository(log *slog.Logger, db postgres.DB) *Repository {
	return &Repository{log: log, db: db}
}

func (r *Repository) List(ctx context.Context, skip, limit int) ([]domain.Product, error) {
	rows, err := r.db.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY created_at, id OFFSET $1 LIMIT $2`, skip, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repository) Get(ctx context.Context, id string) (domain.Product, error) {
	p, err := scanProduct(r.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Product{}, fmt.Errorf("product %s: %w", id, apperr.ErrNotFound)
	}
	return p, err
}

func (r *Repository) Create(ctx context.Context, p domain.Product) error {
	_, err := r.db.Exec(ctx, `INSERT INTO products (id, name, description, price_cents, stock, category, media_url, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8, $9)`,
		p.ID, p.Name, p.Description, p.PriceCents, p.Stock, p.Category, p.MediaURL, p.CreatedAt, p.UpdatedAt)
	return err
}

func (r *Repository) Update(ctx context.Context, id string, patch domain.Patch) (domain.Product, error) {
	p, err := scanProduct(r.db.QueryRow(ctx, `UPDATE products SET
			name = COALESCE($2, name),
			description = COALESCE($3, description),
			price_cents = COALESCE($4, price_cents),
			stock = COALESCE($5, stock),
			category = COALESCE($6, category),
			media_url = COALESCE($7, media_url),
			updated_at = now()
		WHERE id = $1
		RETURNING `+productColumns,
		id, patch.Name, patch.Description, patch.PriceCents, patch.Stock, patch.Category, patch.MediaURL))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Product{}, fmt.Errorf("product %s: %w", id, apperr.ErrNotFound)
	}
	return p, err
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	ct, err := r.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("product %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

func scanProduct(row pgx.Row) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.PriceCents, &p.Stock, &p.Category,
		&p.MediaURL, &p.Rating, &p.NumReviews, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}
