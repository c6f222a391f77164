package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/zishan044/ecommerce-app/internal/platform/postgres"
	"github.com/zishan044/ecommerce-app/internal/user/domain"
	"github.com/zishan044/ecommerce-app/pkg/apperr"
)

const userColumns = `id::text, full_name, email, password_hash, COALESCE(contact, ''), COALESCE(address, ''),
	COALESCE(avatar_url, ''), is_active, role, created_at`

type Repository struct {
	log *slog.Logger
	db  postgres.DB
}

func NewRepository(log *slog.Logger, db postgres.DB) *Repository {
	return &Repository{log: log, db: db}
}

func (r *Repository) Create(ctx context.Context, u domain.User) error {
	_, err := r.db.Exec(ctx, `INSERT INTO users (id, full_name, email, password_hash, contact, address, avatar_url, is_active, role, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), $8, $9, $10)`,
		u.ID, u.FullName, u.Email, u.PasswordHash, u.Contact, u.Address, u.AvatarURL, u.IsActive, u.Role, u.CreatedAt)
	if postgres.IsUniqueViolation(err) {
		return fmt.Errorf("%w: email already registered", apperr.ErrConflict)
	}
	return err
}

func (r *Repository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *Repository) GetByID(ctx context.Context, id string) (domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *Repository) getOne(ctx context.Context, query string, arg string) (domain.User, error) {
	var u domain.User
	err := r.db.QueryRow(ctx, query, arg).Scan(&u.ID, &u.FullName, &u.Email, &u.PasswordHash,
		&u.Contact, &u.Address, &u.AvatarURL, &u.IsActive, &u.Role, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, fmt.Errorf("user: %w", apperr.ErrNotFound)
	}
	if err != nil {
		return domain.User{}, err
	}
	return u, nil
}
