package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/zishan044/ecommerce-app/internal/catalog/domain"
	"github.com/zishan044/ecommerce-app/pkg/apperr"
)

const (
	DefaultLimit = 100
	MaxLimit     = 100
)

type Service struct {
	log   *slog.Logger
	repo  ProductRepository
	cache ProductCache
	sfg   singleflight.Group
	now   func() time.Time
}

func NewService(log *slog.Logger, repo ProductRepository, cache ProductCache) *Service {
	return &Service{log: log, repo: repo, cache: cache, now: time.Now}
}

func (s *Service) List(ctx context.Context, skip, limit int) ([]domain.Product, error) {
	if skip < 0 {
		return nil, apperr.Validation("skip must not be negative")
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return s.repo.List(ctx, skip, limit)
}

// Get reads through the cache. Concurrent misses for one id share a single load.
func (s *Service) Get(ctx context.Context, id string) (domain.Product, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.Product{}, fmt.Errorf("product %s: %w", id, apperr.ErrNotFound)
	}
	v, err, _ := s.sfg.Do(id, func() (any, error) {
		p, err := s.cache.Get(ctx, id)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			s.log.Warn("product cache get failed", "product_id", id, "err", err)
		}

		p, err = s.repo.Get(ctx, id)
		if err != nil {
			return domain.Product{}, err
		}
		if err := s.cache.Set(ctx, p); err != nil {
			s.log.Warn("product cache set failed", "product_id", id, "err", err)
		}
		return p, nil
	})
	if err != nil {
		return domain.Product{}, err
	}
	return v.(domain.Product), nil
}

func (s *Service) Create(ctx context.Context, p domain.Product) (domain.Product, error) {
	p.Name = strings.TrimSpace(p.Name)
	if err := p.Validate(); err != nil {
		return domain.Product{}, err
	}
	now := s.now().UTC()
	p.ID = uuid.NewString()
	p.CreatedAt, p.UpdatedAt = now, now
	if err := s.repo.Create(ctx, p); err != nil {
		return domain.Product{}, fmt.Errorf("create product: %w", err)
	}
	s.log.Info("product created", "product_id", p.ID)
	return p, nil
}

func (s *Service) Update(ctx context.Context, id string, patch domain.Patch) (domain.Product, error) {
	if err := patch.Validate(); err != nil {
		return domain.Product{}, err
	}
	if _, err := uuid.Parse(id); err != nil {
		return domain.Product{}, fmt.Errorf("product %s: %w", id, apperr.ErrNotFound)
	}
	p, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return domain.Product{}, err
	}
	s.invalidate(ctx, id)
	return p, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("product %s: %w", id, apperr.ErrNotFound)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *Service) invalidate(ctx context.Context, id string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, id); err != nil {
		s.log.Warn("product cache invalidate failed", "product_id", id, "err", err)
	}
}
