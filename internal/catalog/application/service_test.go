package application

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zishan044/ecommerce-app/internal/catalog/domain"
	"github.com/zishan044/ecommerce-app/pkg/apperr"
)

type memRepo struct {
	mu       sync.Mutex
	products map[string]domain.Product
	gets     atomic.Int32
	delay    time.Duration
}

func newMemRepo() *memRepo { return &memRepo{products: map[string]domain.Product{}} }

func (m *memRepo) List(_ context.Context, skip, limit int) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Product
	for _, p := range m.products {
		out = append(out, p)
	}
	if skip >= len(out) {
		return nil, nil
	}
	out = out[skip:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memRepo) Get(_ context.Context, id string) (domain.Product, error) {
	m.gets.Add(1)
	time.Sleep(m.delay)
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return domain.Product{}, apperr.ErrNotFound
	}
	return p, nil
}

func (m *memRepo) Create(_ context.Context, p domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
	return nil
}

func (m *memRepo) Update(_ context.Context, id string, patch domain.Patch) (domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return domain.Product{}, apperr.ErrNotFound
	}
	p = patch.Apply(p)
	m.products[id] = p
	return p, nil
}

func (m *memRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[id]; !ok {
		return apperr.ErrNotFound
	}
	delete(m.products, id)
	return nil
}

type memCache struct {
	mu      sync.Mutex
	entries map[string]domain.Product
	failGet bool
}

func newMemCache() *memCache { return &memCache{entries: map[string]domain.Product{}} }

func (c *memCache) Get(_ context.Context, id string) (domain.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failGet {
		return domain.Product{}, errors.New("redis down")
	}
	p, ok := c.entries[id]
	if !ok {
		return domain.Product{}, ErrCacheMiss
	}
	return p, nil
}

func (c *memCache) Set(_ context.Context, p domain.Product) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[p.ID] = p
	return nil
}

func (c *memCache) Delete(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
	return nil
}

func newTestService() (*Service, *memRepo, *memCache) {
	repo, cache := newMemRepo(), newMemCache()
	return NewService(slog.New(slog.NewTextHandler(io.Discard, nil)), repo, cache), repo, cache
}

func TestCreateAndGetUsesCache(t *testing.T) {
	ctx := context.Background()
	svc, repo, cache := newTestService()

	p, err := svc.Create(ctx, domain.Product{Name: " Mug ", PriceCents: 1250, Stock: 3})
	require.NoError(t, err)
	assert.Equal(t, "Mug", p.Name)
	assert.NotEmpty(t, p.ID)

	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1250), got.PriceCents)
	assert.Contains(t, cache.entries, p.ID)

	_, err = svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int32(1), repo.gets.Load())
}

func TestGetFallsBackWhenCacheErrors(t *testing.T) {
	ctx := context.Background()
	svc, _, cache := newTestService()
	p, err := svc.Create(ctx, domain.Product{Name: "Mug", PriceCents: 100})
	require.NoError(t, err)

	cache.failGet = true
	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
}

func TestGetCollapsesConcurrentMisses(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTestService()
	p, err := svc.Create(ctx, domain.Product{Name: "Mug", PriceCents: 100})
	require.NoError(t, err)
	repo.delay = 50 * time.Millisecond

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Get(ctx, p.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), repo.gets.Load())
}

func TestGetUnknownAndMalformedIDs(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.Get(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = svc.Get(context.Background(), "6f1c1f1e-8f5e-4a8e-9c36-5a0f7d3c2b11")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdateInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	svc, _, cache := newTestService()
	p, err := svc.Create(ctx, domain.Product{Name: "Mug", PriceCents: 100, Stock: 1})
	require.NoError(t, err)
	_, err = svc.Get(ctx, p.ID)
	require.NoError(t, err)

	price := int64(900)
	updated, err := svc.Update(ctx, p.ID, domain.Patch{PriceCents: &price})
	require.NoError(t, err)
	assert.Equal(t, int64(900), updated.PriceCents)
	assert.Equal(t, "Mug", updated.Name)
	assert.NotContains(t, cache.entries, p.ID)

	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(900), got.PriceCents)
}

func TestDeleteInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	svc, _, cache := newTestService()
	p, err := svc.Create(ctx, domain.Product{Name: "Mug"})
	require.NoError(t, err)
	_, err = svc.Get(ctx, p.ID)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, p.ID))
	assert.NotContains(t, cache.entries, p.ID)
	_, err = svc.Get(ctx, p.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestValidation(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()

	_, err := svc.Create(ctx, domain.Product{Name: "", PriceCents: 1})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.Create(ctx, domain.Product{Name: "x", Stock: -1})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	neg := -5
	_, err = svc.Update(ctx, "6f1c1f1e-8f5e-4a8e-9c36-5a0f7d3c2b11", domain.Patch{Stock: &neg})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.List(ctx, -1, 10)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestListClampsLimit(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()
	for i := 0; i < 3; i++ {
		_, err := svc.Create(ctx, domain.Product{Name: "p"})
		require.NoError(t, err)
	}
	got, err := svc.List(ctx, 0, 1000)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	got, err = svc.List(ctx, 1, 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
