package application

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zishan044/ecommerce-app/internal/cart/domain"
	"github.com/zishan044/ecommerce-app/pkg/apperr"
)

const (
	mug = "11111111-1111-1111-1111-111111111111"
	pen = "22222222-2222-2222-2222-222222222222"
)

type product struct {
	name  string
	price int64
	stock int
}

type memStore struct {
	mu       sync.Mutex
	products map[string]product
	lines    map[string]map[string]int
}

func newMemStore() *memStore {
	return &memStore{
		products: map[string]product{
			mug: {name: "Mug", price: 1250, stock: 3},
			pen: {name: "Pen", price: 199, stock: 0},
		},
		lines: map[string]map[string]int{},
	}
}

func (m *memStore) Get(_ context.Context, userID string) (domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := domain.Cart{UserID: userID}
	for pid, q := range m.lines[userID] {
		p := m.products[pid]
		c.Lines = append(c.Lines, domain.Line{ProductID: pid, Name: p.name, UnitPriceCents: p.price, Quantity: q, Stock: p.stock})
	}
	return c, nil
}

func (m *memStore) Clear(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.lines, userID)
	return nil
}

func (m *memStore) WithinTx(ctx context.Context, fn func(context.Context, CartTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := map[string]map[string]int{}
	for u, ls := range m.lines {
		snapshot[u] = map[string]int{}
		for p, q := range ls {
			snapshot[u][p] = q
		}
	}
	if err := fn(ctx, memTx{m: m, locked: new(string)}); err != nil {
		m.lines = snapshot
		return err
	}
	return nil
}

// memTx rejects line and stock access until LockCart has run, mirroring
// the lock order the postgres store relies on.
type memTx struct {
	m      *memStore
	locked *string
}

var errCartNotLocked = errors.New("cart not locked")

func (t memTx) LockCart(_ context.Context, userID string) error {
	*t.locked = userID
	return nil
}

func (t memTx) ProductStock(_ context.Context, productID string) (int, error) {
	if *t.locked == "" {
		return 0, errCartNotLocked
	}
	p, ok := t.m.products[productID]
	if !ok {
		return 0, apperr.ErrNotFound
	}
	return p.stock, nil
}

func (t memTx) LineQuantity(_ context.Context, userID, productID string) (int, bool, error) {
	if *t.locked != userID {
		return 0, false, errCartNotLocked
	}
	q, ok := t.m.lines[userID][productID]
	return q, ok, nil
}

func (t memTx) UpsertLine(_ context.Context, userID, productID string, qty int) error {
	if *t.locked != userID {
		return errCartNotLocked
	}
	if t.m.lines[userID] == nil {
		t.m.lines[userID] = map[string]int{}
	}
	t.m.lines[userID][productID] = qty
	return nil
}

func (t memTx) DeleteLine(_ context.Context, userID, productID string) (bool, error) {
	if *t.locked != userID {
		return false, errCartNotLocked
	}
	_, ok := t.m.lines[userID][productID]
	delete(t.m.lines[userID], productID)
	return ok, nil
}

func newTestService() (*Service, *memStore) {
	store := newMemStore()
	return NewService(slog.New(slog.NewTextHandler(io.Discard, nil)), store), store
}

func TestAddItemIncrementsExistingLine(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	require.NoError(t, svc.AddItem(ctx, "u1", mug, 1))
	require.NoError(t, svc.AddItem(ctx, "u1", mug, 2))

	c, err := svc.Get(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, c.Lines, 1)
	assert.Equal(t, 3, c.Lines[0].Quantity)
	assert.Equal(t, int64(3750), c.SubtotalCents())
}

func TestAddItemChecksCombinedQuantityAgainstStock(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService()

	require.NoError(t, svc.AddItem(ctx, "u1", mug, 2))
	err := svc.AddItem(ctx, "u1", mug, 2)

	var stockErr *apperr.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, mug, stockErr.ProductID)
	assert.Equal(t, 4, stockErr.Requested)
	assert.Equal(t, 3, stockErr.Available)
	assert.Equal(t, 2, store.lines["u1"][mug])
}

func TestAddItemErrors(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	assert.ErrorIs(t, svc.AddItem(ctx, "u1", mug, 0), apperr.ErrValidation)
	assert.ErrorIs(t, svc.AddItem(ctx, "u1", "33333333-3333-3333-3333-333333333333", 1), apperr.ErrNotFound)
	assert.ErrorIs(t, svc.AddItem(ctx, "u1", "bogus", 1), apperr.ErrNotFound)
	assert.ErrorIs(t, svc.AddItem(ctx, "u1", pen, 1), apperr.ErrInsufficientStock)
}

func TestUpdateQuantity(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService()
	require.NoError(t, svc.AddItem(ctx, "u1", mug, 1))

	require.NoError(t, svc.UpdateQuantity(ctx, "u1", mug, 3))
	assert.Equal(t, 3, store.lines["u1"][mug])

	assert.ErrorIs(t, svc.UpdateQuantity(ctx, "u1", mug, 4), apperr.ErrInsufficientStock)
	assert.ErrorIs(t, svc.UpdateQuantity(ctx, "u1", mug, -1), apperr.ErrValidation)
	assert.ErrorIs(t, svc.UpdateQuantity(ctx, "u1", pen, 1), apperr.ErrNotFound)

	require.NoError(t, svc.UpdateQuantity(ctx, "u1", mug, 0))
	c, err := svc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
}

func TestRemoveAndClear(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()
	require.NoError(t, svc.AddItem(ctx, "u1", mug, 1))

	assert.ErrorIs(t, svc.RemoveItem(ctx, "u1", pen), apperr.ErrNotFound)
	require.NoError(t, svc.RemoveItem(ctx, "u1", mug))

	require.NoError(t, svc.AddItem(ctx, "u1", mug, 1))
	require.NoError(t, svc.Clear(ctx, "u1"))
	c, err := svc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
	assert.Zero(t, c.SubtotalCents())
}

func TestCartsAreIsolatedPerUser(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()
	require.NoError(t, svc.AddItem(ctx, "u1", mug, 1))

	c, err := svc.Get(ctx, "u2")
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
}
