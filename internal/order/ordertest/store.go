// Package ordertest provides an in-memory order store for tests. Transactions
// are serialized and roll back by restoring a snapshot.
package ordertest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/zishan044/ecommerce-app/internal/order/application"
	"github.com/zishan044/ecommerce-app/internal/order/domain"
	"github.com/zishan044/ecommerce-app/pkg/apperr"
	"github.com/zishan044/ecommerce-app/pkg/outbox"
)

type Product struct {
	Name       string
	PriceCents int64
	Stock      int
}

type state struct {
	products map[string]Product
	carts    map[string]map[string]int
	orders   map[string]domain.Order
	events   map[string]string
	outbox   []outbox.Message
}

func (s state) clone() state {
	c := state{
		products: make(map[string]Product, len(s.products)),
		carts:    make(map[string]map[string]int, len(s.carts)),
		orders:   make(map[string]domain.Order, len(s.orders)),
		events:   make(map[string]string, len(s.events)),
		outbox:   append([]outbox.Message(nil), s.outbox...),
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for u, lines := range s.carts {
		c.carts[u] = make(map[string]int, len(lines))
		for p, q := range lines {
			c.carts[u][p] = q
		}
	}
	for k, v := range s.orders {
		v.Items = append([]domain.Item(nil), v.Items...)
		c.orders[k] = v
	}
	for k, v := range s.events {
		c.events[k] = v
	}
	return c
}

type Store struct {
	mu sync.Mutex
	st state
	// FailOn makes the named Tx method return an error once.
	FailOn string
}

func NewStore() *Store {
	return &Store{st: state{
		products: map[string]Product{},
		carts:    map[string]map[string]int{},
		orders:   map[string]domain.Order{},
		events:   map[string]string{},
	}}
}

func (s *Store) AddProduct(id string, p Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.products[id] = p
}

func (s *Store) AddToCart(userID, productID string, qty int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.st.carts[userID] == nil {
		s.st.carts[userID] = map[string]int{}
	}
	s.st.carts[userID][productID] += qty
}

func (s *Store) Stock(productID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.products[productID].Stock
}

func (s *Store) CartSize(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.carts[userID])
}

func (s *Store) Outbox() []outbox.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]outbox.Message(nil), s.st.outbox...)
}

func (s *Store) PaymentEvents() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.st.events))
	for k, v := range s.st.events {
		out[k] = v
	}
	return out
}

func (s *Store) Orders() []domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Order, 0, len(s.st.orders))
	for _, o := range s.st.orders {
		out = append(out, o)
	}
	return out
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx application.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.st.clone()
	if err := fn(ctx, &tx{s: s}); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

func (s *Store) Get(_ context.Context, id string) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.st.orders[id]
	if !ok {
		return domain.Order{}, fmt.Errorf("order %s: %w", id, apperr.ErrNotFound)
	}
	return o, nil
}

func (s *Store) ListForUser(_ context.Context, userID string, skip, limit int) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Order
	for _, o := range s.st.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if skip >= len(out) {
		return nil, nil
	}
	out = out[skip:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type tx struct {
	s *Store
}

func (t *tx) fail(op string) error {
	if t.s.FailOn == op {
		t.s.FailOn = ""
		return fmt.Errorf("%s: injected failure", op)
	}
	return nil
}

func (t *tx) LockCart(_ context.Context, userID string) ([]application.CartLine, error) {
	if err := t.fail("LockCart"); err != nil {
		return nil, err
	}
	var lines []application.CartLine
	for pid, q := range t.s.st.carts[userID] {
		p := t.s.st.products[pid]
		lines = append(lines, application.CartLine{ProductID: pid, ProductName: p.Name, UnitPriceCents: p.PriceCents, Quantity: q})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
	return lines, nil
}

func (t *tx) ClearCart(_ context.Context, userID string) error {
	if err := t.fail("ClearCart"); err != nil {
		return err
	}
	delete(t.s.st.carts, userID)
	return nil
}

func (t *tx) DecrementStock(_ context.Context, productID string, qty int) (bool, int, error) {
	if err := t.fail("DecrementStock"); err != nil {
		return false, 0, err
	}
	p, ok := t.s.st.products[productID]
	if !ok || p.Stock < qty {
		return false, p.Stock, nil
	}
	p.Stock -= qty
	t.s.st.products[productID] = p
	return true, p.Stock, nil
}

func (t *tx) RestoreStock(_ context.Context, items []domain.Item) error {
	if err := t.fail("RestoreStock"); err != nil {
		return err
	}
	for _, it := range items {
		p, ok := t.s.st.products[it.ProductID]
		if !ok {
			continue
		}
		p.Stock += it.Quantity
		t.s.st.products[it.ProductID] = p
	}
	return nil
}

func (t *tx) InsertOrder(_ context.Context, o domain.Order) error {
	if err := t.fail("InsertOrder"); err != nil {
		return err
	}
	t.s.st.orders[o.ID] = o
	return nil
}

func (t *tx) LockOrder(_ context.Context, id string) (domain.Order, error) {
	o, ok := t.s.st.orders[id]
	if !ok {
		return domain.Order{}, fmt.Errorf("order %s: %w", id, apperr.ErrNotFound)
	}
	return o, nil
}

func (t *tx) LockOrderBySession(_ context.Context, sessionID string) (domain.Order, error) {
	for _, o := range t.s.st.orders {
		if o.CheckoutSessionID == sessionID {
			return o, nil
		}
	}
	return domain.Order{}, fmt.Errorf("session %s: %w", sessionID, apperr.ErrNotFound)
}

func (t *tx) UpdateStatus(_ context.Context, id string, from, to domain.Status) (bool, error) {
	if err := t.fail("UpdateStatus"); err != nil {
		return false, err
	}
	o, ok := t.s.st.orders[id]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	t.s.st.orders[id] = o
	return true, nil
}

func (t *tx) SetCheckoutSession(_ context.Context, id, sessionID string) error {
	o := t.s.st.orders[id]
	o.CheckoutSessionID = sessionID
	t.s.st.orders[id] = o
	return nil
}

func (t *tx) SetPaymentRef(_ context.Context, id, ref string) error {
	o := t.s.st.orders[id]
	o.PaymentRef = ref
	t.s.st.orders[id] = o
	return nil
}

func (t *tx) RecordPaymentEvent(_ context.Context, eventID, orderID, _ string) (bool, error) {
	if err := t.fail("RecordPaymentEvent"); err != nil {
		return false, err
	}
	if _, ok := t.s.st.events[eventID]; ok {
		return false, nil
	}
	t.s.st.events[eventID] = orderID
	return true, nil
}

func (t *tx) Enqueue(_ context.Context, msg outbox.Message) error {
	if err := t.fail("Enqueue"); err != nil {
		return err
	}
	t.s.st.outbox = append(t.s.st.outbox, msg)
	return nil
}
