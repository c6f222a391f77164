package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/zishan044/ecommerce-app/internal/order/domain"
	paymentdomain "github.com/zishan044/ecommerce-app/internal/payment/domain"
	"github.com/zishan044/ecommerce-app/pkg/apperr"
	"github.com/zishan044/ecommerce-app/pkg/outbox"
	"github.com/zishan044/ecommerce-app/pkg/tracing"
)

const (
	DefaultLimit = 100
	MaxLimit     = 100
)

type Service struct {
	log      *slog.Logger
	store    Store
	gateway  PaymentGateway
	idem     IdempotencyStore
	metrics  Recorder
	currency string
	now      func() time.Time
}

type Option func(*Service)

func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.metrics = r }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(log *slog.Logger, store Store, gateway PaymentGateway, idem IdempotencyStore, currency string, opts ...Option) *Service {
	s := &Service{
		log:      log,
		store:    store,
		gateway:  gateway,
		idem:     idem,
		metrics:  nopRecorder{},
		currency: currency,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateOrder converts the user's cart into a pending order. Stock is taken,
// the order is stored, and the cart is cleared in one transaction.
func (s *Service) CreateOrder(ctx context.Context, userID string) (domain.Order, error) {
	var created domain.Order
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		lines, err := tx.LockCart(ctx, userID)
		if err != nil {
			return fmt.Errorf("lock cart: %w", err)
		}
		if len(lines) == 0 {
			return apperr.ErrEmptyCart
		}

		items := make([]domain.Item, 0, len(lines))
		for _, l := range lines {
			ok, available, err := tx.DecrementStock(ctx, l.ProductID, l.Quantity)
			if err != nil {
				return fmt.Errorf("decrement stock %s: %w", l.ProductID, err)
			}
			if !ok {
				return &apperr.InsufficientStockError{ProductID: l.ProductID, Requested: l.Quantity, Available: available}
			}
			items = append(items, domain.Item{
				ProductID:      l.ProductID,
				ProductName:    l.ProductName,
				Quantity:       l.Quantity,
				UnitPriceCents: l.UnitPriceCents,
			})
		}

		o := domain.NewOrder(uuid.NewString(), userID, s.currency, items, s.now())
		if err := tx.InsertOrder(ctx, o); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		if err := tx.ClearCart(ctx, userID); err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}

		ev := domain.OrderCreated{OrderID: o.ID, UserID: o.UserID, TotalCents: o.TotalCents, Currency: o.Currency}
		for _, it := range o.Items {
			ev.Items = append(ev.Items, domain.EventItem{ProductID: it.ProductID, Quantity: it.Quantity, UnitPriceCents: it.UnitPriceCents})
		}
		if err := s.enqueue(ctx, tx, o.ID, domain.EventOrderCreated, ev); err != nil {
			return err
		}
		created = o
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.metrics.OrderCreated()
	s.log.Info("order created", "order_id", created.ID, "user_id", userID, "total_cents", created.TotalCents)
	return created, nil
}

// InitiateCheckout opens a gateway checkout session for a pending order.
// The gateway call happens outside any transaction.
func (s *Service) InitiateCheckout(ctx context.Context, userID, orderID string) (domain.Checkout, error) {
	o, err := s.Get(ctx, userID, orderID)
	if err != nil {
		return domain.Checkout{}, err
	}
	if o.Status != domain.StatusPending {
		return domain.Checkout{}, fmt.Errorf("%w: order %s is %s", apperr.ErrInvalidTransition, o.ID, o.Status)
	}

	req := paymentdomain.CheckoutRequest{
		OrderID:     o.ID,
		UserID:      o.UserID,
		Currency:    o.Currency,
		AmountCents: o.TotalCents,
	}
	for _, it := range o.Items {
		req.Items = append(req.Items, paymentdomain.LineItem{Name: it.ProductName, UnitPriceCents: it.UnitPriceCents, Quantity: it.Quantity})
	}
	sess, err := s.gateway.CreateCheckoutSession(ctx, req)
	if err != nil {
		return domain.Checkout{}, err
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		cur, err := tx.LockOrder(ctx, o.ID)
		if err != nil {
			return err
		}
		if cur.Status != domain.StatusPending {
			return fmt.Errorf("%w: order %s became %s during checkout", apperr.ErrInvalidTransition, cur.ID, cur.Status)
		}
		return tx.SetCheckoutSession(ctx, cur.ID, sess.ID)
	})
	if err != nil {
		return domain.Checkout{}, err
	}

	s.log.Info("checkout session created", "order_id", o.ID, "session_id", sess.ID)
	return domain.Checkout{OrderID: o.ID, SessionID: sess.ID, URL: sess.URL}, nil
}

func (s *Service) CancelOrder(ctx context.Context, userID, orderID string) (domain.Order, error) {
	if err := checkOrderID(orderID); err != nil {
		return domain.Order{}, err
	}
	var out domain.Order
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if o.UserID != userID {
			return fmt.Errorf("order %s: %w", orderID, apperr.ErrNotFound)
		}
		if err := s.transition(ctx, tx, &o, domain.StatusCancelled, domain.StatusChanged{}); err != nil {
			return err
		}
		if err := tx.RestoreStock(ctx, o.Items); err != nil {
			return fmt.Errorf("restore stock: %w", err)
		}
		out = o
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	s.metrics.OrderTransition(string(domain.StatusCancelled))
	s.log.Info("order cancelled", "order_id", out.ID, "user_id", userID)
	return out, nil
}

// MarkFulfilled is an administrative action; callers check the role.
func (s *Service) MarkFulfilled(ctx context.Context, orderID string) (domain.Order, error) {
	if err := checkOrderID(orderID); err != nil {
		return domain.Order{}, err
	}
	var out domain.Order
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if err := s.transition(ctx, tx, &o, domain.StatusFulfilled, domain.StatusChanged{}); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	s.metrics.OrderTransition(string(domain.StatusFulfilled))
	s.log.Info("order fulfilled", "order_id", out.ID)
	return out, nil
}

// Get returns the order if it belongs to userID. Other users see ErrNotFound.
func (s *Service) Get(ctx context.Context, userID, orderID string) (domain.Order, error) {
	if err := checkOrderID(orderID); err != nil {
		return domain.Order{}, err
	}
	o, err := s.store.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if o.UserID != userID {
		return domain.Order{}, fmt.Errorf("order %s: %w", orderID, apperr.ErrNotFound)
	}
	return o, nil
}

func (s *Service) ListForUser(ctx context.Context, userID string, skip, limit int) ([]domain.Order, error) {
	if skip < 0 {
		return nil, apperr.Validation("skip must not be negative")
	}
	if limit <= 0 || limit > MaxLimit {
		limit = DefaultLimit
	}
	return s.store.ListForUser(ctx, userID, skip, limit)
}

// transition moves o to status to with a conditional update and appends the
// matching outbox event. ev carries optional payment details.
func (s *Service) transition(ctx context.Context, tx Tx, o *domain.Order, to domain.Status, ev domain.StatusChanged) error {
	from := o.Status
	if err := o.TransitionTo(to, s.now()); err != nil {
		return err
	}
	ok, err := tx.UpdateStatus(ctx, o.ID, from, to)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: order %s changed concurrently", apperr.ErrInvalidTransition, o.ID)
	}

	ev.OrderID, ev.UserID, ev.From, ev.To, ev.At = o.ID, o.UserID, from, to, o.UpdatedAt
	return s.enqueue(ctx, tx, o.ID, domain.EventFor(to), ev)
}

func (s *Service) enqueue(ctx context.Context, tx Tx, orderID, eventType string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", eventType, err)
	}
	msg := outbox.Message{
		AggregateType: "order",
		AggregateID:   orderID,
		Type:          eventType,
		Payload:       b,
		Headers:       map[string]string{},
		Traceparent:   tracing.Traceparent(ctx),
	}
	if err := tx.Enqueue(ctx, msg); err != nil {
		return fmt.Errorf("enqueue %s: %w", eventType, err)
	}
	return nil
}

// checkOrderID rejects ids that cannot name a stored order.
func checkOrderID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("order %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, apperr.ErrNotFound)
}
