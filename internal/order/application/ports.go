package application

import (
	"context"

	"github.com/zishan044/ecommerce-app/internal/order/domain"
	paymentdomain "github.com/zishan044/ecommerce-app/internal/payment/domain"
	"github.com/zishan044/ecommerce-app/pkg/outbox"
)

type Store interface {
	// WithinTx runs fn in one transaction. fn's error rolls everything back.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Get(ctx context.Context, id string) (domain.Order, error)
	ListForUser(ctx context.Context, userID string, skip, limit int) ([]domain.Order, error)
}

type CartLine struct {
	ProductID      string
	ProductName    string
	UnitPriceCents int64
	Quantity       int
}

type Tx interface {
	// LockCart returns the user's cart lines with current product name and price, locked for update.
	LockCart(ctx context.Context, userID string) ([]CartLine, error)
	ClearCart(ctx context.Context, userID string) error

	// DecrementStock takes qty units only if that many are available. On
	// failure it reports the stock currently on hand.
	DecrementStock(ctx context.Context, productID string, qty int) (ok bool, available int, err error)
	RestoreStock(ctx context.Context, items []domain.Item) error

	InsertOrder(ctx context.Context, o domain.Order) error
	// LockOrder and LockOrderBySession return apperr.ErrNotFound when no order matches.
	LockOrder(ctx context.Context, id string) (domain.Order, error)
	LockOrderBySession(ctx context.Context, sessionID string) (domain.Order, error)
	// UpdateStatus reports false when the order is no longer in status from.
	UpdateStatus(ctx context.Context, id string, from, to domain.Status) (bool, error)
	SetCheckoutSession(ctx context.Context, id, sessionID string) error
	SetPaymentRef(ctx context.Context, id, ref string) error

	// RecordPaymentEvent reports false if eventID was already recorded.
	RecordPaymentEvent(ctx context.Context, eventID, orderID, kind string) (bool, error)
	Enqueue(ctx context.Context, msg outbox.Message) error
}

type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, req paymentdomain.CheckoutRequest) (paymentdomain.Session, error)
	ParseWebhook(payload []byte, signature string) (paymentdomain.Event, error)
}

// IdempotencyStore is a fast-path cache of applied payment events.
type IdempotencyStore interface {
	Key(scope, id string) string
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string) (bool, error)
}

type Recorder interface {
	OrderCreated()
	OrderTransition(to string)
	Webhook(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) OrderCreated()          {}
func (nopRecorder) OrderTransition(string) {}
func (nopRecorder) Webhook(string)         {}
