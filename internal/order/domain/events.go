package domain

import "time"

const (
	EventOrderCreated   = "order.created"
	EventOrderPaid      = "order.paid"
	EventOrderFailed    = "order.failed"
	EventOrderCancelled = "order.cancelled"
	EventOrderFulfilled = "order.fulfilled"
)

var statusEvents = map[Status]string{
	StatusPaid:      EventOrderPaid,
	StatusFailed:    EventOrderFailed,
	StatusCancelled: EventOrderCancelled,
	StatusFulfilled: EventOrderFulfilled,
}

// EventFor returns the outbox event type emitted on entering status s.
func EventFor(s Status) string {
	return statusEvents[s]
}

type OrderCreated struct {
	OrderID    string      `json:"order_id"`
	UserID     string      `json:"user_id"`
	TotalCents int64       `json:"total_cents"`
	Currency   string      `json:"currency"`
	Items      []EventItem `json:"items"`
}

type EventItem struct {
	ProductID      string `json:"product_id"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

type StatusChanged struct {
	OrderID        string    `json:"order_id"`
	UserID         string    `json:"user_id"`
	From           Status    `json:"from"`
	To             Status    `json:"to"`
	PaymentRef     string    `json:"payment_ref,omitempty"`
	PaymentEventID string    `json:"payment_event_id,omitempty"`
	At             time.Time `json:"at"`
}

// Outcome reports what a payment webhook did to its order.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
)

type WebhookResult struct {
	OrderID string
	Outcome Outcome
}

type Checkout struct {
	OrderID   string
	SessionID string
	URL       string
}
