package domain

import (
	"fmt"
	"time"

	"github.com/zishan044/ecommerce-app/pkg/apperr"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusFulfilled Status = "fulfilled"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

var transitions = map[Status][]Status{
	StatusPending: {StatusPaid, StatusCancelled, StatusFailed},
	StatusPaid:    {StatusFulfilled},
}

func (s Status) CanTransitionTo(to Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusFulfilled, StatusCancelled, StatusFailed:
		return true
	}
	return false
}

// Item is a cart line frozen at order creation.
type Item struct {
	ProductID      string
	ProductName    string
	Quantity       int
	UnitPriceCents int64
}

func (i Item) TotalCents() int64 {
	return int64(i.Quantity) * i.UnitPriceCents
}

type Order struct {
	ID                string
	UserID            string
	Items             []Item
	TotalCents        int64
	Currency          string
	Status            Status
	CheckoutSessionID string
	PaymentRef        string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func NewOrder(id, userID, currency string, items []Item, now time.Time) Order {
	now = now.UTC()
	return Order{
		ID:         id,
		UserID:     userID,
		Items:      items,
		TotalCents: SumItems(items),
		Currency:   currency,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func SumItems(items []Item) int64 {
	var total int64
	for _, item := range items {
		total += item.TotalCents()
	}
	return total
}

// TransitionTo moves the order to status to, or fails with ErrInvalidTransition.
func (o *Order) TransitionTo(to Status, at time.Time) error {
	if !o.Status.CanTransitionTo(to) {
		return fmt.Errorf("%w: order %s is %s, cannot become %s", apperr.ErrInvalidTransition, o.ID, o.Status, to)
	}
	o.Status = to
	o.UpdatedAt = at.UTC()
	return nil
}
