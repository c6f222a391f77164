package application

import (
	"context"

	"github.com/zishan044/ecommerce-app/internal/payment/domain"
)

// Provider talks to a concrete payment gateway. Transient failures are
// wrapped with apperr.ErrGatewayUnavailable.
type Provider interface {
	CreateCheckoutSession(ctx context.Context, req domain.CheckoutRequest) (domain.Session, error)
	ParseWebhook(payload []byte, signature string) (domain.Event, error)
}
