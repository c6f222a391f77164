package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/zishan044/ecommerce-app/internal/payment/domain"
	"github.com/zishan044/ecommerce-app/pkg/apperr"
	"github.com/zishan044/ecommerce-app/pkg/circuitbreaker"
)

type Gateway struct {
	log      *slog.Logger
	provider Provider
	breaker  *circuitbreaker.Breaker[domain.Session]
	timeout  time.Duration
}

type GatewayOption func(*circuitbreaker.Settings)

func WithBreakerStateHook(fn func(name, from, to string)) GatewayOption {
	return func(s *circuitbreaker.Settings) { s.OnStateChange = fn }
}

func WithBreakerThreshold(failures uint32, openFor time.Duration) GatewayOption {
	return func(s *circuitbreaker.Settings) {
		s.ConsecutiveFailures = failures
		s.OpenTimeout = openFor
	}
}

func NewGateway(log *slog.Logger, provider Provider, timeout time.Duration, opts ...GatewayOption) *Gateway {
	s := circuitbreaker.Settings{
		Name: "payment-gateway",
		// Rejected requests are the caller's fault, not the gateway's.
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, apperr.ErrGatewayUnavailable)
		},
	}
	for _, opt := range opts {
		opt(&s)
	}
	return &Gateway{
		log:      log,
		provider: provider,
		breaker:  circuitbreaker.New[domain.Session](log, s),
		timeout:  timeout,
	}
}

func (g *Gateway) CreateCheckoutSession(ctx context.Context, req domain.CheckoutRequest) (domain.Session, error) {
	sess, err := g.breaker.Execute(func() (domain.Session, error) {
		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()
		sess, err := g.provider.CreateCheckoutSession(callCtx, req)
		if err != nil && errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, apperr.ErrGatewayUnavailable) {
			err = fmt.Errorf("%w: %v", apperr.ErrGatewayUnavailable, err)
		}
		return sess, err
	})
	switch {
	case errors.Is(err, circuitbreaker.ErrOpen):
		g.log.Warn("checkout rejected, breaker open", "order_id", req.OrderID)
		return domain.Session{}, fmt.Errorf("%w: %v", apperr.ErrGatewayUnavailable, err)
	case err != nil:
		g.log.Error("create checkout session failed", "order_id", req.OrderID, "err", err)
		return domain.Session{}, err
	}
	return sess, nil
}

func (g *Gateway) ParseWebhook(payload []byte, signature string) (domain.Event, error) {
	return g.provider.ParseWebhook(payload, signature)
}

func (g *Gateway) BreakerState() string {
	return g.breaker.State()
}
