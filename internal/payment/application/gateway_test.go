package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zishan044/ecommerce-app/internal/payment/domain"
	"github.com/zishan044/ecommerce-app/pkg/apperr"
)

type stubProvider struct {
	calls int
	err   error
	block bool
}

func (p *stubProvider) CreateCheckoutSession(ctx context.Context, req domain.CheckoutRequest) (domain.Session, error) {
	p.calls++
	if p.block {
		<-ctx.Done()
		return domain.Session{}, ctx.Err()
	}
	if p.err != nil {
		return domain.Session{}, p.err
	}
	return domain.Session{ID: "cs_" + req.OrderID, URL: "https://pay.example/" + req.OrderID}, nil
}

func (p *stubProvider) ParseWebhook([]byte, string) (domain.Event, error) {
	return domain.Event{ID: "evt_1", Kind: domain.KindSucceeded}, nil
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestCreateCheckoutSession(t *testing.T) {
	p := &stubProvider{}
	g := NewGateway(discard(), p, time.Second)

	sess, err := g.CreateCheckoutSession(context.Background(), domain.CheckoutRequest{OrderID: "o1"})
	require.NoError(t, err)
	assert.Equal(t, "cs_o1", sess.ID)
	assert.Equal(t, "closed", g.BreakerState())
}

func TestBreakerOpensAfterTransientFailures(t *testing.T) {
	p := &stubProvider{err: fmt.Errorf("%w: connection reset", apperr.ErrGatewayUnavailable)}
	var transitions []string
	g := NewGateway(discard(), p, time.Second,
		WithBreakerThreshold(2, time.Minute),
		WithBreakerStateHook(func(_, from, to string) { transitions = append(transitions, from+"->"+to) }))

	for i := 0; i < 2; i++ {
		_, err := g.CreateCheckoutSession(context.Background(), domain.CheckoutRequest{OrderID: "o1"})
		assert.ErrorIs(t, err, apperr.ErrGatewayUnavailable)
	}
	assert.Equal(t, "open", g.BreakerState())
	assert.Equal(t, []string{"closed->open"}, transitions)

	_, err := g.CreateCheckoutSession(context.Background(), domain.CheckoutRequest{OrderID: "o1"})
	assert.ErrorIs(t, err, apperr.ErrGatewayUnavailable)
	assert.Equal(t, 2, p.calls)
}

func TestClientErrorsDoNotTripBreaker(t *testing.T) {
	p := &stubProvider{err: errors.New("invalid currency")}
	g := NewGateway(discard(), p, time.Second, WithBreakerThreshold(1, time.Minute))

	for i := 0; i < 3; i++ {
		_, err := g.CreateCheckoutSession(context.Background(), domain.CheckoutRequest{})
		require.Error(t, err)
		assert.NotErrorIs(t, err, apperr.ErrGatewayUnavailable)
	}
	assert.Equal(t, "closed", g.BreakerState())
	assert.Equal(t, 3, p.calls)
}

func TestTimeoutIsGatewayUnavailable(t *testing.T) {
	p := &stubProvider{block: true}
	g := NewGateway(discard(), p, 10*time.Millisecond)

	_, err := g.CreateCheckoutSession(context.Background(), domain.CheckoutRequest{OrderID: "o1"})
	assert.ErrorIs(t, err, apperr.ErrGatewayUnavailable)
}
