package ordertest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	paymentdomain "github.com/zishan044/ecommerce-app/internal/payment/domain"
	"github.com/zishan044/ecommerce-app/pkg/apperr"
)

// ValidSignature is the only signature Gateway accepts.
const ValidSignature = "valid-signature"

// Gateway is a fake payment gateway. Webhook payloads are JSON-encoded
// paymentdomain.Event values.
type Gateway struct {
	mu       sync.Mutex
	Err      error
	Requests []paymentdomain.CheckoutRequest
	// Before runs inside CreateCheckoutSession, after the request is recorded.
	Before func()
}

func (g *Gateway) CreateCheckoutSession(_ context.Context, req paymentdomain.CheckoutRequest) (paymentdomain.Session, error) {
	g.mu.Lock()
	g.Requests = append(g.Requests, req)
	n := len(g.Requests)
	err := g.Err
	before := g.Before
	g.mu.Unlock()

	if before != nil {
		before()
	}
	if err != nil {
		return paymentdomain.Session{}, err
	}
	id := fmt.Sprintf("cs_test_%d", n)
	return paymentdomain.Session{ID: id, URL: "https://checkout.example/" + id}, nil
}

func (g *Gateway) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Requests)
}

func (g *Gateway) ParseWebhook(payload []byte, signature string) (paymentdomain.Event, error) {
	if signature != ValidSignature {
		return paymentdomain.Event{}, fmt.Errorf("%w: bad signature", apperr.ErrInvalidSignature)
	}
	var ev paymentdomain.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return paymentdomain.Event{}, apperr.Validation("decode event: %v", err)
	}
	return ev, nil
}

// Payload encodes ev the way Gateway.ParseWebhook expects.
func Payload(ev paymentdomain.Event) []byte {
	b, _ := json.Marshal(ev)
	return b
}
