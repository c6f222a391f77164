package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/zishan044/ecommerce-app/internal/payment/domain"
	"github.com/zishan044/ecommerce-app/pkg/apperr"
)

const orderIDPlaceholder = "{ORDER_ID}"

type Config struct {
	SecretKey     string
	WebhookSecret string
	// SuccessURL and CancelURL may contain {ORDER_ID}.
	SuccessURL string
	CancelURL  string
}

type Provider struct {
	log      *slog.Logger
	cfg      Config
	sessions session.Client
}

type Option func(*stripe.BackendConfig)

// WithAPIURL points the client at a different API host.
func WithAPIURL(url string) Option {
	return func(c *stripe.BackendConfig) { c.URL = stripe.String(url) }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *stripe.BackendConfig) { c.HTTPClient = hc }
}

func NewProvider(log *slog.Logger, cfg Config, opts ...Option) *Provider {
	bc := &stripe.BackendConfig{
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelError},
	}
	for _, opt := range opts {
		opt(bc)
	}
	return &Provider{
		log:      log,
		cfg:      cfg,
		sessions: session.Client{B: stripe.GetBackendWithConfig(stripe.APIBackend, bc), Key: cfg.SecretKey},
	}
}

func (p *Provider) CreateCheckoutSession(ctx context.Context, req domain.CheckoutRequest) (domain.Session, error) {
	meta := map[string]string{"order_id": req.OrderID, "user_id": req.UserID}
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(req.OrderID),
		SuccessURL:        stripe.String(strings.ReplaceAll(p.cfg.SuccessURL, orderIDPlaceholder, req.OrderID)),
		CancelURL:         stripe.String(strings.ReplaceAll(p.cfg.CancelURL, orderIDPlaceholder, req.OrderID)),
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{Metadata: meta},
	}
	for _, it := range req.Items {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(req.Currency),
				UnitAmount:  stripe.Int64(it.UnitPriceCents),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{Name: stripe.String(it.Name)},
			},
			Quantity: stripe.Int64(int64(it.Quantity)),
		})
	}
	for k, v := range meta {
		params.AddMetadata(k, v)
	}
	params.Context = ctx

	s, err := p.sessions.New(params)
	if err != nil {
		return domain.Session{}, classify(err)
	}
	return domain.Session{ID: s.ID, URL: s.URL}, nil
}

// classify marks network failures, rate limits and 5xx responses as transient.
func classify(err error) error {
	var serr *stripe.Error
	if errors.As(err, &serr) {
		if serr.HTTPStatusCode >= http.StatusInternalServerError || serr.HTTPStatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%w: stripe %d: %s", apperr.ErrGatewayUnavailable, serr.HTTPStatusCode, serr.Msg)
		}
		return fmt.Errorf("stripe %d: %s", serr.HTTPStatusCode, serr.Msg)
	}
	return fmt.Errorf("%w: %v", apperr.ErrGatewayUnavailable, err)
}

func (p *Provider) ParseWebhook(payload []byte, signature string) (domain.Event, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, signature, p.cfg.WebhookSecret, webhook.ConstructEventOptions{
		Tolerance:                webhook.DefaultTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return domain.Event{}, fmt.Errorf("%w: %v", apperr.ErrInvalidSignature, err)
	}

	out := domain.Event{ID: ev.ID, Type: string(ev.Type), Kind: domain.KindIgnored}
	switch ev.Type {
	case "checkout.session.completed",
		"checkout.session.async_payment_succeeded",
		"checkout.session.async_payment_failed",
		"checkout.session.expired":
		var s stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &s); err != nil {
			return domain.Event{}, apperr.Validation("decode checkout session: %v", err)
		}
		out.SessionID = s.ID
		out.OrderID = s.ClientReferenceID
		if out.OrderID == "" {
			out.OrderID = s.Metadata["order_id"]
		}
		if s.PaymentIntent != nil {
			out.PaymentRef = s.PaymentIntent.ID
		}
		switch ev.Type {
		case "checkout.session.completed":
			// Delayed methods settle later via async_payment_succeeded.
			if s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid {
				out.Kind = domain.KindSucceeded
			}
		case "checkout.session.async_payment_succeeded":
			out.Kind = domain.KindSucceeded
		default:
			out.Kind = domain.KindFailed
		}
	case "payment_intent.succeeded", "payment_intent.payment_failed":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(ev.Data.Raw, &pi); err != nil {
			return domain.Event{}, apperr.Validation("decode payment intent: %v", err)
		}
		out.OrderID = pi.Metadata["order_id"]
		out.PaymentRef = pi.ID
		// A declined attempt leaves the checkout session open for another
		// card; only session expiry or async failure ends the order.
		if ev.Type == "payment_intent.succeeded" {
			out.Kind = domain.KindSucceeded
		}
	}
	return out, nil
}
