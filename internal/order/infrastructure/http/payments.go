package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zishan044/ecommerce-app/internal/auth"
	"github.com/zishan044/ecommerce-app/pkg/apperr"
	"github.com/zishan044/ecommerce-app/pkg/httpx"
)

const signatureHeader = "Stripe-Signature"

type checkoutResp struct {
	OrderID   string `json:"order_id"`
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

type webhookResp struct {
	Received bool   `json:"received"`
	OrderID  string `json:"order_id,omitempty"`
	Outcome  string `json:"outcome,omitempty"`
}

// PaymentRoutes serves checkout creation and the gateway webhook. The
// webhook is authenticated by its signature, not a bearer token.
func (h *Handler) PaymentRoutes() http.Handler {
	r := chi.NewRouter()
	r.With(h.authn).Post("/create-checkout-session/{orderID}", h.createCheckoutSession)
	r.Post("/webhook", h.webhook)
	return r
}

func (h *Handler) createCheckoutSession(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateCheckoutSession")
	defer span.End()

	id, _ := auth.FromContext(ctx)
	c, err := h.service.InitiateCheckout(ctx, id.UserID, chi.URLParam(r, "orderID"))
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, checkoutResp{OrderID: c.OrderID, SessionID: c.SessionID, URL: c.URL})
}

func (h *Handler) webhook(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "PaymentWebhook")
	defer span.End()

	payload, err := httpx.ReadBody(r)
	if err != nil {
		httpx.WriteError(w, h.log, apperr.Validation("%v", err))
		return
	}

	res, err := h.service.ApplyPaymentWebhook(ctx, payload, r.Header.Get(signatureHeader))
	switch {
	case err == nil:
		httpx.WriteJSON(w, http.StatusOK, webhookResp{Received: true, OrderID: res.OrderID, Outcome: string(res.Outcome)})
	case errors.Is(err, apperr.ErrUnknownOrder):
		// Acknowledged so the gateway stops redelivering an event we can never apply.
		h.log.Warn("webhook for unknown order", "err", err)
		httpx.WriteJSON(w, http.StatusAccepted, webhookResp{Received: true})
	case errors.Is(err, apperr.ErrInvalidSignature):
		h.log.Warn("webhook rejected", "err", err)
		httpx.WriteError(w, h.log, err)
	default:
		httpx.WriteError(w, h.log, err)
	}
}
