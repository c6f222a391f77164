package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/zishan044/ecommerce-app/internal/auth"
	"github.com/zishan044/ecommerce-app/internal/order/application"
	"github.com/zishan044/ecommerce-app/internal/order/domain"
	"github.com/zishan044/ecommerce-app/pkg/httpx"
	"github.com/zishan044/ecommerce-app/pkg/money"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

type Handler struct {
	log     *slog.Logger
	service *application.Service
	authn   func(http.Handler) http.Handler
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, service *application.Service, authn func(http.Handler) http.Handler) *Handler {
	return &Handler{
		log:     log,
		service: service,
		authn:   authn,
		tracer:  otel.Tracer("order-http"),
	}
}

type itemResp struct {
	ProductID   string       `json:"product_id"`
	ProductName string       `json:"product_name"`
	Quantity    int          `json:"quantity"`
	UnitPrice   money.Amount `json:"unit_price"`
	LineTotal   money.Amount `json:"line_total"`
}

type orderResp struct {
	ID                string       `json:"id"`
	UserID            string       `json:"user_id"`
	Status            string       `json:"status"`
	Items             []itemResp   `json:"items"`
	Total             money.Amount `json:"total"`
	Currency          string       `json:"currency"`
	CheckoutSessionID string       `json:"checkout_session_id,omitempty"`
	PaymentRef        string       `json:"payment_ref,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

func toResp(o domain.Order) orderResp {
	out := orderResp{
		ID:                o.ID,
		UserID:            o.UserID,
		Status:            string(o.Status),
		Items:             make([]itemResp, 0, len(o.Items)),
		Total:             money.Amount(o.TotalCents),
		Currency:          o.Currency,
		CheckoutSessionID: o.CheckoutSessionID,
		PaymentRef:        o.PaymentRef,
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
	for _, it := range o.Items {
		out.Items = append(out.Items, itemResp{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   money.Amount(it.UnitPriceCents),
			LineTotal:   money.Amount(it.TotalCents()),
		})
	}
	return out
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(h.authn)
	r.Post("/", h.createOrder)
	r.Get("/", h.listOrders)
	r.Get("/{id}", h.getOrder)
	r.Post("/{id}/cancel", h.cancelOrder)
	r.With(auth.RequireRole(h.log, auth.RoleAdmin)).Post("/{id}/fulfill", h.fulfillOrder)
	return r
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateOrder")
	defer span.End()

	id, _ := auth.FromContext(ctx)
	o, err := h.service.CreateOrder(ctx, id.UserID)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toResp(o))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListOrders")
	defer span.End()

	skip, limit, err := httpx.Pagination(r, defaultLimit, maxLimit)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	id, _ := auth.FromContext(ctx)
	orders, err := h.service.ListForUser(ctx, id.UserID, skip, limit)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	out := make([]orderResp, 0, len(orders))
	for _, o := range orders {
		out = append(out, toResp(o))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetOrder")
	defer span.End()

	id, _ := auth.FromContext(ctx)
	o, err := h.service.Get(ctx, id.UserID, chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toResp(o))
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CancelOrder")
	defer span.End()

	id, _ := auth.FromContext(ctx)
	o, err := h.service.CancelOrder(ctx, id.UserID, chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toResp(o))
}

func (h *Handler) fulfillOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "FulfillOrder")
	defer span.End()

	o, err := h.service.MarkFulfilled(ctx, chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toResp(o))
}
