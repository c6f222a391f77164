package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/zishan044/ecommerce-app/internal/auth"
	"github.com/zishan044/ecommerce-app/internal/cart/application"
	"github.com/zishan044/ecommerce-app/internal/cart/domain"
	"github.com/zishan044/ecommerce-app/pkg/httpx"
	"github.com/zishan044/ecommerce-app/pkg/money"
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
		tracer:  otel.Tracer("cart-http"),
	}
}

type addItemReq struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type updateItemReq struct {
	Quantity int `json:"quantity"`
}

type lineResp struct {
	ProductID string       `json:"product_id"`
	Name      string       `json:"name"`
	UnitPrice money.Amount `json:"unit_price"`
	Quantity  int          `json:"quantity"`
	LineTotal money.Amount `json:"line_total"`
}

type cartResp struct {
	Items    []lineResp   `json:"items"`
	Subtotal money.Amount `json:"subtotal"`
}

func toResp(c domain.Cart) cartResp {
	out := cartResp{Items: make([]lineResp, 0, len(c.Lines)), Subtotal: money.Amount(c.SubtotalCents())}
	for _, l := range c.Lines {
		out.Items = append(out.Items, lineResp{
			ProductID: l.ProductID,
			Name:      l.Name,
			UnitPrice: money.Amount(l.UnitPriceCents),
			Quantity:  l.Quantity,
			LineTotal: money.Amount(l.TotalCents()),
		})
	}
	return out
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(h.authn)
	r.Get("/", h.get)
	r.Delete("/", h.clear)
	r.Post("/items", h.addItem)
	r.Put("/items/{productID}", h.updateItem)
	r.Delete("/items/{productID}", h.removeItem)
	return r
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetCart")
	defer span.End()

	id, _ := auth.FromContext(ctx)
	h.writeCart(w, r.WithContext(ctx), id.UserID, http.StatusOK)
}

func (h *Handler) clear(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ClearCart")
	defer span.End()

	id, _ := auth.FromContext(ctx)
	if err := h.service.Clear(ctx, id.UserID); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "AddCartItem")
	defer span.End()

	var req addItemReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	id, _ := auth.FromContext(ctx)
	if err := h.service.AddItem(ctx, id.UserID, req.ProductID, req.Quantity); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	h.writeCart(w, r.WithContext(ctx), id.UserID, http.StatusCreated)
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "UpdateCartItem")
	defer span.End()

	var req updateItemReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	id, _ := auth.FromContext(ctx)
	if err := h.service.UpdateQuantity(ctx, id.UserID, chi.URLParam(r, "productID"), req.Quantity); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	h.writeCart(w, r.WithContext(ctx), id.UserID, http.StatusOK)
}

func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "RemoveCartItem")
	defer span.End()

	id, _ := auth.FromContext(ctx)
	if err := h.service.RemoveItem(ctx, id.UserID, chi.URLParam(r, "productID")); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeCart(w http.ResponseWriter, r *http.Request, userID string, status int) {
	c, err := h.service.Get(r.Context(), userID)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, status, toResp(c))
}
