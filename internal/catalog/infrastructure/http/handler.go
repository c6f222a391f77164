package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zishan044/ecommerce-app/internal/auth"
	"github.com/zishan044/ecommerce-app/internal/catalog/application"
	"github.com/zishan044/ecommerce-app/internal/catalog/domain"
	"github.com/zishan044/ecommerce-app/pkg/apperr"
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
		tracer:  otel.Tracer("catalog-http"),
	}
}

type createProductReq struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Price       *money.Amount `json:"price"`
	Stock       int           `json:"stock"`
	Category    string        `json:"category"`
	MediaURL    string        `json:"media_url"`
}

type updateProductReq struct {
	Name        *string       `json:"name"`
	Description *string       `json:"description"`
	Price       *money.Amount `json:"price"`
	Stock       *int          `json:"stock"`
	Category    *string       `json:"category"`
	MediaURL    *string       `json:"media_url"`
}

type productResp struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Price       money.Amount `json:"price"`
	Stock       int          `json:"stock"`
	Category    string       `json:"category,omitempty"`
	MediaURL    string       `json:"media_url,omitempty"`
	Rating      float64      `json:"rating"`
	NumReviews  int          `json:"num_reviews"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

func toResp(p domain.Product) productResp {
	return productResp{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       money.Amount(p.PriceCents),
		Stock:       p.Stock,
		Category:    p.Category,
		MediaURL:    p.MediaURL,
		Rating:      p.Rating,
		NumReviews:  p.NumReviews,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Group(func(r chi.Router) {
		r.Use(h.authn, auth.RequireRole(h.log, auth.RoleAdmin))
		r.Post("/", h.create)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.delete)
	})
	return r
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListProducts")
	defer span.End()

	skip, limit, err := httpx.Pagination(r, application.DefaultLimit, application.MaxLimit)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	products, err := h.service.List(ctx, skip, limit)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	out := make([]productResp, 0, len(products))
	for _, p := range products {
		out = append(out, toResp(p))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx, span := h.tracer.Start(r.Context(), "GetProduct", trace.WithAttributes(attribute.String("product.id", id)))
	defer span.End()

	p, err := h.service.Get(ctx, id)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toResp(p))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateProduct")
	defer span.End()

	var req createProductReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	if req.Price == nil {
		httpx.WriteError(w, h.log, apperr.Validation("price is required"))
		return
	}
	p, err := h.service.Create(ctx, domain.Product{
		Name:        req.Name,
		Description: req.Description,
		PriceCents:  int64(*req.Price),
		Stock:       req.Stock,
		Category:    req.Category,
		MediaURL:    req.MediaURL,
	})
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toResp(p))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx, span := h.tracer.Start(r.Context(), "UpdateProduct", trace.WithAttributes(attribute.String("product.id", id)))
	defer span.End()

	var req updateProductReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	patch := domain.Patch{
		Name:        req.Name,
		Description: req.Description,
		Stock:       req.Stock,
		Category:    req.Category,
		MediaURL:    req.MediaURL,
	}
	if req.Price != nil {
		cents := int64(*req.Price)
		patch.PriceCents = &cents
	}
	p, err := h.service.Update(ctx, id, patch)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toResp(p))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx, span := h.tracer.Start(r.Context(), "DeleteProduct", trace.WithAttributes(attribute.String("product.id", id)))
	defer span.End()

	if err := h.service.Delete(ctx, id); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
