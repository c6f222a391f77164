package http

import (
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/zishan044/ecommerce-app/internal/auth"
	"github.com/zishan044/ecommerce-app/internal/user/application"
	"github.com/zishan044/ecommerce-app/internal/user/domain"
	"github.com/zishan044/ecommerce-app/pkg/apperr"
	"github.com/zishan044/ecommerce-app/pkg/httpx"
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
		tracer:  otel.Tracer("user-http"),
	}
}

type registerReq struct {
	FullName  string `json:"full_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Contact   string `json:"contact"`
	Address   string `json:"address"`
	AvatarURL string `json:"avatar_url"`
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResp struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type userResp struct {
	ID        string    `json:"id"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	Contact   string    `json:"contact,omitempty"`
	Address   string    `json:"address,omitempty"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	IsActive  bool      `json:"is_active"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func toResp(u domain.User) userResp {
	return userResp{
		ID:        u.ID,
		FullName:  u.FullName,
		Email:     u.Email,
		Contact:   u.Contact,
		Address:   u.Address,
		AvatarURL: u.AvatarURL,
		IsActive:  u.IsActive,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

// Routes serves /users.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/", h.register)
	r.With(h.authn).Get("/me", h.me)
	return r
}

// AuthRoutes serves /auth.
func (h *Handler) AuthRoutes() http.Handler {
	r := chi.NewRouter()
	r.Post("/login", h.login)
	return r
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "RegisterUser")
	defer span.End()

	var req registerReq
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	u, err := h.service.Register(ctx, domain.Registration(req))
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toResp(u))
}

// login accepts the OAuth2 password form (username/password) or a JSON body.
func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "Login")
	defer span.End()

	var req loginReq
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mt {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseForm(); err != nil {
			httpx.WriteError(w, h.log, apperr.Validation("invalid form: %v", err))
			return
		}
		req.Email = r.PostForm.Get("username")
		req.Password = r.PostForm.Get("password")
	default:
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.WriteError(w, h.log, err)
			return
		}
	}
	if req.Email == "" || req.Password == "" {
		httpx.WriteError(w, h.log, apperr.Validation("email and password are required"))
		return
	}

	tok, err := h.service.Login(ctx, req.Email, req.Password)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, tokenResp{AccessToken: tok.AccessToken, TokenType: tok.TokenType, ExpiresAt: tok.ExpiresAt})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "Me")
	defer span.End()

	id, _ := auth.FromContext(ctx)
	u, err := h.service.Me(ctx, id.UserID)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toResp(u))
}
