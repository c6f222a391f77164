package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zishan044/ecommerce-app/internal/auth"
	"github.com/zishan044/ecommerce-app/internal/user/application"
	"github.com/zishan044/ecommerce-app/internal/user/domain"
	"github.com/zishan044/ecommerce-app/pkg/apperr"
)

type memRepo struct {
	mu    sync.Mutex
	users []domain.User
}

func (m *memRepo) Create(_ context.Context, u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.users {
		if e.Email == u.Email {
			return apperr.ErrConflict
		}
	}
	m.users = append(m.users, u)
	return nil
}

func (m *memRepo) find(match func(domain.User) bool) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if match(u) {
			return u, nil
		}
	}
	return domain.User{}, apperr.ErrNotFound
}

func (m *memRepo) GetByEmail(_ context.Context, email string) (domain.User, error) {
	return m.find(func(u domain.User) bool { return u.Email == email })
}

func (m *memRepo) GetByID(_ context.Context, id string) (domain.User, error) {
	return m.find(func(u domain.User) bool { return u.ID == id })
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	iss := auth.NewIssuer("secret", time.Minute)
	h := NewHandler(log, application.NewService(log, &memRepo{}, iss), auth.Middleware(log, iss))

	r := chi.NewRouter()
	r.Mount("/users", h.Routes())
	r.Mount("/auth", h.AuthRoutes())
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestRegisterLoginMe(t *testing.T) {
	srv := newServer(t)

	resp, err := http.Post(srv.URL+"/users", "application/json",
		strings.NewReader(`{"full_name":"Ada","email":"ada@x.io","password":"password1"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Equal(t, "ada@x.io", created["email"])
	assert.NotContains(t, created, "password_hash")

	form := url.Values{"username": {"ada@x.io"}, "password": {"password1"}}
	resp2, err := http.PostForm(srv.URL+"/auth/login", form)
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusOK, resp2.StatusCode)

	var tok tokenResp
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&tok))
	assert.Equal(t, "bearer", tok.TokenType)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	resp3, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp3.Body.Close()
	require.Equal(t, http.StatusOK, resp3.StatusCode)

	var me userResp
	require.NoError(t, json.NewDecoder(resp3.Body).Decode(&me))
	assert.Equal(t, created["id"], me.ID)
}

func TestLoginJSONWrongPassword(t *testing.T) {
	srv := newServer(t)

	resp, err := http.Post(srv.URL+"/users", "application/json",
		strings.NewReader(`{"full_name":"Ada","email":"ada@x.io","password":"password1"}`))
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Post(srv.URL+"/auth/login", "application/json",
		strings.NewReader(`{"email":"ada@x.io","password":"nope-nope"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRegisterDuplicateIsConflict(t *testing.T) {
	srv := newServer(t)
	body := `{"full_name":"Ada","email":"ada@x.io","password":"password1"}`

	resp, err := http.Post(srv.URL+"/users", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Post(srv.URL+"/users", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestMeRequiresToken(t *testing.T) {
	srv := newServer(t)
	resp, err := http.Get(srv.URL + "/users/me")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
