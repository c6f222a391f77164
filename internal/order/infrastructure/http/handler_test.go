package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zishan044/ecommerce-app/internal/auth"
	"github.com/zishan044/ecommerce-app/internal/order/application"
	"github.com/zishan044/ecommerce-app/internal/order/ordertest"
	paymentdomain "github.com/zishan044/ecommerce-app/internal/payment/domain"
	"github.com/zishan044/ecommerce-app/pkg/apperr"
	"github.com/zishan044/ecommerce-app/pkg/idempotency"
	"github.com/zishan044/ecommerce-app/pkg/money"
)

const (
	productA = "aaaaaaaa-0000-0000-0000-000000000001"
	productB = "bbbbbbbb-0000-0000-0000-000000000002"
)

type testEnv struct {
	srv     *httptest.Server
	store   *ordertest.Store
	gateway *ordertest.Gateway
	alice   string
	bob     string
	admin   string
}

func newEnv(t *testing.T) testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := ordertest.NewStore()
	store.AddProduct(productA, ordertest.Product{Name: "Product A", PriceCents: 1000, Stock: 10})
	store.AddProduct(productB, ordertest.Product{Name: "Product B", PriceCents: 500, Stock: 5})
	gw := &ordertest.Gateway{}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := application.NewService(log, store, gw, idempotency.NewStore(rdb, time.Hour), "usd")
	iss := auth.NewIssuer("secret", time.Minute)
	h := NewHandler(log, svc, auth.Middleware(log, iss))

	r := chi.NewRouter()
	r.Mount("/orders", h.Routes())
	r.Mount("/payments", h.PaymentRoutes())
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	token := func(userID, role string) string {
		tok, _, err := iss.Issue(auth.Identity{UserID: userID, Role: role})
		require.NoError(t, err)
		return tok
	}
	return testEnv{
		srv:     srv,
		store:   store,
		gateway: gw,
		alice:   token("user-alice", auth.RoleCustomer),
		bob:     token("user-bob", auth.RoleCustomer),
		admin:   token("user-admin", auth.RoleAdmin),
	}
}

func (e testEnv) do(t *testing.T, token, method, path string, body []byte, headers map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, bytes.NewReader(body))
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e testEnv) createOrder(t *testing.T) orderResp {
	t.Helper()
	e.store.AddToCart("user-alice", productA, 2)
	e.store.AddToCart("user-alice", productB, 1)
	resp := e.do(t, e.alice, http.MethodPost, "/orders", nil, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var o orderResp
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&o))
	return o
}

func (e testEnv) webhook(t *testing.T, ev paymentdomain.Event, signature string) *http.Response {
	t.Helper()
	return e.do(t, "", http.MethodPost, "/payments/webhook", ordertest.Payload(ev),
		map[string]string{signatureHeader: signature})
}

func TestCreateOrder(t *testing.T) {
	e := newEnv(t)
	o := e.createOrder(t)

	assert.Equal(t, "pending", o.Status)
	assert.Equal(t, money.Amount(2500), o.Total)
	require.Len(t, o.Items, 2)
	assert.Equal(t, 8, e.store.Stock(productA))
}

func TestCreateOrderEmptyCart(t *testing.T) {
	e := newEnv(t)
	resp := e.do(t, e.alice, http.MethodPost, "/orders", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateOrderInsufficientStock(t *testing.T) {
	e := newEnv(t)
	e.store.AddToCart("user-alice", productB, 6)
	resp := e.do(t, e.alice, http.MethodPost, "/orders", nil, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, 5, e.store.Stock(productB))
}

func TestGetOrderOwnership(t *testing.T) {
	e := newEnv(t)
	o := e.createOrder(t)

	resp := e.do(t, e.alice, http.MethodGet, "/orders/"+o.ID, nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = e.do(t, e.bob, http.MethodGet, "/orders/"+o.ID, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = e.do(t, e.alice, http.MethodGet, "/orders", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []orderResp
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	assert.Len(t, list, 1)
}

func TestCancelOrder(t *testing.T) {
	e := newEnv(t)
	o := e.createOrder(t)

	resp := e.do(t, e.alice, http.MethodPost, "/orders/"+o.ID+"/cancel", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 10, e.store.Stock(productA))

	resp = e.do(t, e.alice, http.MethodPost, "/orders/"+o.ID+"/cancel", nil, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestFulfillRequiresAdmin(t *testing.T) {
	e := newEnv(t)
	o := e.createOrder(t)

	resp := e.do(t, e.alice, http.MethodPost, "/orders/"+o.ID+"/fulfill", nil, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = e.do(t, e.admin, http.MethodPost, "/orders/"+o.ID+"/fulfill", nil, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestCheckoutAndWebhook(t *testing.T) {
	e := newEnv(t)
	o := e.createOrder(t)

	resp := e.do(t, e.alice, http.MethodPost, "/payments/create-checkout-session/"+o.ID, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var c checkoutResp
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&c))
	assert.NotEmpty(t, c.SessionID)
	assert.NotEmpty(t, c.URL)

	ev := paymentdomain.Event{
		ID:         "evt_1",
		Type:       "checkout.session.completed",
		Kind:       paymentdomain.KindSucceeded,
		OrderID:    o.ID,
		SessionID:  c.SessionID,
		PaymentRef: "pi_1",
	}
	resp = e.webhook(t, ev, ordertest.ValidSignature)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var wr webhookResp
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&wr))
	assert.Equal(t, "applied", wr.Outcome)

	resp = e.webhook(t, ev, ordertest.ValidSignature)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&wr))
	assert.Equal(t, "duplicate", wr.Outcome)

	resp = e.do(t, e.admin, http.MethodPost, "/orders/"+o.ID+"/fulfill", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var fulfilled orderResp
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&fulfilled))
	assert.Equal(t, "fulfilled", fulfilled.Status)
	assert.Equal(t, "pi_1", fulfilled.PaymentRef)
}

func TestCheckoutGatewayUnavailable(t *testing.T) {
	e := newEnv(t)
	o := e.createOrder(t)
	e.gateway.Err = apperr.ErrGatewayUnavailable

	resp := e.do(t, e.alice, http.MethodPost, "/payments/create-checkout-session/"+o.ID, nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
}

func TestCheckoutRequiresAuth(t *testing.T) {
	e := newEnv(t)
	resp := e.do(t, "", http.MethodPost, "/payments/create-checkout-session/x", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebhookStatusCodes(t *testing.T) {
	e := newEnv(t)
	o := e.createOrder(t)

	tests := map[string]struct {
		ev        paymentdomain.Event
		signature string
		want      int
	}{
		"bad signature": {
			ev:        paymentdomain.Event{ID: "evt_bad", Kind: paymentdomain.KindSucceeded, OrderID: o.ID},
			signature: "forged",
			want:      http.StatusBadRequest,
		},
		"unknown order": {
			ev:        paymentdomain.Event{ID: "evt_unknown", Kind: paymentdomain.KindSucceeded, OrderID: "99999999-0000-0000-0000-000000000000"},
			signature: ordertest.ValidSignature,
			want:      http.StatusAccepted,
		},
		"ignored type": {
			ev:        paymentdomain.Event{ID: "evt_ignored", Type: "customer.created", Kind: paymentdomain.KindIgnored},
			signature: ordertest.ValidSignature,
			want:      http.StatusOK,
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			resp := e.webhook(t, tt.ev, tt.signature)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}

	got, err := e.store.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, "pending", string(got.Status))
}

func TestWebhookStorageFailureIsRetryable(t *testing.T) {
	e := newEnv(t)
	o := e.createOrder(t)
	e.store.FailOn = "RecordPaymentEvent"

	ev := paymentdomain.Event{ID: "evt_retry", Kind: paymentdomain.KindSucceeded, OrderID: o.ID}
	resp := e.webhook(t, ev, ordertest.ValidSignature)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	resp = e.webhook(t, ev, ordertest.ValidSignature)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
