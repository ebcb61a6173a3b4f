package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Shantanu-Kulkarni1229/Recycle-IT-sub002/internal/auth"
	"github.com/Shantanu-Kulkarni1229/Recycle-IT-sub002/internal/config"
	"github.com/Shantanu-Kulkarni1229/Recycle-IT-sub002/internal/identity"
	"github.com/Shantanu-Kulkarni1229/Recycle-IT-sub002/internal/lock"
	"github.com/Shantanu-Kulkarni1229/Recycle-IT-sub002/internal/payment"
)

const (
	keySecret     = "rzp_secret_for_route_tests"
	webhookSecret = "whsec_for_route_tests"
)

type stubGateway struct {
	*payment.Razorpay
	mu sync.Mutex
	n  int
}

func (g *stubGateway) CreateOrder(_ context.Context, req payment.ProviderOrderRequest) (payment.ProviderOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return payment.ProviderOrder{ID: fmt.Sprintf("order_ROUTE%05d", g.n), Amount: req.Amount, Currency: req.Currency, Receipt: req.Receipt, Status: "created"}, nil
}

type noWelcome struct{}

func (noWelcome) EnqueueWelcome(context.Context, identity.Role, string) error { return nil }

type routeFixture struct {
	handler    http.Handler
	authSvc    *auth.Service
	identities *identity.MemoryStore
}

func newRouteFixture(t *testing.T) routeFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	identities := identity.NewMemoryStore()
	authSvc, err := auth.NewService(auth.Config{Store: identities, Secret: "route-test-secret-0123456789abcdef"})
	require.NoError(t, err)

	cfg := &config.Config{
		AppEnv:                "test",
		IdempotencyTTL:        time.Hour,
		WebhookReplayTTL:      time.Hour,
		IdentityLookupTimeout: time.Second,
		RateLimitWindow:       time.Minute,
		RateLimitMax:          100,
		BodyLimitBytes:        1 << 16,
		LockTTL:               time.Second,
	}
	srv := &server{
		cfg:    cfg,
		logger: zerolog.Nop(),
		redis:  client,
		auth:   authSvc,
		payments: &payment.Service{
			Store:     payment.NewMemoryStore(),
			Provider:  &stubGateway{Razorpay: payment.NewRazorpay("rzp_test_route", keySecret, webhookSecret, nil)},
			Locker:    lock.Locker{R: client, RetryBackoff: 5 * time.Millisecond},
			LockTTL:   time.Second,
			Replay:    client,
			ReplayTTL: time.Hour,
		},
		welcome: noWelcome{},
	}
	return routeFixture{handler: srv.routes(), authSvc: authSvc, identities: identities}
}

func (f routeFixture) do(method, path, token, body string, headers ...string) (*httptest.ResponseRecorder, map[string]any) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	var out map[string]any
	_ = json.Unmarshal(rr.Body.Bytes(), &out)
	return rr, out
}

func sign(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestCheckoutFlow(t *testing.T) {
	f := newRouteFixture(t)

	rr, body := f.do(http.MethodPost, "/api/auth/user/register", "", `{"name":"Asha Rao","email":"asha@example.com","password":"s3cure-pass"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	token := body["token"].(string)

	rr, body = f.do(http.MethodPost, "/api/payments/create-order", token, `{"amount":49900,"serviceType":"pickup","deviceInfo":"Old laptop"}`,
		"Idempotency-Key", "checkout-1")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	data := body["data"].(map[string]any)
	orderID := data["orderId"].(string)
	require.Equal(t, "INR", data["currency"])
	require.Equal(t, "rzp_test_route", data["keyId"])

	rr, _ = f.do(http.MethodPost, "/api/payments/create-order", token, `{"amount":49900}`, "Idempotency-Key", "checkout-1")
	require.Equal(t, http.StatusConflict, rr.Code)

	verify := fmt.Sprintf(`{"orderId":%q,"paymentId":"pay_ROUTE00001","signature":%q}`, orderID, sign(keySecret, orderID+"|pay_ROUTE00001"))
	rr, body = f.do(http.MethodPost, "/api/payments/verify", token, verify)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Equal(t, true, body["success"])

	rr, body = f.do(http.MethodGet, "/api/payments/orders/"+orderID, token, "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "paid", body["data"].(map[string]any)["status"])

	rr, body = f.do(http.MethodGet, "/api/admin/payments", token, "")
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, auth.MsgNotAdmin, body["message"])
}

func TestCreateOrderRejections(t *testing.T) {
	f := newRouteFixture(t)

	rr, body := f.do(http.MethodPost, "/api/payments/create-order", "", `{"amount":100}`)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, auth.MsgNoToken, body["message"])

	f.identities.Put(identity.Recycler{ID: "r1"}, "r1@example.com", "")
	recyclerToken, _, err := f.authSvc.GenerateToken("r1", identity.RoleRecycler)
	require.NoError(t, err)
	rr, _ = f.do(http.MethodPost, "/api/payments/create-order", recyclerToken, `{"amount":100}`)
	require.Equal(t, http.StatusForbidden, rr.Code)

	f.identities.Put(identity.User{ID: "u1"}, "u1@example.com", "")
	userToken, _, err := f.authSvc.GenerateToken("u1", identity.RoleUser)
	require.NoError(t, err)
	rr, body = f.do(http.MethodPost, "/api/payments/create-order", userToken, `{"amount":50,"currency":"EUR"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "Validation failed", body["message"])
	require.Len(t, body["errors"], 2)
}

func TestWebhookRoute(t *testing.T) {
	f := newRouteFixture(t)
	payload := `{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_X","order_id":"order_unknown","amount":100}}}}`

	rr, body := f.do(http.MethodPost, "/api/payments/webhook", "", payload)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "Webhook signature missing", body["message"])

	rr, body = f.do(http.MethodPost, "/api/payments/webhook", "", payload, payment.SignatureHeader, "deadbeef")
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "Invalid webhook signature", body["message"])

	rr, body = f.do(http.MethodPost, "/api/payments/webhook", "", payload, payment.SignatureHeader, sign(webhookSecret, payload))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "Webhook processed", body["message"])

	rr, body = f.do(http.MethodPost, "/api/payments/webhook", "", payload, payment.SignatureHeader, sign(webhookSecret, payload))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "Duplicate webhook ignored", body["message"])
}

func TestAdminListAndHealth(t *testing.T) {
	f := newRouteFixture(t)
	f.identities.Put(identity.User{ID: "root", Admin: true}, "root@example.com", "")
	token, _, err := f.authSvc.GenerateToken("root", identity.RoleUser)
	require.NoError(t, err)

	rr, body := f.do(http.MethodGet, "/api/admin/payments?page=1&limit=10", token, "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, true, body["success"])

	rr, _ = f.do(http.MethodGet, "/health/live", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))

	rr, body = f.do(http.MethodGet, "/api/nope", "", "")
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, "Route not found", body["message"])
}
