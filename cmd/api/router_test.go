package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"paybridge/internal/config"
	"paybridge/internal/database"
	"paybridge/internal/domain"
	"paybridge/internal/middleware"
	"paybridge/internal/pkg/cipher"
	"paybridge/internal/repository"
)

const (
	e2eIntegrationKey = "int-key-e2e"
	e2eEncryptionKey  = "fedcba9876543210fedcba9876543210"
	e2eWebhookSecret  = "e2e-hook-secret"
	e2eReference      = "REF-E2E-1"
)

type envelope struct {
	Payload string `json:"payload,omitempty"`
	Message string `json:"message,omitempty"`
}

type testResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type e2eSuite struct {
	router  *gin.Engine
	orders  *repository.OrderRepository
	carts   *repository.CartRepository
	checks  atomic.Int32
	mu      sync.Mutex
	initReq map[string]any
}

func (s *e2eSuite) initiated() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initReq
}

// fakePesepay speaks the encrypted envelope protocol with a fixed reference.
func (s *e2eSuite) fakePesepay(t *testing.T) *httptest.Server {
	codec := cipher.NewKeyDerivedCBC(e2eEncryptionKey)
	seal := func(v any) string {
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		payload, err := codec.Encrypt(raw)
		require.NoError(t, err)
		return payload
	}
	write := func(w http.ResponseWriter, env envelope) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(env)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != e2eIntegrationKey {
			w.WriteHeader(http.StatusUnauthorized)
			write(w, envelope{Message: "Invalid integration key"})
			return
		}
		switch r.URL.Path {
		case "/payments/initiate":
			body, _ := io.ReadAll(r.Body)
			var env envelope
			require.NoError(t, json.Unmarshal(body, &env))
			plain, err := codec.Decrypt(env.Payload)
			require.NoError(t, err)
			var req map[string]any
			require.NoError(t, json.Unmarshal(plain, &req))
			s.mu.Lock()
			s.initReq = req
			s.mu.Unlock()
			write(w, envelope{Payload: seal(map[string]string{
				"referenceNumber": e2eReference,
				"redirectUrl":     "https://pay.example/checkout/" + e2eReference,
			})})
		case "/payments/check-payment":
			s.checks.Add(1)
			if r.URL.Query().Get("referenceNumber") != e2eReference {
				write(w, envelope{Message: "Transaction not found"})
				return
			}
			write(w, envelope{Payload: seal(map[string]any{
				"referenceNumber":              e2eReference,
				"transactionStatus":            "SUCCESS",
				"transactionStatusDescription": "ok",
				"applicationId":                "APP-E2E",
				"dateOfTransaction":            "2024-03-05T10:00:00Z",
				"amountDetails": map[string]any{
					"currencyCode":           "USD",
					"totalTransactionAmount": 50,
				},
			})})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func setupSuite(t *testing.T) *e2eSuite {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.Connect(fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_")))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	s := &e2eSuite{
		orders: repository.NewOrderRepository(db),
		carts:  repository.NewCartRepository(db),
	}
	gw := s.fakePesepay(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret-pass"), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := &config.Config{
		AppEnv:                "test",
		PesepayBaseURL:        gw.URL,
		PesepayIntegrationKey: e2eIntegrationKey,
		PesepayEncryptionKey:  e2eEncryptionKey,
		PesepayHTTPTimeout:    5 * time.Second,
		AmbiguousStatus:       config.AmbiguousCancel,
		WebhookSecret:         e2eWebhookSecret,
		PublicBaseURL:         "https://shop.example",
		StoreReturnURL:        "https://shop.example/checkout/order-received",
		JWTSecret:             "test_secret_key_32_characters_min",
		JWTAccessTTL:          time.Hour,
		AdminUsername:         "merchant",
		AdminPasswordHash:     string(hash),
	}
	r, closeHub := newRouter(cfg, db, nil)
	t.Cleanup(closeHub)
	s.router = r
	return s
}

func (s *e2eSuite) seedOrder(t *testing.T, key string) *domain.Order {
	t.Helper()
	ctx := context.Background()
	session := "sess-" + key
	require.NoError(t, s.carts.Create(ctx, &domain.Cart{
		SessionID: session,
		Items:     []domain.CartItem{{ProductName: "Camera", Quantity: 1, UnitPrice: decimal.RequireFromString("50.00")}},
	}))
	order := &domain.Order{
		OrderKey:      key,
		Status:        domain.OrderPending,
		PaymentMethod: domain.PaymentMethodPesepay,
		Currency:      "USD",
		Total:         decimal.RequireFromString("50.00"),
		CustomerEmail: "payer@example.com",
		CartSessionID: session,
		Items:         []domain.OrderItem{{Name: "Camera", Quantity: 1, LineTotal: decimal.RequireFromString("50.00")}},
	}
	require.NoError(t, s.orders.Create(ctx, order))
	return order
}

func (s *e2eSuite) do(method, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	s := setupSuite(t)
	w := s.do(http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestCheckoutNotifyAndAdminFlow(t *testing.T) {
	s := setupSuite(t)
	order := s.seedOrder(t, "wc_order_e2e")

	// checkout
	w := s.do(http.MethodPost, fmt.Sprintf("/api/v1/orders/%d/checkout", order.ID), []byte(`{"order_key":"wc_order_e2e"}`), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "https://pay.example/checkout/"+e2eReference)

	initReq := s.initiated()
	require.NotNil(t, initReq)
	assert.Equal(t, "https://shop.example/api/v1/payments/pesepay/notify?token="+e2eWebhookSecret, initReq["resultUrl"])
	assert.Contains(t, initReq["returnUrl"], "key=wc_order_e2e")

	// unsigned notification is rejected before any gateway call
	body := []byte(`{"referenceNumber":"` + e2eReference + `"}`)
	w = s.do(http.MethodPost, "/api/v1/payments/pesepay/notify", body, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, int32(0), s.checks.Load())

	// signed notification completes the order
	signed := map[string]string{middleware.SignatureHeader: middleware.Sign(e2eWebhookSecret, body)}
	w = s.do(http.MethodPost, "/api/v1/payments/pesepay/notify", body, signed)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"outcome":"completed"`)

	// a retry is acknowledged without a second transition
	w = s.do(http.MethodPost, "/api/v1/payments/pesepay/notify", body, signed)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"outcome":"already_finalized"`)

	stored, err := s.orders.GetWithNotes(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderCompleted, stored.Status)
	assert.Equal(t, e2eReference, stored.TransactionID)
	require.NotNil(t, stored.PaidTime)
	assert.Len(t, stored.Notes, 3)

	// returning payer sees the completed page without another status call
	checks := s.checks.Load()
	w = s.do(http.MethodGet, fmt.Sprintf("/api/v1/orders/%d/received?key=wc_order_e2e", order.ID), nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"completed"`)
	assert.Equal(t, checks, s.checks.Load())

	// admin can log in and inspect the order with its delivery log
	w = s.do(http.MethodPost, "/admin/login", []byte(`{"username":"merchant","password":"s3cret-pass"}`), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var login testResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))
	var token struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(login.Data, &token))
	require.NotEmpty(t, token.AccessToken)

	auth := map[string]string{"Authorization": "Bearer " + token.AccessToken}
	w = s.do(http.MethodGet, fmt.Sprintf("/admin/orders/%d", order.ID), nil, auth)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var detail testResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &detail))
	var payload struct {
		Order         domain.Order                    `json:"order"`
		Notifications []domain.PaymentNotificationLog `json:"notifications"`
	}
	require.NoError(t, json.Unmarshal(detail.Data, &payload))
	assert.Equal(t, domain.OrderCompleted, payload.Order.Status)
	assert.Len(t, payload.Notifications, 2)

	w = s.do(http.MethodGet, "/admin/settings", nil, auth)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), e2eEncryptionKey)
}

func TestAdminRoutesRequireToken(t *testing.T) {
	s := setupSuite(t)
	w := s.do(http.MethodGet, "/admin/orders", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/admin/login", []byte(`{"username":"merchant","password":"wrong"}`), nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
