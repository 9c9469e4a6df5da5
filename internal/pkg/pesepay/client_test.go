package pesepay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paybridge/internal/pkg/cipher"
)

const (
	testIntegrationKey = "int-key-1"
	testEncryptionKey  = "0123456789abcdef0123456789abcdef"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 5*time.Second, StaticCredentials{IntegrationKey: testIntegrationKey, EncryptionKey: testEncryptionKey}, nil)
}

func sealJSON(t *testing.T, key string, v any) string {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	payload, err := cipher.NewKeyDerivedCBC(key).Encrypt(raw)
	require.NoError(t, err)
	return payload
}

func writeEnvelope(w http.ResponseWriter, status int, env map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

func TestInitiatePayment_Success(t *testing.T) {
	var gotPlain map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/payments/initiate", r.URL.Path)
		assert.Equal(t, testIntegrationKey, r.Header.Get("Authorization"))

		body, _ := io.ReadAll(r.Body)
		var env envelope
		require.NoError(t, json.Unmarshal(body, &env))
		plain, err := cipher.NewKeyDerivedCBC(testEncryptionKey).Decrypt(env.Payload)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(plain, &gotPlain))

		writeEnvelope(w, http.StatusOK, map[string]string{
			"payload": sealJSON(t, testEncryptionKey, map[string]string{"referenceNumber": "REF123", "redirectUrl": "https://pay.example/REF123"}),
		})
	})

	res, err := client.InitiatePayment(context.Background(), PaymentRequest{
		AmountDetails:    AmountDetails{Amount: decimal.RequireFromString("50"), CurrencyCode: "USD"},
		ReasonForPayment: "Mug x 2",
		ResultURL:        "https://shop.example/notify",
		ReturnURL:        "https://shop.example/return",
	})
	require.NoError(t, err)
	assert.Equal(t, "REF123", res.ReferenceNumber)
	assert.Equal(t, "https://pay.example/REF123", res.RedirectURL)

	amount := gotPlain["amountDetails"].(map[string]any)
	assert.Equal(t, 50.0, amount["amount"])
	assert.Equal(t, "USD", amount["currencyCode"])
	assert.Equal(t, "Mug x 2", gotPlain["reasonForPayment"])
	assert.Equal(t, "https://shop.example/notify", gotPlain["resultUrl"])
}

func TestInitiatePayment_MessageWithoutPayload(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusBadRequest, map[string]string{"message": "Invalid currency"})
	})

	_, err := client.InitiatePayment(context.Background(), PaymentRequest{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrGatewayProtocol))
	var perr *ProtocolError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "Invalid currency", perr.Message)
}

func TestInitiatePayment_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()
	client := NewClient(srv.URL, time.Second, StaticCredentials{IntegrationKey: testIntegrationKey, EncryptionKey: testEncryptionKey}, nil)

	_, err := client.InitiatePayment(context.Background(), PaymentRequest{})
	assert.True(t, errors.Is(err, ErrGatewayUnreachable), "got %v", err)
}

func TestCheckPaymentStatus_Success(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/payments/check-payment", r.URL.Path)
		assert.Equal(t, "REF123", r.URL.Query().Get("referenceNumber"))
		assert.Equal(t, testIntegrationKey, r.Header.Get("Authorization"))

		writeEnvelope(w, http.StatusOK, map[string]string{
			"payload": sealJSON(t, testEncryptionKey, map[string]any{
				"referenceNumber":              "REF123",
				"transactionStatus":            "SUCCESS",
				"transactionStatusDescription": "ok",
				"amountDetails":                map[string]any{"currencyCode": "USD", "totalTransactionAmount": 50.00},
				"applicationId":                "APP1",
				"dateOfTransaction":            "2024-01-01T00:00:00Z",
			}),
		})
	})

	st, err := client.CheckPaymentStatus(context.Background(), "REF123")
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, st.TransactionStatus)
	assert.Equal(t, "APP1", st.ApplicationID)
	assert.Equal(t, "USD 50.00", st.AmountDetails.String())
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), st.TransactionTime(time.Time{}))
}

func TestCheckPaymentStatus_MessageIsStatusUnavailable(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, map[string]string{"message": "reference not found"})
	})

	_, err := client.CheckPaymentStatus(context.Background(), "REF404")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStatusUnavailable))
	assert.False(t, errors.Is(err, ErrGatewayProtocol))
	var serr *StatusUnavailableError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "reference not found", serr.Message)
}

func TestCheckPaymentStatus_WrongKeyIsDecryptionError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, map[string]string{
			"payload": sealJSON(t, "ffffffffffffffffffffffffffffffff", map[string]string{"referenceNumber": "REF123", "transactionStatus": "SUCCESS"}),
		})
	})

	_, err := client.CheckPaymentStatus(context.Background(), "REF123")
	assert.True(t, errors.Is(err, cipher.ErrDecryption), "got %v", err)
}

func TestCheckPaymentStatus_ServerErrorIsUnreachable(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	})

	_, err := client.CheckPaymentStatus(context.Background(), "REF123")
	assert.True(t, errors.Is(err, ErrGatewayUnreachable), "got %v", err)
}

func TestCheckPaymentStatus_ReferenceMismatch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, map[string]string{
			"payload": sealJSON(t, testEncryptionKey, map[string]string{"referenceNumber": "OTHER", "transactionStatus": "SUCCESS"}),
		})
	})

	_, err := client.CheckPaymentStatus(context.Background(), "REF123")
	assert.True(t, errors.Is(err, ErrGatewayProtocol), "got %v", err)
}

func TestMissingCredentials(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", time.Second, StaticCredentials{}, nil)
	_, err := client.CheckPaymentStatus(context.Background(), "REF123")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestTransactionTimeFallback(t *testing.T) {
	fallback := time.Date(2025, 5, 5, 0, 0, 0, 0, time.UTC)
	st := &PaymentStatus{DateOfTransaction: "yesterday"}
	assert.Equal(t, fallback, st.TransactionTime(fallback))

	st.DateOfTransaction = "2024-03-02 10:11:12"
	assert.Equal(t, time.Date(2024, 3, 2, 10, 11, 12, 0, time.UTC), st.TransactionTime(fallback))
}
