package pesepay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"paybridge/internal/pkg/cipher"
)

const (
	DefaultBaseURL = "https://api.pesepay.com/api/payments-engine/v1"
	DefaultTimeout = 5 * time.Minute

	maxResponseBody = 1 << 20
)

type Credentials struct {
	IntegrationKey string
	EncryptionKey  string
}

type credentialsSource interface {
	Credentials(ctx context.Context) (Credentials, error)
}

// StaticCredentials serves fixed keys, mostly for tests and one-off tools.
type StaticCredentials Credentials

func (s StaticCredentials) Credentials(context.Context) (Credentials, error) {
	return Credentials(s), nil
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	creds      credentialsSource
	newCodec   func(key string) cipher.Codec
	loggerf    func(format string, args ...interface{})
}

func NewClient(baseURL string, timeout time.Duration, creds credentialsSource, loggerf func(format string, args ...interface{})) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if loggerf == nil {
		loggerf = func(string, ...interface{}) {}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		creds:      creds,
		newCodec:   func(key string) cipher.Codec { return cipher.NewKeyDerivedCBC(key) },
		loggerf:    loggerf,
	}
}

// InitiatePayment registers a payment with the processor and returns the
// reference number and the hosted checkout URL.
func (c *Client) InitiatePayment(ctx context.Context, req PaymentRequest) (*InitiateResult, error) {
	creds, codec, err := c.resolve(ctx)
	if err != nil {
		return nil, err
	}

	plain, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode payment request: %w", err)
	}
	payload, err := codec.Encrypt(plain)
	if err != nil {
		return nil, fmt.Errorf("encrypt payment request: %w", err)
	}
	body, err := json.Marshal(envelope{Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/payments/initiate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build initiate request: %w", err)
	}
	c.setHeaders(httpReq, creds)

	env, status, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}
	if env.Payload == "" {
		msg := env.Message
		if msg == "" {
			msg = "response has no payload"
		}
		return nil, &ProtocolError{StatusCode: status, Message: msg}
	}

	var res InitiateResult
	if err := open(codec, env.Payload, &res); err != nil {
		return nil, err
	}
	if res.ReferenceNumber == "" || res.RedirectURL == "" {
		return nil, &ProtocolError{StatusCode: status, Message: "initiate response is missing referenceNumber or redirectUrl"}
	}
	c.loggerf("level=info msg=pesepay payment initiated reference=%s", res.ReferenceNumber)
	return &res, nil
}

// CheckPaymentStatus fetches the current status of a payment. A processor
// reply with a message and no payload is returned as *StatusUnavailableError.
func (c *Client) CheckPaymentStatus(ctx context.Context, reference string) (*PaymentStatus, error) {
	creds, codec, err := c.resolve(ctx)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("referenceNumber", reference)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/payments/check-payment?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build check-payment request: %w", err)
	}
	c.setHeaders(httpReq, creds)

	env, status, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}
	if env.Payload == "" {
		if env.Message != "" {
			return nil, &StatusUnavailableError{Reference: reference, Message: env.Message}
		}
		return nil, &ProtocolError{StatusCode: status, Message: "response has no payload"}
	}

	var st PaymentStatus
	if err := open(codec, env.Payload, &st); err != nil {
		return nil, err
	}
	if st.ReferenceNumber != "" && st.ReferenceNumber != reference {
		return nil, &ProtocolError{StatusCode: status, Message: fmt.Sprintf("status response is for reference %s", st.ReferenceNumber)}
	}
	if st.ReferenceNumber == "" {
		st.ReferenceNumber = reference
	}
	return &st, nil
}

func (c *Client) resolve(ctx context.Context) (Credentials, cipher.Codec, error) {
	if c.creds == nil {
		return Credentials{}, nil, ErrNotConfigured
	}
	creds, err := c.creds.Credentials(ctx)
	if err != nil {
		return Credentials{}, nil, fmt.Errorf("load pesepay credentials: %w", err)
	}
	if creds.IntegrationKey == "" || creds.EncryptionKey == "" {
		return Credentials{}, nil, ErrNotConfigured
	}
	return creds, c.newCodec(creds.EncryptionKey), nil
}

func (c *Client) setHeaders(req *http.Request, creds Credentials) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", creds.IntegrationKey)
}

func (c *Client) do(req *http.Request) (*envelope, int, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrGatewayUnreachable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%w: read response: %v", ErrGatewayUnreachable, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, resp.StatusCode, fmt.Errorf("%w: status %d", ErrGatewayUnreachable, resp.StatusCode)
		}
		c.loggerf("level=error msg=pesepay response is not json method=%s path=%s status=%d", req.Method, req.URL.Path, resp.StatusCode)
		return nil, resp.StatusCode, &ProtocolError{StatusCode: resp.StatusCode, Message: "response is not a json envelope"}
	}
	if env.Payload == "" && resp.StatusCode >= http.StatusInternalServerError {
		return nil, resp.StatusCode, fmt.Errorf("%w: status %d message=%q", ErrGatewayUnreachable, resp.StatusCode, env.Message)
	}
	return &env, resp.StatusCode, nil
}

func open(codec cipher.Codec, payload string, v any) error {
	plain, err := codec.Decrypt(payload)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(plain, v); err != nil {
		return fmt.Errorf("%w: decode payload: %v", cipher.ErrDecryption, err)
	}
	return nil
}
