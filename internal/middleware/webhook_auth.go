package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log"
	"net/http"
	"strings"

	"paybridge/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

const (
	SignatureHeader = "X-Pesepay-Signature"

	maxWebhookBody = 64 << 10
)

// WebhookAuth protects the processor callback. A request passes with either a
// hex HMAC-SHA256 of the raw body in X-Pesepay-Signature, or a token query
// parameter equal to the shared secret. The body is restored for the handler.
func WebhookAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			logWebhookAuthFailure(c, http.StatusInternalServerError, "secret_not_configured")
			response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Webhook secret is not configured")
			c.Abort()
			return
		}

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
		if err != nil {
			logWebhookAuthFailure(c, http.StatusBadRequest, "unreadable_body")
			response.Error(c, http.StatusBadRequest, "BAD_REQUEST", "Request body could not be read")
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		if sig := strings.TrimSpace(c.GetHeader(SignatureHeader)); sig != "" {
			if !validSignature(secret, body, sig) {
				logWebhookAuthFailure(c, http.StatusForbidden, "invalid_signature")
				response.Error(c, http.StatusForbidden, "AUTH_INVALID", "Invalid webhook signature")
				c.Abort()
				return
			}
			c.Next()
			return
		}

		token := c.Query("token")
		if token == "" {
			logWebhookAuthFailure(c, http.StatusUnauthorized, "missing_credentials")
			response.Error(c, http.StatusUnauthorized, "AUTH_MISSING", "Webhook signature or token is required")
			c.Abort()
			return
		}
		if !hmac.Equal([]byte(token), []byte(secret)) {
			logWebhookAuthFailure(c, http.StatusForbidden, "invalid_token")
			response.Error(c, http.StatusForbidden, "AUTH_INVALID", "Invalid webhook token")
			c.Abort()
			return
		}

		c.Next()
	}
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func validSignature(secret string, body []byte, sig string) bool {
	sig = strings.TrimPrefix(strings.ToLower(sig), "sha256=")
	got, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

func logWebhookAuthFailure(c *gin.Context, status int, reason string) {
	log.Printf("pesepay_webhook_auth status=%d request_id=%s client_ip=%s reason=%s", status, requestID(c), c.ClientIP(), reason)
}
