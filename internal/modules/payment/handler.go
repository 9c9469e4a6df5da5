package payment

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"paybridge/internal/pkg/cipher"
	"paybridge/internal/pkg/pesepay"

	"github.com/gin-gonic/gin"
)

const checkoutFailedMessage = "Payment initialization failed, please try again."

type Handler struct {
	service *Service
	loggerf func(format string, args ...interface{})
}

func NewHandler(service *Service, loggerf func(format string, args ...interface{})) *Handler {
	if loggerf == nil {
		loggerf = func(string, ...interface{}) {}
	}
	return &Handler{service: service, loggerf: loggerf}
}

func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.POST("/orders/:id/checkout", h.Checkout)
	rg.GET("/orders/:id/received", h.Received)
}

// RegisterWebhookRoutes expects rg to carry the webhook authentication.
func (h *Handler) RegisterWebhookRoutes(rg *gin.RouterGroup) {
	rg.POST("/payments/pesepay/notify", h.Notify)
}

// Checkout godoc
// @Summary      Start a Pesepay payment
// @Description  Registers the order with Pesepay and returns the hosted checkout URL
// @Tags         Payments
// @Accept       json
// @Produce      json
// @Param        id   path int             true "Order ID"
// @Param        body body CheckoutRequest true "Order key"
// @Success      200 {object} CheckoutResponse
// @Failure      400 {object} ErrorResponse
// @Failure      403 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      502 {object} ErrorResponse
// @Router       /orders/{id}/checkout [post]
func (h *Handler) Checkout(c *gin.Context) {
	orderID, ok := parseOrderID(c)
	if !ok {
		return
	}
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	res, err := h.service.Checkout(c.Request.Context(), orderID, req.OrderKey)
	if err != nil {
		h.loggerf("level=error msg=checkout failed order_id=%d err=%v", orderID, err)
		var protocol *pesepay.ProtocolError
		switch {
		case errors.As(err, &protocol) && protocol.Message != "":
			c.JSON(http.StatusBadGateway, ErrorResponse{Error: protocol.Message})
		case isGatewayError(err):
			c.JSON(http.StatusBadGateway, ErrorResponse{Error: checkoutFailedMessage})
		default:
			writeOrderError(c, err)
		}
		return
	}
	c.JSON(http.StatusOK, CheckoutResponse{Result: "success", Redirect: res.RedirectURL, ReferenceNumber: res.ReferenceNumber})
}

// Notify godoc
// @Summary      Pesepay result callback
// @Description  Server-to-server notification; re-checks the payment with Pesepay and reconciles the order (idempotent)
// @Tags         Payments
// @Accept       json
// @Produce      json
// @Param        X-Pesepay-Signature header string false "hex HMAC-SHA256 of the body"
// @Param        token query string false "shared webhook secret"
// @Success      200 {object} NotifyResponse
// @Failure      403 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Failure      502 {object} ErrorResponse
// @Router       /payments/pesepay/notify [post]
func (h *Handler) Notify(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unreadable body"})
		return
	}
	ref := ExtractReference(body, c.Request.URL.Query())
	h.loggerf("level=info msg=pesepay notification received reference=%s remote_ip=%s", ref, c.ClientIP())

	res, err := h.service.HandleNotification(c.Request.Context(), Notification{
		Reference: ref,
		Body:      string(body),
		RemoteIP:  c.ClientIP(),
	})
	if err != nil {
		if isIgnorable(err) {
			h.loggerf("level=warn msg=pesepay notification ignored reference=%s reason=%v", ref, err)
			c.JSON(http.StatusOK, NotifyResponse{Status: "ignored"})
			return
		}
		h.loggerf("level=error msg=pesepay notification failed reference=%s err=%v", ref, err)
		if isGatewayError(err) {
			c.JSON(http.StatusBadGateway, ErrorResponse{Error: "payment gateway error"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
		return
	}
	c.JSON(http.StatusOK, NotifyResponse{Status: "ok", Outcome: res.Outcome})
}

// Received godoc
// @Summary      Order received page data
// @Description  Reconciles the payment when the payer returns from Pesepay and returns the thank-you text
// @Tags         Payments
// @Produce      json
// @Param        id  path  int    true "Order ID"
// @Param        key query string true "Order key"
// @Success      200 {object} ReturnResult
// @Failure      403 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /orders/{id}/received [get]
func (h *Handler) Received(c *gin.Context) {
	orderID, ok := parseOrderID(c)
	if !ok {
		return
	}
	res, err := h.service.HandleReturn(c.Request.Context(), orderID, strings.TrimSpace(c.Query("key")))
	if err != nil {
		h.loggerf("level=error msg=order received failed order_id=%d err=%v", orderID, err)
		writeOrderError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func parseOrderID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid order id"})
		return 0, false
	}
	return id, true
}

func writeOrderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrOrderNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, ErrOrderKeyMismatch):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: err.Error()})
	case errors.Is(err, ErrOrderNotPayable), errors.Is(err, ErrWrongPaymentMethod):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}

func isGatewayError(err error) bool {
	return errors.Is(err, pesepay.ErrGatewayUnreachable) ||
		errors.Is(err, pesepay.ErrGatewayProtocol) ||
		errors.Is(err, pesepay.ErrNotConfigured) ||
		errors.Is(err, cipher.ErrDecryption)
}
