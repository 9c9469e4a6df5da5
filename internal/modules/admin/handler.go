package admin

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"paybridge/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.POST("/login", h.Login)
}

func (h *Handler) RegisterRoutes(admin *gin.RouterGroup) {
	admin.GET("/orders", h.ListOrders)
	admin.GET("/orders/:id", h.GetOrder)
}

// Login godoc
// @Summary      Merchant admin login
// @Description  Exchanges the back-office credentials for a bearer token
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        body body LoginRequest true "Credentials"
// @Success      200 {object} map[string]interface{}
// @Failure      400 {object} map[string]interface{}
// @Failure      401 {object} map[string]interface{}
// @Failure      503 {object} map[string]interface{}
// @Router       /admin/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	res, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			response.Error(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password")
		case errors.Is(err, ErrLoginDisabled):
			response.Error(c, http.StatusServiceUnavailable, "LOGIN_DISABLED", err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Login failed")
		}
		return
	}
	response.Success(c, http.StatusOK, res)
}

// ListOrders godoc
// @Summary      List orders
// @Description  Paginated orders, newest first, optionally filtered by status
// @Tags         Admin
// @Security     BearerAuth
// @Produce      json
// @Param        status query string false "pending, completed or cancelled"
// @Param        page   query int    false "Page number" default(1)
// @Param        limit  query int    false "Page size" default(20)
// @Success      200 {object} response.PageData
// @Failure      400 {object} map[string]interface{}
// @Router       /admin/orders [get]
func (h *Handler) ListOrders(c *gin.Context) {
	page := parseIntDefault(c.Query("page"), 1)
	limit := parseIntDefault(c.Query("limit"), 20)

	var filter OrderListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	log.Printf("admin action: ListOrders subject=%s status=%s page=%d limit=%d", c.GetString("subject"), filter.Status, page, limit)

	orders, total, err := h.service.ListOrders(c.Request.Context(), filter.Status, page, limit)
	if err != nil {
		if errors.Is(err, ErrInvalidStatus) {
			response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
			return
		}
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	response.Paginated(c, orders, total, page, limit)
}

// GetOrder godoc
// @Summary      Order detail
// @Description  Order with audit notes and the payment notifications received for it
// @Tags         Admin
// @Security     BearerAuth
// @Produce      json
// @Param        id path int true "Order ID"
// @Success      200 {object} OrderDetail
// @Failure      404 {object} map[string]interface{}
// @Router       /admin/orders/{id} [get]
func (h *Handler) GetOrder(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid order ID")
		return
	}
	detail, err := h.service.GetOrder(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			response.Error(c, http.StatusNotFound, "NOT_FOUND", "Order not found")
			return
		}
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	response.Success(c, http.StatusOK, detail)
}

func parseIntDefault(v string, def int) int {
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
