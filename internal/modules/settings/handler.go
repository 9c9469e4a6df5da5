package settings

import (
	"errors"
	"net/http"

	"paybridge/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

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

func (h *Handler) RegisterRoutes(admin *gin.RouterGroup) {
	admin.GET("/settings", h.GetSettings)
	admin.PUT("/settings", h.UpdateSettings)
}

// GetSettings godoc
// @Summary      Gateway settings
// @Description  Returns the gateway settings with secrets masked
// @Tags         Admin
// @Security     BearerAuth
// @Produce      json
// @Success      200 {object} View
// @Router       /admin/settings [get]
func (h *Handler) GetSettings(c *gin.Context) {
	v, err := h.service.View(c.Request.Context())
	if err != nil {
		h.loggerf("level=error msg=read settings failed err=%v", err)
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to read settings")
		return
	}
	response.Success(c, http.StatusOK, v)
}

// UpdateSettings godoc
// @Summary      Update gateway settings
// @Tags         Admin
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        body body UpdateRequest true "Settings"
// @Success      200 {object} View
// @Router       /admin/settings [put]
func (h *Handler) UpdateSettings(c *gin.Context) {
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	if err := h.service.Update(c.Request.Context(), req); err != nil {
		if errors.Is(err, ErrEncryptionKeyTooShort) {
			response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
			return
		}
		h.loggerf("level=error msg=update settings failed err=%v", err)
		response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to save settings")
		return
	}
	h.loggerf("level=info msg=gateway settings updated subject=%s", c.GetString("subject"))
	h.GetSettings(c)
}
