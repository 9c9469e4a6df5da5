package notification

import (
	"log"
	"net/http"
	"time"

	"paybridge/internal/pkg/jwt"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Handler struct {
	hub        *Hub
	jwtService *jwt.Service
}

func NewHandler(hub *Hub, jwtService *jwt.Service) *Handler {
	return &Handler{hub: hub, jwtService: jwtService}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/admin/orders/events", h.Events)
}

// Events godoc
// @Summary      Order event stream
// @Description  WebSocket stream of order status changes. Browsers cannot set headers, so the token comes in the query.
// @Tags         Admin
// @Param        token query string true "JWT access token"
// @Router       /admin/orders/events [get]
func (h *Handler) Events(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Token is required. Use ?token=YOUR_JWT_TOKEN"})
		return
	}
	claims, err := h.jwtService.ValidateToken(token)
	if err != nil || claims.Role != jwt.RoleMerchantAdmin {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}

	id := h.hub.Register(conn)
	log.Printf("dashboard %s connected subject=%s", id, claims.Subject)
	defer func() {
		h.hub.Unregister(id)
		log.Printf("dashboard %s disconnected", id)
	}()

	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})

	done := make(chan struct{})
	defer close(done)
	go h.pingLoop(id, done)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("websocket error dashboard=%s: %v", id, err)
			}
			return
		}
	}
}

func (h *Handler) pingLoop(id string, done <-chan struct{}) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := h.hub.Ping(id); err != nil {
				return
			}
		}
	}
}
