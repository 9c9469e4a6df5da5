package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"paybridge/internal/config"
	"paybridge/internal/middleware"
	"paybridge/internal/modules/admin"
	"paybridge/internal/modules/notification"
	"paybridge/internal/modules/payment"
	"paybridge/internal/modules/settings"
	jwtsvc "paybridge/internal/pkg/jwt"
	"paybridge/internal/pkg/pesepay"
	"paybridge/internal/repository"
)

// newRouter wires repositories, services and handlers. The returned func
// releases the websocket hub.
func newRouter(cfg *config.Config, db *gorm.DB, loggerf func(format string, args ...interface{})) (*gin.Engine, func()) {
	orderRepo := repository.NewOrderRepository(db)
	cartRepo := repository.NewCartRepository(db)
	settingRepo := repository.NewSettingRepository(db)
	deliveryRepo := repository.NewNotificationLogRepository(db)
	outboxRepo := repository.NewEmailOutboxRepository(db)

	settingsService := settings.NewService(settingRepo, settings.Defaults{
		IntegrationKey: cfg.PesepayIntegrationKey,
		EncryptionKey:  cfg.PesepayEncryptionKey,
		Debug:          cfg.PesepayDebug,
	})
	settingsHandler := settings.NewHandler(settingsService, loggerf)

	hub := notification.NewHub()
	notificationService := notification.NewService(orderRepo, outboxRepo, hub, loggerf)

	j := jwtsvc.New(cfg.JWTSecret, cfg.JWTAccessTTL)
	notificationHandler := notification.NewHandler(hub, j)

	gatewayClient := pesepay.NewClient(cfg.PesepayBaseURL, cfg.PesepayHTTPTimeout, settingsService, loggerf)
	engine := payment.NewEngine(orderRepo, notificationService, notificationService, cartRepo, cfg.AmbiguousStatus, loggerf)
	paymentService := payment.NewService(orderRepo, gatewayClient, engine, notificationService, deliveryRepo, settingsService, payment.URLs{
		PublicBaseURL:  cfg.PublicBaseURL,
		StoreReturnURL: cfg.StoreReturnURL,
		WebhookSecret:  cfg.WebhookSecret,
	}, loggerf)
	paymentHandler := payment.NewHandler(paymentService, loggerf)

	adminService := admin.NewService(orderRepo, deliveryRepo, j, cfg.AdminUsername, cfg.AdminPasswordHash, loggerf)
	adminHandler := admin.NewHandler(adminService)

	r := gin.New()
	r.Use(gin.Logger(), middleware.ErrorLogger())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "ws_clients": hub.OnlineCount()})
	})

	v1 := r.Group("/api/v1")
	{
		paymentHandler.RegisterPublicRoutes(v1)

		webhooks := v1.Group("")
		webhooks.Use(middleware.WebhookAuth(cfg.WebhookSecret))
		paymentHandler.RegisterWebhookRoutes(webhooks)
	}

	adminGroup := r.Group("/admin")
	adminGroup.Use(middleware.CORS(cfg.CORSAllowedOrigins))
	{
		adminHandler.RegisterPublicRoutes(adminGroup)

		protected := adminGroup.Group("")
		protected.Use(middleware.JWTAuth(j), middleware.MerchantAdminOnly())
		adminHandler.RegisterRoutes(protected)
		settingsHandler.RegisterRoutes(protected)
	}
	notificationHandler.RegisterRoutes(r.Group(""))

	return r, hub.Close
}
