package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"paybridge/internal/config"
	"paybridge/internal/database"
	"paybridge/internal/modules/notification"
	"paybridge/internal/modules/payment"
	"paybridge/internal/modules/settings"
	"paybridge/internal/pkg/pesepay"
	"paybridge/internal/repository"
)

// reconcile_sweep re-checks pending orders whose push notification never
// arrived and whose payer never came back. Run it from cron.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file loaded, using process environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loggerf := log.Printf
	orderRepo := repository.NewOrderRepository(db)
	settingsService := settings.NewService(repository.NewSettingRepository(db), settings.Defaults{
		IntegrationKey: cfg.PesepayIntegrationKey,
		EncryptionKey:  cfg.PesepayEncryptionKey,
		Debug:          cfg.PesepayDebug,
	})
	notificationService := notification.NewService(orderRepo, repository.NewEmailOutboxRepository(db), nil, loggerf)
	gatewayClient := pesepay.NewClient(cfg.PesepayBaseURL, cfg.PesepayHTTPTimeout, settingsService, loggerf)
	engine := payment.NewEngine(orderRepo, notificationService, notificationService, repository.NewCartRepository(db), cfg.AmbiguousStatus, loggerf)
	svc := payment.NewService(orderRepo, gatewayClient, engine, notificationService, repository.NewNotificationLogRepository(db), settingsService, payment.URLs{
		PublicBaseURL:  cfg.PublicBaseURL,
		StoreReturnURL: cfg.StoreReturnURL,
		WebhookSecret:  cfg.WebhookSecret,
	}, loggerf)

	report, err := svc.ReconcilePending(ctx, cfg.SweepOlderThan, cfg.SweepLimit, cfg.SweepConcurrency)
	if err != nil {
		log.Fatalf("reconcile sweep failed: %v", err)
	}

	log.Printf("reconcile sweep completed: scanned=%d completed=%d cancelled=%d unresolved=%d unavailable=%d failed=%d",
		report.Scanned, report.Completed, report.Cancelled, report.Unresolved, report.Unavailable, report.Failed)
}
