package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"paybridge/internal/config"
	"paybridge/internal/database"
	"paybridge/internal/domain"
	"paybridge/internal/repository"
)

// seed creates a demo pending order with its cart and prints a bcrypt hash
// for ADMIN_PASSWORD_HASH.
func main() {
	password := flag.String("admin-password", "admin123", "password to hash for ADMIN_PASSWORD_HASH")
	currency := flag.String("currency", "USD", "order currency")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("no .env file loaded, using process environment")
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("DB connection failed:", err)
	}
	log.Println("Running AutoMigrate...")
	if err := database.Migrate(db); err != nil {
		log.Fatal("AutoMigrate failed:", err)
	}

	ctx := context.Background()
	session := uuid.NewString()
	carts := repository.NewCartRepository(db)
	if err := carts.Create(ctx, &domain.Cart{
		SessionID: session,
		Items: []domain.CartItem{
			{ProductName: "Studio light kit", Quantity: 1, UnitPrice: decimal.RequireFromString("35.00")},
			{ProductName: "Backdrop", Quantity: 1, UnitPrice: decimal.RequireFromString("15.00")},
		},
	}); err != nil {
		log.Fatalf("create cart: %v", err)
	}

	order := &domain.Order{
		OrderKey:      "wc_order_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12],
		Status:        domain.OrderPending,
		PaymentMethod: domain.PaymentMethodPesepay,
		Currency:      strings.ToUpper(*currency),
		Total:         decimal.RequireFromString("50.00"),
		CustomerEmail: "payer@example.com",
		CartSessionID: session,
		Items: []domain.OrderItem{
			{Name: "Studio light kit", Meta: "Power: 600W", Quantity: 1, LineTotal: decimal.RequireFromString("35.00")},
			{Name: "Backdrop", Quantity: 1, LineTotal: decimal.RequireFromString("15.00")},
		},
	}
	if err := repository.NewOrderRepository(db).Create(ctx, order); err != nil {
		log.Fatalf("create order: %v", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	log.Printf("seeded order id=%d key=%s cart_session=%s", order.ID, order.OrderKey, session)
	fmt.Printf("checkout: curl -X POST %s/api/v1/orders/%d/checkout -d '{\"order_key\":\"%s\"}'\n", cfg.PublicBaseURL, order.ID, order.OrderKey)
	fmt.Printf("ADMIN_PASSWORD_HASH=%s\n", hash)
}
