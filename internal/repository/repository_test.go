package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"paybridge/internal/database"
	"paybridge/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Connect(fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_")))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func createOrder(t *testing.T, repo *OrderRepository, key string) *domain.Order {
	t.Helper()
	o := &domain.Order{
		OrderKey:      key,
		Status:        domain.OrderPending,
		PaymentMethod: domain.PaymentMethodPesepay,
		Currency:      "USD",
		Total:         decimal.RequireFromString("50.00"),
		Items:         []domain.OrderItem{{Name: "Camera", Quantity: 1, LineTotal: decimal.RequireFromString("50.00")}},
	}
	require.NoError(t, repo.Create(context.Background(), o))
	return o
}

func TestAttachReference(t *testing.T) {
	db := setupTestDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()
	a := createOrder(t, repo, "key-a")
	b := createOrder(t, repo, "key-b")

	require.NoError(t, repo.AttachReference(ctx, a.ID, "REF-A", "https://pay.example/a", "first", "second"))

	id, err := repo.FindOrderByReference(ctx, "REF-A")
	require.NoError(t, err)
	assert.Equal(t, a.ID, id)

	stored, err := repo.GetWithNotes(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "REF-A", stored.ReferenceNumber)
	assert.Equal(t, "https://pay.example/a", stored.RedirectURL)
	require.Len(t, stored.Notes, 2)
	assert.Equal(t, "first", stored.Notes[0].Note)

	// same reference cannot point at a second order
	err = repo.AttachReference(ctx, b.ID, "REF-A", "https://pay.example/b")
	assert.ErrorIs(t, err, ErrDuplicateReference)

	// an order keeps its first reference, and the rejected one is not indexed
	err = repo.AttachReference(ctx, a.ID, "REF-A2", "https://pay.example/a2")
	assert.ErrorIs(t, err, ErrReferenceAlreadySet)
	_, err = repo.FindOrderByReference(ctx, "REF-A2")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	err = repo.AttachReference(ctx, 9999, "REF-X", "https://pay.example/x")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestFinalizeOnlyFromPending(t *testing.T) {
	db := setupTestDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()
	o := createOrder(t, repo, "key-f")
	paid := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	changed, err := repo.Finalize(ctx, o.ID, PaymentFinalization{
		Status:        domain.OrderCompleted,
		PaymentStatus: "SUCCESS",
		TransactionID: "REF-F",
		PaidTime:      &paid,
		AmountDetails: []byte(`{"currencyCode":"USD","totalTransactionAmount":"50"}`),
		Notes:         []string{"captured"},
	})
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.Finalize(ctx, o.ID, PaymentFinalization{Status: domain.OrderCancelled, Notes: []string{"late"}})
	require.NoError(t, err)
	assert.False(t, changed)

	stored, err := repo.GetWithNotes(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderCompleted, stored.Status)
	assert.Equal(t, "REF-F", stored.TransactionID)
	require.NotNil(t, stored.PaidTime)
	assert.True(t, stored.PaidTime.Equal(paid))
	require.Len(t, stored.Notes, 1)
	assert.Equal(t, "captured", stored.Notes[0].Note)

	_, err = repo.Finalize(ctx, o.ID, PaymentFinalization{Status: domain.OrderPending})
	assert.Error(t, err)

	_, err = repo.Finalize(ctx, 9999, PaymentFinalization{Status: domain.OrderCancelled})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestAddNoteIfPending(t *testing.T) {
	db := setupTestDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()
	o := createOrder(t, repo, "key-n")

	added, err := repo.AddNoteIfPending(ctx, o.ID, "still waiting")
	require.NoError(t, err)
	assert.True(t, added)

	_, err = repo.Finalize(ctx, o.ID, PaymentFinalization{Status: domain.OrderCancelled})
	require.NoError(t, err)

	added, err = repo.AddNoteIfPending(ctx, o.ID, "too late")
	require.NoError(t, err)
	assert.False(t, added)

	stored, err := repo.GetWithNotes(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, stored.Notes, 1)
	assert.Equal(t, "still waiting", stored.Notes[0].Note)
}

func TestListAndStalePending(t *testing.T) {
	db := setupTestDB(t)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	noRef := createOrder(t, repo, "key-1")
	stale := createOrder(t, repo, "key-2")
	fresh := createOrder(t, repo, "key-3")
	done := createOrder(t, repo, "key-4")
	require.NoError(t, repo.AttachReference(ctx, stale.ID, "REF-2", "u"))
	require.NoError(t, repo.AttachReference(ctx, fresh.ID, "REF-3", "u"))
	require.NoError(t, repo.AttachReference(ctx, done.ID, "REF-4", "u"))
	_, err := repo.Finalize(ctx, done.ID, PaymentFinalization{Status: domain.OrderCompleted})
	require.NoError(t, err)

	old := time.Now().UTC().Add(-2 * time.Hour)
	require.NoError(t, db.Model(&domain.Order{}).Where("id IN ?", []int64{noRef.ID, stale.ID, done.ID}).UpdateColumn("updated_at", old).Error)

	orders, err := repo.ListStalePending(ctx, time.Now().UTC().Add(-time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, stale.ID, orders[0].ID)

	pending, total, err := repo.List(ctx, domain.OrderPending, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, pending, 2)
	assert.Equal(t, fresh.ID, pending[0].ID)

	_, total, err = repo.List(ctx, "", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
}

func TestCartClear(t *testing.T) {
	db := setupTestDB(t)
	carts := NewCartRepository(db)
	ctx := context.Background()

	require.NoError(t, carts.Create(ctx, &domain.Cart{
		SessionID: "sess-1",
		Items:     []domain.CartItem{{ProductName: "Camera", Quantity: 1}},
	}))
	require.NoError(t, carts.Clear(ctx, "sess-1"))
	_, err := carts.GetBySession(ctx, "sess-1")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	var items int64
	require.NoError(t, db.Model(&domain.CartItem{}).Count(&items).Error)
	assert.Zero(t, items)

	assert.NoError(t, carts.Clear(ctx, "sess-1"))
	assert.NoError(t, carts.Clear(ctx, ""))
}

func TestEmailOutboxEnqueueOnce(t *testing.T) {
	db := setupTestDB(t)
	outbox := NewEmailOutboxRepository(db)
	ctx := context.Background()

	queued, err := outbox.Enqueue(ctx, 1, domain.EmailOrderCompleted, "payer@example.com")
	require.NoError(t, err)
	assert.True(t, queued)

	queued, err = outbox.Enqueue(ctx, 1, domain.EmailOrderCompleted, "payer@example.com")
	require.NoError(t, err)
	assert.False(t, queued)

	queued, err = outbox.Enqueue(ctx, 1, domain.EmailOrderProcessing, "payer@example.com")
	require.NoError(t, err)
	assert.True(t, queued)

	rows, err := outbox.ListByOrder(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestNotificationLog(t *testing.T) {
	db := setupTestDB(t)
	logs := NewNotificationLogRepository(db)
	ctx := context.Background()

	id, err := logs.Record(ctx, "REF-L", "10.0.0.1", `{"referenceNumber":"REF-L"}`)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	orderID := int64(7)
	require.NoError(t, logs.Resolve(ctx, id, &orderID, domain.NotificationLogHandled, "completed"))

	rows, err := logs.ListByReference(ctx, "REF-L")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, domain.NotificationLogHandled, rows[0].Status)
	assert.Equal(t, "completed", rows[0].Result)
	require.NotNil(t, rows[0].OrderID)
	assert.Equal(t, orderID, *rows[0].OrderID)
}

func TestSettings(t *testing.T) {
	db := setupTestDB(t)
	settings := NewSettingRepository(db)
	ctx := context.Background()

	_, ok, err := settings.Get(ctx, domain.SettingDebug)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, settings.Set(ctx, domain.SettingDebug, "yes"))
	require.NoError(t, settings.Set(ctx, domain.SettingDebug, "no"))

	v, ok, err := settings.Get(ctx, domain.SettingDebug)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "no", v)
}

func TestIsUniqueConstraintError(t *testing.T) {
	assert.True(t, isUniqueConstraintError(gorm.ErrDuplicatedKey))
	assert.True(t, isUniqueConstraintError(fmt.Errorf("UNIQUE constraint failed: payment_references.reference_number")))
	assert.False(t, isUniqueConstraintError(gorm.ErrRecordNotFound))
}
