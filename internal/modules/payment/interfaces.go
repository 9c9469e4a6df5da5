package payment

import (
	"context"
	"time"

	"paybridge/internal/domain"
	"paybridge/internal/pkg/pesepay"
	"paybridge/internal/repository"
)

type orderFinalizer interface {
	Finalize(ctx context.Context, orderID int64, f repository.PaymentFinalization) (bool, error)
	AddNoteIfPending(ctx context.Context, orderID int64, note string) (bool, error)
}

type orderStore interface {
	orderFinalizer
	GetByID(ctx context.Context, id int64) (*domain.Order, error)
	AddNote(ctx context.Context, orderID int64, note string) error
	AttachReference(ctx context.Context, orderID int64, reference, redirectURL string, notes ...string) error
	FindOrderByReference(ctx context.Context, reference string) (int64, error)
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]domain.Order, error)
}

type gateway interface {
	InitiatePayment(ctx context.Context, req pesepay.PaymentRequest) (*pesepay.InitiateResult, error)
	CheckPaymentStatus(ctx context.Context, reference string) (*pesepay.PaymentStatus, error)
}

type notifier interface {
	SendCompleted(ctx context.Context, orderID int64) error
	SendProcessing(ctx context.Context, orderID int64) error
}

type statusPublisher interface {
	PublishStatus(orderID int64, status domain.OrderStatus)
}

type cartSession interface {
	Clear(ctx context.Context, sessionID string) error
}

type debugSwitch interface {
	DebugEnabled(ctx context.Context) bool
}

type deliveryLog interface {
	Record(ctx context.Context, reference, remoteIP, body string) (string, error)
	Resolve(ctx context.Context, id string, orderID *int64, status domain.PaymentNotificationLogStatus, result string) error
}
