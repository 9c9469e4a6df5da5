package admin

import (
	"context"

	"paybridge/internal/domain"
)

type orderReader interface {
	List(ctx context.Context, status domain.OrderStatus, limit, offset int) ([]domain.Order, int64, error)
	GetWithNotes(ctx context.Context, id int64) (*domain.Order, error)
}

type deliveryReader interface {
	ListByReference(ctx context.Context, reference string) ([]domain.PaymentNotificationLog, error)
}

type tokenIssuer interface {
	GenerateToken(subject, role string) (string, error)
}
