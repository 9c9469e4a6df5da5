package repository

import (
	"context"

	"paybridge/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NotificationLogRepository struct {
	db *gorm.DB
}

func NewNotificationLogRepository(db *gorm.DB) *NotificationLogRepository {
	return &NotificationLogRepository{db: db}
}

// Record stores an inbound delivery and returns its id.
func (r *NotificationLogRepository) Record(ctx context.Context, reference, remoteIP, body string) (string, error) {
	l := &domain.PaymentNotificationLog{
		ID:              uuid.NewString(),
		ReferenceNumber: reference,
		RemoteIP:        remoteIP,
		Body:            body,
		Status:          domain.NotificationLogReceived,
	}
	if err := r.db.WithContext(ctx).Create(l).Error; err != nil {
		return "", err
	}
	return l.ID, nil
}

func (r *NotificationLogRepository) Resolve(ctx context.Context, id string, orderID *int64, status domain.PaymentNotificationLogStatus, result string) error {
	updates := map[string]interface{}{
		"status": status,
		"result": result,
	}
	if orderID != nil {
		updates["order_id"] = *orderID
	}
	return r.db.WithContext(ctx).Model(&domain.PaymentNotificationLog{}).Where("id = ?", id).Updates(updates).Error
}

func (r *NotificationLogRepository) ListByReference(ctx context.Context, reference string) ([]domain.PaymentNotificationLog, error) {
	var logs []domain.PaymentNotificationLog
	err := r.db.WithContext(ctx).Where("reference_number = ?", reference).Order("created_at asc").Find(&logs).Error
	return logs, err
}
