package repository

import (
	"context"

	"paybridge/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type EmailOutboxRepository struct {
	db *gorm.DB
}

func NewEmailOutboxRepository(db *gorm.DB) *EmailOutboxRepository {
	return &EmailOutboxRepository{db: db}
}

// Enqueue queues an email once per order and template. It reports false when
// the email was already queued.
func (r *EmailOutboxRepository) Enqueue(ctx context.Context, orderID int64, template domain.EmailTemplate, recipient string) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&domain.EmailOutbox{OrderID: orderID, Template: template, Recipient: recipient})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *EmailOutboxRepository) ListByOrder(ctx context.Context, orderID int64) ([]domain.EmailOutbox, error) {
	var rows []domain.EmailOutbox
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("id asc").Find(&rows).Error
	return rows, err
}
