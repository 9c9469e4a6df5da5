package domain

import "time"

type EmailTemplate string

const (
	EmailOrderProcessing EmailTemplate = "customer_processing_order"
	EmailOrderCompleted  EmailTemplate = "customer_completed_order"
)

// EmailOutbox is a queued customer email. One row per order and template.
type EmailOutbox struct {
	ID        int64         `gorm:"primaryKey" json:"id"`
	OrderID   int64         `gorm:"not null;uniqueIndex:idx_email_outbox_order_template" json:"order_id"`
	Template  EmailTemplate `gorm:"type:varchar(64);not null;uniqueIndex:idx_email_outbox_order_template" json:"template"`
	Recipient string        `gorm:"type:varchar(255)" json:"recipient"`
	SentAt    *time.Time    `json:"sent_at,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

func (EmailOutbox) TableName() string { return "email_outbox" }
