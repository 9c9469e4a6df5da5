package domain

import "time"

type PaymentNotificationLogStatus string

const (
	NotificationLogReceived     PaymentNotificationLogStatus = "received"
	NotificationLogHandled      PaymentNotificationLogStatus = "handled"
	NotificationLogIgnored      PaymentNotificationLogStatus = "ignored"
	NotificationLogHandleFailed PaymentNotificationLogStatus = "handle_failed"
)

// PaymentNotificationLog records every push delivery from the processor.
type PaymentNotificationLog struct {
	ID              string                       `gorm:"type:varchar(36);primaryKey" json:"id"`
	ReferenceNumber string                       `gorm:"type:varchar(128);index" json:"reference_number"`
	OrderID         *int64                       `gorm:"index" json:"order_id,omitempty"`
	RemoteIP        string                       `gorm:"type:varchar(64)" json:"remote_ip"`
	Body            string                       `gorm:"type:text" json:"body"`
	Status          PaymentNotificationLogStatus `gorm:"type:varchar(32);not null" json:"status"`
	Result          string                       `gorm:"type:text" json:"result,omitempty"`
	CreatedAt       time.Time                    `json:"created_at"`
	UpdatedAt       time.Time                    `json:"updated_at"`
}

func (PaymentNotificationLog) TableName() string { return "payment_notification_logs" }
