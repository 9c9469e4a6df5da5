package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
)

// IsTerminal reports whether no further payment transition is allowed.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderCompleted || s == OrderCancelled
}

const PaymentMethodPesepay = "pesepay"

type Order struct {
	ID              int64           `gorm:"primaryKey" json:"id"`
	OrderKey        string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"order_key"`
	Status          OrderStatus     `gorm:"type:varchar(20);default:'pending';index" json:"status"`
	PaymentMethod   string          `gorm:"type:varchar(64);not null" json:"payment_method"`
	Currency        string          `gorm:"type:varchar(3);not null" json:"currency"`
	Total           decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total"`
	CustomerEmail   string          `gorm:"type:varchar(255)" json:"customer_email"`
	CartSessionID   string          `gorm:"type:varchar(64);index" json:"cart_session_id,omitempty"`
	ReferenceNumber string          `gorm:"type:varchar(128);index" json:"reference_number,omitempty"`
	RedirectURL     string          `gorm:"type:text" json:"redirect_url,omitempty"`
	PaymentStatus   string          `gorm:"type:varchar(32)" json:"payment_status,omitempty"`
	TransactionID   string          `gorm:"type:varchar(128)" json:"transaction_id,omitempty"`
	PaidTime        *time.Time      `json:"paid_time,omitempty"`
	AmountDetails   datatypes.JSON  `json:"amount_details,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"`
	Notes []OrderNote `gorm:"foreignKey:OrderID" json:"notes,omitempty"`
}

func (Order) TableName() string { return "orders" }

type OrderItem struct {
	ID        int64           `gorm:"primaryKey" json:"id"`
	OrderID   int64           `gorm:"index;not null" json:"order_id"`
	Name      string          `gorm:"type:varchar(255);not null" json:"name"`
	Meta      string          `gorm:"type:text" json:"meta,omitempty"`
	Quantity  int             `gorm:"not null;default:1" json:"quantity"`
	LineTotal decimal.Decimal `gorm:"type:numeric(12,2)" json:"line_total"`
}

func (OrderItem) TableName() string { return "order_items" }

// OrderNote is an audit line shown to the merchant.
type OrderNote struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	OrderID   int64     `gorm:"index;not null" json:"order_id"`
	Note      string    `gorm:"type:text;not null" json:"note"`
	CreatedAt time.Time `json:"created_at"`
}

func (OrderNote) TableName() string { return "order_notes" }

// PaymentReference indexes processor reference numbers back to orders.
type PaymentReference struct {
	ID              int64     `gorm:"primaryKey" json:"id"`
	ReferenceNumber string    `gorm:"type:varchar(128);uniqueIndex;not null" json:"reference_number"`
	OrderID         int64     `gorm:"index;not null" json:"order_id"`
	CreatedAt       time.Time `json:"created_at"`
}

func (PaymentReference) TableName() string { return "payment_references" }
