package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Cart struct {
	ID        int64      `gorm:"primaryKey" json:"id"`
	SessionID string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"session_id"`
	Items     []CartItem `gorm:"foreignKey:CartID" json:"items,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (Cart) TableName() string { return "carts" }

type CartItem struct {
	ID          int64           `gorm:"primaryKey" json:"id"`
	CartID      int64           `gorm:"index;not null" json:"cart_id"`
	ProductName string          `gorm:"type:varchar(255);not null" json:"product_name"`
	Quantity    int             `gorm:"not null;default:1" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(12,2)" json:"unit_price"`
}

func (CartItem) TableName() string { return "cart_items" }
